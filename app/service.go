// Package app wires the configuration into a running service: store, bus,
// engines, GPS gateway and background jobs.
package app

import (
	"context"
	"fmt"

	"github.com/deliverytrack/engine/config"
	corebus "github.com/deliverytrack/engine/core/bus"
	"github.com/deliverytrack/engine/core/engine"
	"github.com/deliverytrack/engine/core/store"
	"github.com/deliverytrack/engine/infra/kafka"
	"github.com/deliverytrack/engine/infra/logger"
	"github.com/deliverytrack/engine/infra/metrics"
	"github.com/deliverytrack/engine/infra/mqtt"
	"github.com/deliverytrack/engine/infra/postgres"
	"github.com/deliverytrack/engine/jobs"
)

// engineStore is the combined store surface the service needs. Both backends
// implement it.
type engineStore interface {
	store.DeliveryStore
	store.LocationStore
}

// Service orchestrates the dispatcher, the GPS gateway and the jobs.
type Service struct {
	Dispatcher *engine.Dispatcher

	cfg        *config.Config
	bus        corebus.Bus
	gateway    *mqtt.Gateway
	reconciler *jobs.ReconcilerJob
	log        logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var st engineStore
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := postgres.New(cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		st = pg
	default:
		st = store.NewMemoryStore()
	}

	sink, err := metrics.NewSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	b, err := kafka.New(cfg.Kafka, logger.New("kafka"))
	if err != nil {
		return nil, fmt.Errorf("kafka bus: %w", err)
	}

	assign := engine.NewAssignmentEngine(st, b, sink, logger.New("assignment"))
	arrival := engine.NewArrivalDetector(st, b, sink, logger.New("arrival"))
	dispatcher := engine.NewDispatcher(b, assign, arrival, cfg.Engine, sink, logger.New("dispatcher"))

	gateway, err := mqtt.NewGateway(cfg.MQTT, b, st, logger.New("gps-gateway"))
	if err != nil {
		return nil, fmt.Errorf("gps gateway: %w", err)
	}

	svc := &Service{
		Dispatcher: dispatcher,
		cfg:        cfg,
		bus:        b,
		gateway:    gateway,
		log:        logg,
	}
	if cfg.Reconciler.Enabled {
		svc.reconciler = jobs.NewReconcilerJob(assign, logger.New("reconciler"))
	}
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Dispatcher.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	if s.gateway != nil {
		if err := s.gateway.Start(); err != nil {
			return fmt.Errorf("start gps gateway: %w", err)
		}
	}
	if s.reconciler != nil {
		if err := s.reconciler.Start(s.cfg.Reconciler.Schedule); err != nil {
			return fmt.Errorf("start reconciler: %w", err)
		}
	}
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	s.log.Infof("service started")
	<-ctx.Done()
	return s.Close()
}

// Close stops the consumers and waits for in-flight handlers within the
// configured grace period.
func (s *Service) Close() error {
	if s.reconciler != nil {
		s.reconciler.Stop()
	}
	if s.gateway != nil {
		s.gateway.Close()
	}
	stopErr := s.Dispatcher.Stop()
	if err := s.bus.Close(); err != nil {
		s.log.Errorf("close bus: %v", err)
	}
	return stopErr
}
