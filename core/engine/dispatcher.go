package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deliverytrack/engine/core/bus"
	"github.com/deliverytrack/engine/core/event"
	"github.com/deliverytrack/engine/core/logger"
	"github.com/deliverytrack/engine/core/metrics"
)

// Consumer group names, shared by every instance of the service so that
// replicas compete for messages instead of duplicating work.
const (
	GroupAssignment = "delivery-assignment-service"
	GroupLocation   = "location-processor"
)

// ErrShutdownTimeout is returned when in-flight handlers outlive the
// shutdown grace period.
var ErrShutdownTimeout = errors.New("shutdown grace period exceeded")

// Config tunes the dispatcher. Zero values fall back to defaults.
type Config struct {
	// ShutdownGraceSeconds bounds the wait for in-flight handlers on Stop.
	ShutdownGraceSeconds int `json:"shutdown_grace_seconds"`
	// RetryAttempts > 1 enables in-process retry of failed handlers.
	RetryAttempts  int `json:"retry_attempts"`
	RetryBackoffMS int `json:"retry_backoff_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ShutdownGraceSeconds <= 0 {
		c.ShutdownGraceSeconds = 10
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 1
	}
	if c.RetryBackoffMS <= 0 {
		c.RetryBackoffMS = 100
	}
}

// Policy builds the FailurePolicy described by the config.
func (c Config) Policy() FailurePolicy {
	if c.RetryAttempts > 1 {
		return RetryPolicy{Attempts: c.RetryAttempts, Backoff: time.Duration(c.RetryBackoffMS) * time.Millisecond}
	}
	return DropPolicy{}
}

// Dispatcher owns the topic subscriptions and the consumer lifecycle. It
// decodes payloads at the boundary, routes typed events to the engines and
// applies the failure policy; every message is consumed exactly once from
// the bus's perspective, regardless of handler outcome.
type Dispatcher struct {
	bus     bus.Bus
	assign  *AssignmentEngine
	arrival *ArrivalDetector
	policy  FailurePolicy
	sink    metrics.Sink
	log     logger.Logger
	grace   time.Duration

	inFlight sync.WaitGroup
}

func NewDispatcher(b bus.Bus, assign *AssignmentEngine, arrival *ArrivalDetector, cfg Config, sink metrics.Sink, log logger.Logger) *Dispatcher {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Dispatcher{
		bus:     b,
		assign:  assign,
		arrival: arrival,
		policy:  cfg.Policy(),
		sink:    sink,
		log:     log,
		grace:   time.Duration(cfg.ShutdownGraceSeconds) * time.Second,
	}
}

// Start registers the subscriptions: assignment handlers under one consumer
// group, the arrival detector under another.
func (d *Dispatcher) Start() error {
	subs := []struct {
		topic string
		group string
	}{
		{event.TopicDeliveryCreated, GroupAssignment},
		{event.TopicCourierAvailable, GroupAssignment},
		{event.TopicLocationUpdated, GroupLocation},
	}
	for _, s := range subs {
		if err := d.bus.Subscribe(s.topic, s.group, d.handler(s.topic, s.group)); err != nil {
			return fmt.Errorf("subscribe %s (%s): %w", s.topic, s.group, err)
		}
	}
	d.log.Infof("dispatcher subscribed to %d topics", len(subs))
	return nil
}

// Stop waits for in-flight handler invocations, bounded by the grace period.
// Bus teardown itself belongs to the bus owner.
func (d *Dispatcher) Stop() error {
	done := make(chan struct{})
	go func() {
		d.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(d.grace):
		return ErrShutdownTimeout
	}
}

func (d *Dispatcher) handler(topic, group string) bus.Handler {
	return func(ctx context.Context, payload []byte) error {
		d.inFlight.Add(1)
		defer d.inFlight.Done()

		start := time.Now()
		ev, err := event.Decode(topic, payload)
		if err != nil {
			d.log.Warnf("dropping message on %s: %v", topic, err)
			d.record(topic, group, start, true)
			return nil
		}

		err = d.policy.Execute(ctx, func(ctx context.Context) error {
			return d.route(ctx, ev)
		})
		if err != nil {
			// Log and drop: the message counts as consumed, its effect is
			// lost until a later event (or the reconciler) repairs state.
			d.log.Errorf("handler for %s failed: %v", topic, err)
		}
		d.record(topic, group, start, err != nil)
		return nil
	}
}

func (d *Dispatcher) route(ctx context.Context, ev any) error {
	switch ev := ev.(type) {
	case event.DeliveryCreated:
		return d.assign.HandleDeliveryCreated(ctx, ev)
	case event.CourierAvailable:
		return d.assign.HandleCourierAvailable(ctx, ev)
	case event.LocationUpdated:
		return d.arrival.HandleLocationUpdated(ctx, ev)
	}
	return fmt.Errorf("no handler for %T", ev)
}

func (d *Dispatcher) record(topic, group string, start time.Time, failed bool) {
	if err := d.sink.RecordEventHandled(metrics.EventHandled{
		Topic:    topic,
		Group:    group,
		Duration: time.Since(start),
		Failed:   failed,
	}); err != nil {
		d.log.Warnf("record event: %v", err)
	}
}
