// Package engine contains the event-driven core: courier assignment, arrival
// detection and the dispatcher that wires both to the bus.
package engine

import (
	"context"
	"fmt"

	"github.com/deliverytrack/engine/core/bus"
	"github.com/deliverytrack/engine/core/event"
	"github.com/deliverytrack/engine/core/logger"
	"github.com/deliverytrack/engine/core/metrics"
	"github.com/deliverytrack/engine/core/model"
	"github.com/deliverytrack/engine/core/store"
)

// AssignmentEngine binds PENDING, unassigned deliveries to available
// couriers. All mutations go through conditional updates, so concurrent or
// replayed events resolve to exactly one winner.
type AssignmentEngine struct {
	store store.DeliveryStore
	bus   bus.Bus
	sink  metrics.Sink
	log   logger.Logger
}

func NewAssignmentEngine(st store.DeliveryStore, b bus.Bus, sink metrics.Sink, log logger.Logger) *AssignmentEngine {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &AssignmentEngine{store: st, bus: b, sink: sink, log: log}
}

// HandleDeliveryCreated reacts to delivery.created. It picks an arbitrary
// available courier (no ranking policy) and attempts the guarded assignment.
// With no courier available the delivery stays PENDING until a
// courier.available event arrives.
func (e *AssignmentEngine) HandleDeliveryCreated(ctx context.Context, ev event.DeliveryCreated) error {
	couriers, err := e.store.ListAvailableCouriers(ctx)
	if err != nil {
		return fmt.Errorf("list available couriers: %w", err)
	}
	if len(couriers) == 0 {
		e.log.Infof("no courier available for delivery %s, staying pending", ev.DeliveryID)
		return nil
	}
	return e.assign(ctx, ev.DeliveryID, couriers[0], event.TopicDeliveryCreated)
}

// HandleCourierAvailable reacts to courier.available. The oldest PENDING,
// unassigned delivery is matched to the freed courier through the same
// guarded update.
func (e *AssignmentEngine) HandleCourierAvailable(ctx context.Context, ev event.CourierAvailable) error {
	pending, err := e.store.FindOldestPendingUnassigned(ctx)
	if err != nil {
		return fmt.Errorf("find oldest pending delivery: %w", err)
	}
	if pending == nil {
		return nil
	}
	courier := model.Courier{ID: ev.CourierID, Name: ev.CourierName}
	return e.assign(ctx, pending.ID, courier, event.TopicCourierAvailable)
}

// Sweep matches the oldest PENDING, unassigned delivery with any available
// courier. The reconciliation job calls this; it shares the guarded update
// with the event handlers, so a sweep and a live event can never both win
// the same delivery.
func (e *AssignmentEngine) Sweep(ctx context.Context) error {
	pending, err := e.store.FindOldestPendingUnassigned(ctx)
	if err != nil {
		return fmt.Errorf("find oldest pending delivery: %w", err)
	}
	if pending == nil {
		return nil
	}
	couriers, err := e.store.ListAvailableCouriers(ctx)
	if err != nil {
		return fmt.Errorf("list available couriers: %w", err)
	}
	if len(couriers) == 0 {
		return nil
	}
	return e.assign(ctx, pending.ID, couriers[0], "reconciler")
}

// assign performs the conditional PENDING -> ASSIGNED transition. A rejected
// guard means a concurrent handler already won the delivery; that is the
// expected outcome under replay and races, not an error.
func (e *AssignmentEngine) assign(ctx context.Context, deliveryID string, courier model.Courier, trigger string) error {
	courierID := courier.ID
	applied, err := e.store.ConditionalUpdateDelivery(ctx, deliveryID,
		store.DeliveryGuard{Status: model.StatusPending, CourierUnset: true},
		store.DeliveryUpdate{Status: model.StatusAssigned, CourierID: &courierID})
	if err != nil {
		return fmt.Errorf("assign delivery %s: %w", deliveryID, err)
	}
	if !applied {
		e.log.Debugw("assignment lost conditional update", map[string]any{
			"delivery": deliveryID,
			"courier":  courier.ID,
		})
		return nil
	}

	e.log.Infof("delivery %s assigned to courier %s", deliveryID, courier.Name)
	if err := e.sink.RecordAssignment(metrics.Assignment{
		DeliveryID: deliveryID,
		CourierID:  courier.ID,
		Trigger:    trigger,
	}); err != nil {
		e.log.Warnf("record assignment: %v", err)
	}

	// Publish failures are logged and abandoned; the assignment itself is
	// already durable.
	if err := e.bus.Publish(ctx, event.TopicDeliveryAssigned, event.DeliveryAssigned{
		DeliveryID:  deliveryID,
		CourierID:   courier.ID,
		CourierName: courier.Name,
	}); err != nil {
		e.log.Errorf("publish delivery.assigned for %s: %v", deliveryID, err)
	}
	return nil
}
