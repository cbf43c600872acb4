package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deliverytrack/engine/core/bus"
	"github.com/deliverytrack/engine/core/event"
	"github.com/deliverytrack/engine/core/geo"
	"github.com/deliverytrack/engine/core/logger"
	"github.com/deliverytrack/engine/core/metrics"
	"github.com/deliverytrack/engine/core/model"
	"github.com/deliverytrack/engine/core/store"
)

// ArrivalRadiusKm is the geofence around a destination within which a GPS
// report completes an IN_TRANSIT delivery. The radius is fixed; there is no
// per-delivery or accuracy-adaptive variant.
const ArrivalRadiusKm = 0.1

// fallbackCourierName is used for the re-published courier.available event
// when the location report carried no courier name.
const fallbackCourierName = "courier"

// ArrivalDetector infers delivery completion from GPS reports.
type ArrivalDetector struct {
	store store.DeliveryStore
	bus   bus.Bus
	sink  metrics.Sink
	log   logger.Logger
	now   func() time.Time
}

func NewArrivalDetector(st store.DeliveryStore, b bus.Bus, sink metrics.Sink, log logger.Logger) *ArrivalDetector {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &ArrivalDetector{store: st, bus: b, sink: sink, log: log, now: time.Now}
}

// HandleLocationUpdated checks the report against the delivery destination
// and, inside the geofence with the delivery IN_TRANSIT, applies the guarded
// IN_TRANSIT -> DELIVERED transition. A missing delivery, a non-matching
// status or a distant report are normal no-ops. The guard makes replayed
// reports idempotent: DeliveredAt is written at most once.
func (a *ArrivalDetector) HandleLocationUpdated(ctx context.Context, ev event.LocationUpdated) error {
	d, err := a.store.GetDelivery(ctx, ev.DeliveryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load delivery %s: %w", ev.DeliveryID, err)
	}

	if loc, ok := a.sink.(metrics.LocationRecorder); ok {
		_ = loc.RecordLocation(metrics.LocationPoint{
			DeliveryID: ev.DeliveryID,
			CourierID:  ev.CourierID,
			Latitude:   ev.Latitude,
			Longitude:  ev.Longitude,
			Time:       ev.Timestamp,
		})
	}

	dist := geo.DistanceKm(
		model.Coordinate{Latitude: ev.Latitude, Longitude: ev.Longitude},
		d.Destination,
	)
	if d.Status != model.StatusInTransit || dist >= ArrivalRadiusKm {
		return nil
	}

	deliveredAt := a.now()
	applied, err := a.store.ConditionalUpdateDelivery(ctx, d.ID,
		store.DeliveryGuard{Status: model.StatusInTransit},
		store.DeliveryUpdate{Status: model.StatusDelivered, DeliveredAt: &deliveredAt})
	if err != nil {
		return fmt.Errorf("complete delivery %s: %w", d.ID, err)
	}
	if !applied {
		// A concurrent or duplicate report already completed the delivery.
		return nil
	}

	a.log.Infof("delivery %s completed %.0f m from destination", d.ID, dist*1000)
	if err := a.sink.RecordArrival(metrics.Arrival{
		DeliveryID: d.ID,
		CourierID:  derefOr(d.CourierID, ""),
		DistanceKm: dist,
		Time:       deliveredAt,
	}); err != nil {
		a.log.Warnf("record arrival: %v", err)
	}

	if err := a.bus.Publish(ctx, event.TopicDeliveryStatusUpdated, event.DeliveryStatusUpdated{
		DeliveryID: d.ID,
		Status:     model.StatusDelivered.String(),
		Timestamp:  deliveredAt,
	}); err != nil {
		a.log.Errorf("publish delivery.status.updated for %s: %v", d.ID, err)
	}

	// The courier is free again; this closes the loop back into the
	// assignment engine.
	if d.CourierID != nil {
		name := ev.CourierName
		if name == "" {
			name = fallbackCourierName
		}
		if err := a.bus.Publish(ctx, event.TopicCourierAvailable, event.CourierAvailable{
			CourierID:   *d.CourierID,
			CourierName: name,
		}); err != nil {
			a.log.Errorf("publish courier.available for %s: %v", *d.CourierID, err)
		}
	}
	return nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
