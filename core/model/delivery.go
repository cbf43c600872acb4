package model

import (
	"fmt"
	"time"
)

// Delivery is a tracked shipment. It is created by the API layer in PENDING
// with no courier and from then on mutated only by the assignment engine
// (courier, status) and the arrival detector (status, DeliveredAt).
type Delivery struct {
	ID          string
	Status      Status
	CustomerID  string
	CourierID   *string    // nil until assigned
	Destination Coordinate // drop-off point
	CreatedAt   time.Time  // FIFO key for pending deliveries
	DeliveredAt *time.Time // set exactly once, on completion
}

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Validate checks the structural invariants of the record: a courier is bound
// iff the status requires one, and DeliveredAt is set iff the delivery is
// DELIVERED.
func (d Delivery) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("delivery id is empty")
	}
	if err := d.Status.Validate(); err != nil {
		return err
	}
	if d.Status.RequiresCourier() && d.CourierID == nil {
		return fmt.Errorf("delivery %s is %s but has no courier", d.ID, d.Status)
	}
	if !d.Status.RequiresCourier() && d.CourierID != nil {
		return fmt.Errorf("delivery %s is %s but has a courier", d.ID, d.Status)
	}
	if (d.DeliveredAt != nil) != (d.Status == StatusDelivered) {
		return fmt.Errorf("delivery %s: delivered_at set iff status is DELIVERED", d.ID)
	}
	return nil
}

// Courier is an actor that can carry at most one active delivery at a time.
type Courier struct {
	ID   string
	Name string
}

// Location is one GPS report for a delivery. Records are append-only and
// ordered by Timestamp for trajectory reconstruction.
type Location struct {
	ID         string
	DeliveryID string
	Latitude   float64
	Longitude  float64
	Timestamp  time.Time
}
