// Package store defines the engine's view of the persistent store. The
// records themselves are owned by the external CRUD layer; the engine only
// performs point lookups, ordered queries and conditional updates.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/deliverytrack/engine/core/model"
)

// ErrNotFound is returned by point lookups when no record exists. Engines
// treat it as a normal non-matching case, not a failure.
var ErrNotFound = errors.New("record not found")

// DeliveryGuard is the expected pre-state of a conditional update. The update
// applies only if the record's status matches and, when CourierUnset is set,
// no courier is bound yet.
type DeliveryGuard struct {
	Status       model.Status
	CourierUnset bool
}

// DeliveryUpdate is the set of fields written when the guard matches. Nil
// pointers leave the corresponding column untouched.
type DeliveryUpdate struct {
	Status      model.Status
	CourierID   *string
	DeliveredAt *time.Time
}

// DeliveryStore is the store adapter consumed by the engines. Conditional
// updates are the only mutation path; "load, decide, unconditionally update"
// is never used.
type DeliveryStore interface {
	// GetDelivery returns the delivery or ErrNotFound.
	GetDelivery(ctx context.Context, id string) (*model.Delivery, error)

	// ConditionalUpdateDelivery applies update iff guard matches the current
	// record. It reports whether the update was applied; a non-matching
	// pre-state is (false, nil), not an error.
	ConditionalUpdateDelivery(ctx context.Context, id string, guard DeliveryGuard, update DeliveryUpdate) (bool, error)

	// FindOldestPendingUnassigned returns the PENDING, courier-less delivery
	// with the smallest CreatedAt, or nil when none exists.
	FindOldestPendingUnassigned(ctx context.Context) (*model.Delivery, error)

	// ListAvailableCouriers returns couriers with no ASSIGNED or IN_TRANSIT
	// delivery. Availability is derived at read time, never stored.
	ListAvailableCouriers(ctx context.Context) ([]model.Courier, error)
}

// LocationStore persists GPS reports. Records are append-only.
type LocationStore interface {
	AppendLocation(ctx context.Context, loc model.Location) error
	// ListLocations returns the reports for a delivery ordered by timestamp.
	ListLocations(ctx context.Context, deliveryID string) ([]model.Location, error)
}
