package model

import "fmt"

// Status is the lifecycle state of a delivery. The wire representation is the
// uppercase string used in delivery.status.updated payloads.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAssigned  Status = "ASSIGNED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// statusRank orders the forward path. CANCELLED sits outside the path and is
// handled separately.
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusAssigned:  1,
	StatusInTransit: 2,
	StatusDelivered: 3,
}

// Validate checks that the status is one of the known states.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusAssigned, StatusInTransit, StatusDelivered, StatusCancelled:
		return nil
	}
	return fmt.Errorf("unknown delivery status %q", string(s))
}

func (s Status) String() string { return string(s) }

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Active reports whether a delivery in this status occupies its courier.
// Availability of a courier is derived from the absence of active deliveries.
func (s Status) Active() bool {
	return s == StatusAssigned || s == StatusInTransit
}

// RequiresCourier reports whether a delivery in this status must have a
// courier bound to it.
func (s Status) RequiresCourier() bool {
	return s == StatusAssigned || s == StatusInTransit || s == StatusDelivered
}

// CanTransitionTo reports whether moving from s to next respects the
// monotonic PENDING -> ASSIGNED -> IN_TRANSIT -> DELIVERED path. CANCELLED is
// reachable from any non-terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to == from+1
}
