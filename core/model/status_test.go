package model

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusAssigned, true},
		{StatusAssigned, StatusInTransit, true},
		{StatusInTransit, StatusDelivered, true},
		{StatusPending, StatusInTransit, false},
		{StatusPending, StatusDelivered, false},
		{StatusAssigned, StatusPending, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusAssigned, false},
		{StatusPending, StatusCancelled, true},
		{StatusInTransit, StatusCancelled, true},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	if !StatusAssigned.Active() || !StatusInTransit.Active() {
		t.Error("ASSIGNED and IN_TRANSIT must be active")
	}
	if StatusPending.Active() || StatusDelivered.Active() {
		t.Error("PENDING and DELIVERED must not be active")
	}
	if !StatusDelivered.Terminal() || !StatusCancelled.Terminal() {
		t.Error("DELIVERED and CANCELLED are terminal")
	}
	if err := Status("SHIPPED").Validate(); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestDeliveryValidate(t *testing.T) {
	courier := "c1"
	now := time.Now()

	d := Delivery{ID: "d1", Status: StatusPending, CustomerID: "u1", CreatedAt: now}
	if err := d.Validate(); err != nil {
		t.Fatalf("pending delivery should be valid: %v", err)
	}

	d.CourierID = &courier
	if err := d.Validate(); err == nil {
		t.Error("PENDING with courier must be invalid")
	}

	d.Status = StatusAssigned
	if err := d.Validate(); err != nil {
		t.Fatalf("assigned delivery should be valid: %v", err)
	}

	d.Status = StatusDelivered
	if err := d.Validate(); err == nil {
		t.Error("DELIVERED without delivered_at must be invalid")
	}
	d.DeliveredAt = &now
	if err := d.Validate(); err != nil {
		t.Fatalf("delivered delivery should be valid: %v", err)
	}
}
