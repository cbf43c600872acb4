package metrics

import (
	"testing"
	"time"

	coremetrics "github.com/deliverytrack/engine/core/metrics"
)

type countingSink struct {
	events      int
	assignments int
	arrivals    int
	locations   int
}

func (c *countingSink) RecordEventHandled(coremetrics.EventHandled) error {
	c.events++
	return nil
}

func (c *countingSink) RecordAssignment(coremetrics.Assignment) error {
	c.assignments++
	return nil
}

func (c *countingSink) RecordArrival(coremetrics.Arrival) error {
	c.arrivals++
	return nil
}

type countingLocationSink struct {
	countingSink
}

func (c *countingLocationSink) RecordLocation(coremetrics.LocationPoint) error {
	c.locations++
	return nil
}

func TestMultiSink_FanOut(t *testing.T) {
	plain := &countingSink{}
	loc := &countingLocationSink{}
	multi := NewMultiSink(plain, loc)

	if err := multi.RecordEventHandled(coremetrics.EventHandled{Topic: "delivery.created"}); err != nil {
		t.Fatalf("event: %v", err)
	}
	if err := multi.RecordAssignment(coremetrics.Assignment{DeliveryID: "d1"}); err != nil {
		t.Fatalf("assignment: %v", err)
	}
	if err := multi.RecordArrival(coremetrics.Arrival{DeliveryID: "d1"}); err != nil {
		t.Fatalf("arrival: %v", err)
	}
	if err := multi.RecordLocation(coremetrics.LocationPoint{DeliveryID: "d1", Time: time.Now()}); err != nil {
		t.Fatalf("location: %v", err)
	}

	if plain.events != 1 || plain.assignments != 1 || plain.arrivals != 1 {
		t.Errorf("plain sink counts = %+v", *plain)
	}
	if loc.locations != 1 {
		t.Errorf("location sink should receive trajectory points, got %d", loc.locations)
	}
	if plain.locations != 0 {
		t.Errorf("plain sink must not receive trajectory points")
	}
}

func TestNewSink_Disabled(t *testing.T) {
	sink, err := NewSink(Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", sink)
	}
}
