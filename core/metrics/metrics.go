// Package metrics defines the observability hooks of the engine. Sinks are
// injected; a nil or Nop sink keeps the hot path allocation-free.
package metrics

import "time"

// EventHandled describes one bus message processed by a consumer.
type EventHandled struct {
	Topic    string
	Group    string
	Duration time.Duration
	Failed   bool
	Attempts int
}

// Assignment describes a courier binding that won its conditional update.
type Assignment struct {
	DeliveryID string
	CourierID  string
	// Trigger is the topic that caused the match, delivery.created or
	// courier.available (or "reconciler" for the sweep job).
	Trigger string
	Time    time.Time
}

// Arrival describes a completed delivery inferred from a GPS report.
type Arrival struct {
	DeliveryID string
	CourierID  string
	DistanceKm float64
	Time       time.Time
}

// LocationPoint is one GPS report forwarded to a time-series sink.
type LocationPoint struct {
	DeliveryID string
	CourierID  string
	Latitude   float64
	Longitude  float64
	Time       time.Time
}

// Sink records engine events for observability purposes.
type Sink interface {
	RecordEventHandled(ev EventHandled) error
	RecordAssignment(ev Assignment) error
	RecordArrival(ev Arrival) error
}

// LocationRecorder is an optional capability of a Sink for trajectory data.
type LocationRecorder interface {
	RecordLocation(ev LocationPoint) error
}

// NopSink discards every record.
type NopSink struct{}

func (NopSink) RecordEventHandled(EventHandled) error { return nil }
func (NopSink) RecordAssignment(Assignment) error     { return nil }
func (NopSink) RecordArrival(Arrival) error           { return nil }
