package metrics

import coremetrics "github.com/deliverytrack/engine/core/metrics"

// MultiSink fans engine events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordEventHandled forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordEventHandled(ev coremetrics.EventHandled) error {
	for _, s := range m.Sinks {
		if err := s.RecordEventHandled(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssignment forwards assignment events.
func (m *MultiSink) RecordAssignment(ev coremetrics.Assignment) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignment(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordArrival forwards arrival events.
func (m *MultiSink) RecordArrival(ev coremetrics.Arrival) error {
	for _, s := range m.Sinks {
		if err := s.RecordArrival(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordLocation forwards GPS reports to sinks that support trajectories.
func (m *MultiSink) RecordLocation(ev coremetrics.LocationPoint) error {
	for _, s := range m.Sinks {
		if lr, ok := s.(coremetrics.LocationRecorder); ok {
			if err := lr.RecordLocation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
