package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/deliverytrack/engine/core/metrics"
)

// PromSink records engine events as Prometheus metrics.
type PromSink struct {
	events      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	assignments *prometheus.CounterVec
	arrivals    prometheus.Counter
	arrivalDist prometheus.Histogram
}

// NewPromSink registers the engine collectors on the default Prometheus
// registerer. The metrics server is started separately.
func NewPromSink() (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the collectors on the provided registerer.
// A nil registerer defaults to the global one. Collectors that are already
// registered are reused, so repeated construction is safe.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_events_total",
		Help: "Total number of bus messages processed by the engines",
	}, []string{"topic", "group", "failed"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_event_duration_seconds",
		Help:    "Time spent handling one bus message",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic", "group"})
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_assignments_total",
		Help: "Total number of courier assignments, by triggering topic",
	}, []string{"trigger"})
	arrivals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_arrivals_total",
		Help: "Total number of deliveries completed by arrival detection",
	})
	arrivalDist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "delivery_arrival_distance_km",
		Help:    "Distance to destination at the report that completed a delivery",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.075, 0.1},
	})

	if err := reg.Register(events); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			events = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(arrivals); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			arrivals = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(arrivalDist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			arrivalDist = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		events:      events,
		duration:    duration,
		assignments: assignments,
		arrivals:    arrivals,
		arrivalDist: arrivalDist,
	}, nil
}

// RecordEventHandled increments the event counter and observes the duration.
func (s *PromSink) RecordEventHandled(ev coremetrics.EventHandled) error {
	s.events.WithLabelValues(ev.Topic, ev.Group, strconv.FormatBool(ev.Failed)).Inc()
	s.duration.WithLabelValues(ev.Topic, ev.Group).Observe(ev.Duration.Seconds())
	return nil
}

// RecordAssignment increments the assignment counter for the trigger.
func (s *PromSink) RecordAssignment(ev coremetrics.Assignment) error {
	s.assignments.WithLabelValues(ev.Trigger).Inc()
	return nil
}

// RecordArrival counts the completion and observes the closing distance.
func (s *PromSink) RecordArrival(ev coremetrics.Arrival) error {
	s.arrivals.Inc()
	s.arrivalDist.Observe(ev.DistanceKm)
	return nil
}
