package metrics

import (
	coremetrics "github.com/deliverytrack/engine/core/metrics"
)

// NewSink builds the sink stack selected by cfg. With everything disabled it
// returns a NopSink; with both backends enabled the sinks are fanned out
// through a MultiSink. An unreachable InfluxDB degrades to a no-op rather
// than failing startup.
func NewSink(cfg Config) (coremetrics.Sink, error) {
	var sinks []coremetrics.Sink
	if cfg.PrometheusEnabled {
		prom, err := NewPromSink()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
