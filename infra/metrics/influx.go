package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/deliverytrack/engine/core/metrics"
	"github.com/deliverytrack/engine/infra/logger"
)

// InfluxSink writes engine events to an InfluxDB instance using the official
// client. It also records raw GPS reports, which makes courier trajectories
// queryable next to the arrival events they produced.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordEventHandled writes one processed bus message as a point.
func (s *InfluxSink) RecordEventHandled(ev coremetrics.EventHandled) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("delivery_event").
		AddTag("topic", ev.Topic).
		AddTag("group", ev.Group).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		AddField("failed", ev.Failed).
		AddField("attempts", ev.Attempts).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment writes a courier binding.
func (s *InfluxSink) RecordAssignment(ev coremetrics.Assignment) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("delivery_assigned").
		AddTag("delivery_id", ev.DeliveryID).
		AddTag("courier_id", ev.CourierID).
		AddTag("trigger", ev.Trigger).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordArrival writes a completed delivery with its closing distance.
func (s *InfluxSink) RecordArrival(ev coremetrics.Arrival) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("delivery_arrived").
		AddTag("delivery_id", ev.DeliveryID).
		AddTag("courier_id", ev.CourierID).
		AddField("distance_km", round3(ev.DistanceKm)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordLocation writes one GPS report as a trajectory point.
func (s *InfluxSink) RecordLocation(ev coremetrics.LocationPoint) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("courier_location").
		AddTag("delivery_id", ev.DeliveryID)
	if ev.CourierID != "" {
		p = p.AddTag("courier_id", ev.CourierID)
	}
	p = p.AddField("latitude", ev.Latitude).
		AddField("longitude", ev.Longitude).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
