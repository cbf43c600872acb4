// Package mqtt bridges courier GPS devices into the engine. Trackers publish
// their reports over MQTT; the gateway validates them, appends them to the
// location store and republishes location.updated on the bus.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	corebus "github.com/deliverytrack/engine/core/bus"
	"github.com/deliverytrack/engine/core/event"
	"github.com/deliverytrack/engine/core/logger"
	"github.com/deliverytrack/engine/core/model"
	"github.com/deliverytrack/engine/core/store"
)

// Config defines the connection parameters for the device-facing broker.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// Topic is the subscription filter for device reports.
	Topic string `json:"topic"`
	QoS   byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "delivery-track-gps-gateway"
	}
	if c.Topic == "" {
		c.Topic = "courier/+/location"
	}
	if c.QoS == 0 {
		c.QoS = 1
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Gateway consumes device reports and feeds them into the system.
type Gateway struct {
	cli   pahoClient
	bus   corebus.Bus
	locs  store.LocationStore
	log   logger.Logger
	topic string
	qos   byte
	now   func() time.Time
}

// NewGateway connects to the broker and returns the gateway, or (nil, nil)
// when the device bridge is disabled.
func NewGateway(cfg Config, b corebus.Bus, locs store.LocationStore, log logger.Logger) (*Gateway, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	g := &Gateway{
		bus:   b,
		locs:  locs,
		log:   log,
		topic: cfg.Topic,
		qos:   cfg.QoS,
		now:   time.Now,
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("gps gateway connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("gps gateway connection lost: %v", err)
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	g.cli = cli
	return g, nil
}

// Start subscribes to the device report topic.
func (g *Gateway) Start() error {
	token := g.cli.Subscribe(g.topic, g.qos, g.onReport)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// onReport ingests one device report. Malformed reports are dropped with a
// warning; a store fault does not suppress the bus event, tracking degrades
// to at-most-trajectory-loss.
func (g *Gateway) onReport(_ paho.Client, msg paho.Message) {
	var report event.LocationUpdated
	if err := json.Unmarshal(msg.Payload(), &report); err != nil {
		g.log.Warnf("dropping malformed gps report on %s: %v", msg.Topic(), err)
		return
	}
	if report.DeliveryID == "" {
		g.log.Warnf("dropping gps report without deliveryId on %s", msg.Topic())
		return
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = g.now()
	}

	ctx := context.Background()
	if err := g.locs.AppendLocation(ctx, model.Location{
		ID:         uuid.NewString(),
		DeliveryID: report.DeliveryID,
		Latitude:   report.Latitude,
		Longitude:  report.Longitude,
		Timestamp:  report.Timestamp,
	}); err != nil {
		g.log.Errorf("append location for %s: %v", report.DeliveryID, err)
	}

	if err := g.bus.Publish(ctx, event.TopicLocationUpdated, report); err != nil {
		g.log.Errorf("publish location.updated for %s: %v", report.DeliveryID, err)
	}
}

// Close disconnects from the broker.
func (g *Gateway) Close() {
	if g.cli != nil && g.cli.IsConnected() {
		g.cli.Disconnect(250)
	}
}
