// Package kafka implements the message bus over Kafka using Sarama consumer
// groups. Delivery is at-least-once; handler errors never block the offset,
// so a failed handler means a consumed message with no effect.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	corebus "github.com/deliverytrack/engine/core/bus"
	"github.com/deliverytrack/engine/core/logger"
)

// Config defines the broker connection. With Enabled false the bus runs in
// no-op mode: publish does nothing, subscribe registers nothing.
type Config struct {
	Enabled  bool     `json:"enabled"`
	Brokers  []string `json:"brokers"`
	ClientID string   `json:"client_id"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.ClientID == "" {
		c.ClientID = "delivery-track-engine"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("empty broker address")
		}
	}
	return nil
}

// Bus is the Kafka-backed implementation of core/bus.Bus.
type Bus struct {
	enabled  bool
	brokers  []string
	conf     *sarama.Config
	producer sarama.SyncProducer
	log      logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	groups []sarama.ConsumerGroup
}

// encoder and consumer JSON conventions match the original topic contracts:
// values are JSON objects, offsets start at the latest position.
func newSaramaConfig(clientID string) *sarama.Config {
	conf := sarama.NewConfig()
	conf.ClientID = clientID
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForLocal
	conf.Consumer.Offsets.Initial = sarama.OffsetNewest
	return conf
}

// New connects to the brokers, or returns a disabled no-op bus when
// messaging is administratively off.
func New(cfg Config, log logger.Logger) (*Bus, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Infof("messaging disabled, bus running in no-op mode")
		return &Bus{enabled: false, log: log}, nil
	}

	conf := newSaramaConfig(cfg.ClientID)
	producer, err := sarama.NewSyncProducer(cfg.Brokers, conf)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	log.Infof("kafka producer connected to %v", cfg.Brokers)
	return &Bus{
		enabled:  true,
		brokers:  cfg.Brokers,
		conf:     conf,
		producer: producer,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Publish JSON-encodes payload and sends it on topic. On a disabled bus this
// is a silent no-op.
func (b *Bus) Publish(_ context.Context, topic string, payload any) error {
	if !b.enabled {
		b.log.Debugf("messaging disabled, not publishing to %s", topic)
		return nil
	}
	value, err := encode(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe starts one consumer group stream for (topic, groupID). Instances
// of the service sharing groupID compete for messages.
func (b *Bus) Subscribe(topic, groupID string, h corebus.Handler) error {
	if !b.enabled {
		b.log.Debugf("messaging disabled, not consuming %s", topic)
		return nil
	}
	group, err := sarama.NewConsumerGroup(b.brokers, groupID, b.conf)
	if err != nil {
		return fmt.Errorf("consumer group %s: %w", groupID, err)
	}
	b.mu.Lock()
	b.groups = append(b.groups, group)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		handler := &groupHandler{topic: topic, handle: h, log: b.log}
		for {
			if err := group.Consume(b.ctx, []string{topic}, handler); err != nil {
				if b.ctx.Err() != nil {
					return
				}
				b.log.Errorf("consume %s (%s): %v", topic, groupID, err)
				time.Sleep(time.Second)
			}
			if b.ctx.Err() != nil {
				return
			}
		}
	}()
	b.log.Infof("consumer %s subscribed to %s", groupID, topic)
	return nil
}

// Close stops all consumer streams and the producer, letting in-flight
// handler calls finish.
func (b *Bus) Close() error {
	if !b.enabled {
		return nil
	}
	b.cancel()
	b.mu.Lock()
	groups := b.groups
	b.groups = nil
	b.mu.Unlock()
	for _, g := range groups {
		if err := g.Close(); err != nil {
			b.log.Warnf("close consumer group: %v", err)
		}
	}
	b.wg.Wait()
	return b.producer.Close()
}

func encode(payload any) ([]byte, error) {
	if raw, ok := payload.([]byte); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}

// groupHandler adapts a bus.Handler to the Sarama consumer group contract.
// Messages are marked consumed regardless of handler outcome: there is no
// redelivery-on-error and no dead-letter topic.
type groupHandler struct {
	topic  string
	handle corebus.Handler
	log    logger.Logger
}

func (g *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (g *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (g *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := g.handle(sess.Context(), msg.Value); err != nil {
			g.log.Errorf("handler on %s: %v", g.topic, err)
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
