// Package eventbus implements core/bus.Bus in memory. It backs unit tests
// and the broker-less local run mode; delivery is synchronous, one handler
// per (topic, group) as on the real broker.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/deliverytrack/engine/core/bus"
)

type subKey struct {
	topic string
	group string
}

// Bus is an in-memory topic/group publish-subscribe transport. Payloads are
// JSON-encoded so handlers exercise the same decode path as with a broker.
type Bus struct {
	mu     sync.RWMutex
	subs   map[subKey]bus.Handler
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[subKey]bus.Handler)}
}

// Publish encodes payload and invokes one handler per subscribed group,
// synchronously. Handler errors are swallowed like on the real consumer
// path: the message counts as delivered.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	var handlers []bus.Handler
	for k, h := range b.subs {
		if k.topic == topic {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		_ = h(ctx, raw)
	}
	return nil
}

// Subscribe registers h as the sole handler for (topic, group). A second
// registration for the same pair is a programming error.
func (b *Bus) Subscribe(topic, group string, h bus.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	key := subKey{topic: topic, group: group}
	if _, dup := b.subs[key]; dup {
		return fmt.Errorf("duplicate subscription for %s (%s)", topic, group)
	}
	b.subs[key] = h
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.subs = nil
	b.mu.Unlock()
	return nil
}
