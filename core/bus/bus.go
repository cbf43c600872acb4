// Package bus abstracts the message transport used between the REST layer,
// the engine and the mobile clients.
package bus

import "context"

// Handler processes one raw message payload. Delivery is at-least-once: a
// handler may see the same logical event more than once and must be
// idempotent. Returning an error marks the message failed; whether it is
// retried is the subscriber's policy, the message is consumed either way.
type Handler func(ctx context.Context, payload []byte) error

// Bus is the publish/subscribe transport over named topics.
//
// Subscribe registers one concurrent handler stream per (topic, groupID);
// instances sharing a groupID compete for messages. When messaging is
// administratively disabled, Publish is a silent no-op and Subscribe
// registers nothing; callers are expected to call both unconditionally.
type Bus interface {
	// Publish JSON-encodes payload and sends it on topic.
	Publish(ctx context.Context, topic string, payload any) error
	// Subscribe registers h for topic under the given consumer group.
	Subscribe(topic, groupID string, h Handler) error
	// Close releases producers and consumers, letting in-flight handler
	// invocations finish.
	Close() error
}
