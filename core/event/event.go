// Package event defines the topics and payload schemas carried on the
// message bus, plus the decoding done at the bus boundary. Payloads are
// JSON-encoded; every topic has exactly one schema.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Bus topics. courier.busy is reserved for the mobile client and is never
// emitted by the engine.
const (
	TopicDeliveryCreated       = "delivery.created"
	TopicDeliveryAssigned      = "delivery.assigned"
	TopicDeliveryStatusUpdated = "delivery.status.updated"
	TopicLocationUpdated       = "location.updated"
	TopicCourierAvailable      = "courier.available"
	TopicCourierBusy           = "courier.busy"
)

var (
	// ErrUnknownTopic is returned when a message arrives on a topic with no
	// registered schema.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrMalformedPayload is returned when a payload does not decode into the
	// schema of its topic or fails validation.
	ErrMalformedPayload = errors.New("malformed payload")
)

// DeliveryCreated announces a freshly created delivery awaiting assignment.
type DeliveryCreated struct {
	DeliveryID string `json:"deliveryId"`
}

// CourierAvailable announces that a courier has no active delivery.
type CourierAvailable struct {
	CourierID   string `json:"courierId"`
	CourierName string `json:"courierName"`
}

// DeliveryAssigned announces a courier binding produced by the assignment
// engine.
type DeliveryAssigned struct {
	DeliveryID  string `json:"deliveryId"`
	CourierID   string `json:"courierId"`
	CourierName string `json:"courierName"`
}

// LocationUpdated carries a single GPS report for an active delivery.
type LocationUpdated struct {
	DeliveryID  string    `json:"deliveryId"`
	CourierID   string    `json:"courierId"`
	CourierName string    `json:"courierName"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Timestamp   time.Time `json:"timestamp"`
}

// DeliveryStatusUpdated announces a status transition applied by the engine.
type DeliveryStatusUpdated struct {
	DeliveryID string    `json:"deliveryId"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// Decode parses the payload of the given topic into its typed event and
// validates the fields the engine depends on. Unknown topics and payloads
// that do not match their schema are reported as distinct error kinds.
func Decode(topic string, payload []byte) (any, error) {
	switch topic {
	case TopicDeliveryCreated:
		var ev DeliveryCreated
		if err := unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		if ev.DeliveryID == "" {
			return nil, fmt.Errorf("%w: %s without deliveryId", ErrMalformedPayload, topic)
		}
		return ev, nil
	case TopicCourierAvailable:
		var ev CourierAvailable
		if err := unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		if ev.CourierID == "" {
			return nil, fmt.Errorf("%w: %s without courierId", ErrMalformedPayload, topic)
		}
		return ev, nil
	case TopicDeliveryAssigned:
		var ev DeliveryAssigned
		if err := unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		if ev.DeliveryID == "" || ev.CourierID == "" {
			return nil, fmt.Errorf("%w: %s missing ids", ErrMalformedPayload, topic)
		}
		return ev, nil
	case TopicLocationUpdated:
		var ev LocationUpdated
		if err := unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		if ev.DeliveryID == "" {
			return nil, fmt.Errorf("%w: %s without deliveryId", ErrMalformedPayload, topic)
		}
		return ev, nil
	case TopicDeliveryStatusUpdated:
		var ev DeliveryStatusUpdated
		if err := unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		if ev.DeliveryID == "" {
			return nil, fmt.Errorf("%w: %s without deliveryId", ErrMalformedPayload, topic)
		}
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}

func unmarshal(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
