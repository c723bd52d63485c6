package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event is the envelope published on broker channels. Payload carries
// the fully rendered client event so receiving processes can push it to
// local connections without re-marshalling.
type Event struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	Exclude   string          `json:"exclude,omitempty"` // connection id to skip on delivery
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent wraps payload into an envelope with the current timestamp.
func NewEvent(eventType, room string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Room:      room,
		Payload:   data,
		Timestamp: time.Now(),
	}, nil
}

// UnmarshalPayload unmarshals the event payload into the given struct.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher publishes events to the broker.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber subscribes to broker channels. The broker delivers events
// on one channel in publish order; there is no cross-channel ordering.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

// Broker combines Publisher and Subscriber.
type Broker interface {
	Publisher
	Subscriber
	Close() error
}
