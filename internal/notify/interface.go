package notify

import "context"

// Notification is one push payload for a set of target users.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Target identifies a recipient by principal id together with their
// registered device endpoints.
type Target struct {
	UserID        string
	Subscriptions []Subscription
}

// Subscription mirrors a browser push subscription.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Gateway delivers notifications to offline devices. Failures never
// propagate into the message path that triggered them.
type Gateway interface {
	Send(ctx context.Context, targets []Target, n Notification) error
}

// NopGateway discards all notifications. Used when push is disabled.
type NopGateway struct{}

func (NopGateway) Send(ctx context.Context, targets []Target, n Notification) error { return nil }
