package domain

import "time"

// User is the profile snapshot the realtime layer works with. Credentials
// never leave the repository layer; reads are projected to this shape.
type User struct {
	ID            string             `bson:"_id" json:"id"`
	Username      string             `bson:"username" json:"username"`
	Avatar        string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsOnline      bool               `bson:"isOnline" json:"isOnline"`
	LastSeen      *time.Time         `bson:"lastSeen,omitempty" json:"lastSeen,omitempty"`
	Subscriptions []PushSubscription `bson:"deviceTokens,omitempty" json:"-"`
}

// PushSubscription is one registered device push endpoint.
type PushSubscription struct {
	Endpoint string `bson:"endpoint" json:"endpoint"`
	P256dh   string `bson:"p256dh" json:"p256dh"`
	Auth     string `bson:"auth" json:"auth"`
}
