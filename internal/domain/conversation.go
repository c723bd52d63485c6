package domain

import "time"

// Conversation types.
const (
	ConversationPrivate   = "private"
	ConversationGroup     = "group"
	ConversationBroadcast = "broadcast"
)

type Conversation struct {
	ID            string    `bson:"_id" json:"id"`
	Type          string    `bson:"type" json:"type"`
	Name          string    `bson:"name,omitempty" json:"name,omitempty"`
	Members       []string  `bson:"members" json:"members"`
	LastMessageID string    `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasMember reports whether userID is a current member.
func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}
