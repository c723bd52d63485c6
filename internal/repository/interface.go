package repository

import (
	"context"
	"errors"
	"time"

	"github.com/chatmesh/server/internal/domain"
)

// ErrNotFound is returned when a looked-up document does not exist.
var ErrNotFound = errors.New("not found")

// UserRepository reads and mutates user profiles. Implementations must
// never expose credential fields.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	SetPresence(ctx context.Context, id string, online bool, lastSeen *time.Time) error
	// FindOfflineWithDevices returns the offline users among ids that
	// have at least one registered push subscription.
	FindOfflineWithDevices(ctx context.Context, ids []string) ([]domain.User, error)
}

// ConversationRepository answers membership questions against the
// authoritative store. Membership is never cached by callers.
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
	IDsForMember(ctx context.Context, userID string) ([]string, error)
	// PrivatePartners returns the distinct other members of the user's
	// private conversations (the presence contact graph).
	PrivatePartners(ctx context.Context, userID string) ([]string, error)
	SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error
}

// MessageRepository persists messages and applies idempotent status-set
// mutations. MarkRead/MarkDelivered report whether the call actually
// inserted the user into the set; false means the state was already
// present and no broadcast should follow.
type MessageRepository interface {
	Insert(ctx context.Context, msg *domain.Message) error
	MarkRead(ctx context.Context, messageID, conversationID, userID string) (bool, error)
	MarkDelivered(ctx context.Context, messageID, conversationID, userID string) (bool, error)
}
