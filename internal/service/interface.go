package service

import (
	"context"

	"github.com/chatmesh/server/internal/domain"
	"github.com/chatmesh/server/internal/hub"
)

// ChatService drives every realtime operation for a connection. All
// methods are safe for concurrent use across connections; failures are
// scoped to the calling connection, never the room.
type ChatService interface {
	// Authenticate verifies the bearer token and resolves the principal
	// profile. Called before the connection goes active.
	Authenticate(ctx context.Context, token string) (*domain.User, error)

	// Connect registers presence and joins the personal room plus every
	// conversation room the principal is currently a member of.
	Connect(ctx context.Context, c *hub.Client) error

	// Disconnect tears the connection down: presence goes offline when
	// this was the principal's last local connection, and contacts are
	// notified with a lastSeen timestamp.
	Disconnect(ctx context.Context, c *hub.Client) error

	JoinConversation(ctx context.Context, c *hub.Client, conversationID string) error
	LeaveConversation(ctx context.Context, c *hub.Client, conversationID string) error

	SendMessage(ctx context.Context, c *hub.Client, draft *domain.MessageDraft) error
	MarkRead(ctx context.Context, c *hub.Client, messageID, conversationID string) error
	MarkDelivered(ctx context.Context, c *hub.Client, messageID, conversationID string) error

	Typing(ctx context.Context, c *hub.Client, conversationID string) error
	StopTyping(ctx context.Context, c *hub.Client, conversationID string) error

	SubscribePresence(ctx context.Context, c *hub.Client, targetID string) error
	UnsubscribePresence(ctx context.Context, c *hub.Client, targetID string) error
}
