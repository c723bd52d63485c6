package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chatmesh/server/internal/archive"
	"github.com/chatmesh/server/internal/audit"
	"github.com/chatmesh/server/internal/auth"
	"github.com/chatmesh/server/internal/cache"
	"github.com/chatmesh/server/internal/domain"
	"github.com/chatmesh/server/internal/hub"
	"github.com/chatmesh/server/internal/notify"
	"github.com/chatmesh/server/internal/presence"
	"github.com/chatmesh/server/internal/pubsub"
	"github.com/chatmesh/server/internal/repository"
	"github.com/chatmesh/server/pkg/log"
)

const notifyTimeout = 10 * time.Second

type chatService struct {
	verifier      *auth.Verifier
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	userCache     cache.UserCache // may be nil
	hub           *hub.Hub
	bridge        *pubsub.Bridge
	presence      *presence.Registry
	gateway       notify.Gateway
	archiver      archive.Producer
}

func NewChatService(
	verifier *auth.Verifier,
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	userCache cache.UserCache,
	h *hub.Hub,
	bridge *pubsub.Bridge,
	reg *presence.Registry,
	gateway notify.Gateway,
	archiver archive.Producer,
) ChatService {
	return &chatService{
		verifier:      verifier,
		users:         users,
		conversations: conversations,
		messages:      messages,
		userCache:     userCache,
		hub:           h,
		bridge:        bridge,
		presence:      reg,
		gateway:       gateway,
		archiver:      archiver,
	}
}

func (s *chatService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	return s.loadPrincipal(ctx, userID)
}

// loadPrincipal resolves a profile through the read-through cache.
func (s *chatService) loadPrincipal(ctx context.Context, userID string) (*domain.User, error) {
	if s.userCache != nil {
		if user, err := s.userCache.Get(ctx, userID); err == nil {
			return user, nil
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, err
	}

	if s.userCache != nil {
		if err := s.userCache.Set(ctx, user); err != nil {
			log.L().Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to cache profile")
		}
	}
	return user, nil
}

func (s *chatService) Connect(ctx context.Context, c *hub.Client) error {
	userID := c.Session.GetUserID()

	if err := s.presence.MarkOnline(ctx, userID, c.ID); err != nil {
		return fmt.Errorf("failed to register presence: %w", err)
	}

	s.hub.JoinRoom(c, pubsub.UserRoom(userID))

	ids, err := s.conversations.IDsForMember(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	for _, id := range ids {
		s.hub.JoinRoom(c, pubsub.ConversationRoom(id))
	}

	audit.Log(ctx, audit.ActionConnect, userID, "connection active")
	return nil
}

func (s *chatService) Disconnect(ctx context.Context, c *hub.Client) error {
	if !c.Session.Close() {
		return nil
	}

	userID := c.Session.GetUserID()
	if userID == "" {
		// Never authenticated; nothing to tear down.
		return nil
	}

	s.presence.DropObserver(c)

	if err := s.presence.MarkOffline(ctx, userID, c.ID); err != nil {
		log.L().Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to mark offline")
	}

	audit.Log(ctx, audit.ActionDisconnect, userID, "connection closed")
	return nil
}

func (s *chatService) JoinConversation(ctx context.Context, c *hub.Client, conversationID string) error {
	if !c.Session.IsActive() {
		return domain.ErrUnauthenticated
	}
	userID := c.Session.GetUserID()

	// Membership can be revoked mid-session: re-validate on every join,
	// never against a cache.
	member, err := s.conversations.IsMember(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	if !member {
		return domain.ErrAccessDenied
	}

	room := pubsub.ConversationRoom(conversationID)
	s.hub.JoinRoom(c, room)

	audit.LogTarget(ctx, audit.ActionJoin, userID, conversationID, "joined conversation")

	return s.bridge.Broadcast(ctx, room, domain.EvUserActive, c.ID, &domain.RoomActivityEvent{
		Type:           domain.EvUserActive,
		UserID:         userID,
		ConversationID: conversationID,
	})
}

func (s *chatService) LeaveConversation(ctx context.Context, c *hub.Client, conversationID string) error {
	if !c.Session.IsActive() {
		return domain.ErrUnauthenticated
	}
	userID := c.Session.GetUserID()

	room := pubsub.ConversationRoom(conversationID)
	s.hub.LeaveRoom(c, room)

	audit.LogTarget(ctx, audit.ActionLeave, userID, conversationID, "left conversation")

	return s.bridge.Broadcast(ctx, room, domain.EvUserInactive, c.ID, &domain.RoomActivityEvent{
		Type:           domain.EvUserInactive,
		UserID:         userID,
		ConversationID: conversationID,
	})
}

func (s *chatService) SendMessage(ctx context.Context, c *hub.Client, draft *domain.MessageDraft) error {
	if !c.Session.IsActive() {
		return domain.ErrUnauthenticated
	}
	userID := c.Session.GetUserID()

	if draft.ConversationID == "" || (draft.Content == "" && len(draft.Attachments) == 0) {
		return domain.ErrInvalidMessage
	}

	conv, err := s.conversations.GetByID(ctx, draft.ConversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrAccessDenied
		}
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	if !conv.HasMember(userID) {
		return domain.ErrAccessDenied
	}

	contentType := draft.ContentType
	if contentType == "" {
		contentType = domain.ContentTypeText
	}

	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: draft.ConversationID,
		SenderID:       userID,
		Content:        draft.Content,
		ContentType:    contentType,
		Attachments:    draft.Attachments,
		ReadBy:         []string{userID},
		DeliveredTo:    []string{userID},
		ReplyTo:        draft.ReplyTo,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.messages.Insert(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	if err := s.conversations.SetLastMessage(ctx, conv.ID, msg.ID, msg.CreatedAt); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	// Enrich with sender display fields for client rendering.
	msg.SenderName = c.Session.GetUsername()
	msg.SenderAvatar = c.Session.GetAvatar()

	room := pubsub.ConversationRoom(conv.ID)
	if err := s.bridge.Broadcast(ctx, room, domain.EvMessageReceived, "", &domain.MessageReceivedEvent{
		Type:    domain.EvMessageReceived,
		Message: msg,
	}); err != nil {
		return err
	}

	audit.LogTarget(ctx, audit.ActionSendMessage, userID, conv.ID, "message sent")

	if err := s.archiver.Produce(ctx, msg); err != nil {
		log.L().Warn().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to archive message")
	}

	// Offline notification runs detached; its failure must not fail the
	// send, and the connection may be gone before it completes.
	go s.notifyOffline(conv, msg)

	return nil
}

func (s *chatService) MarkRead(ctx context.Context, c *hub.Client, messageID, conversationID string) error {
	return s.updateStatus(ctx, c, messageID, conversationID, domain.StatusRead)
}

func (s *chatService) MarkDelivered(ctx context.Context, c *hub.Client, messageID, conversationID string) error {
	return s.updateStatus(ctx, c, messageID, conversationID, domain.StatusDelivered)
}

func (s *chatService) updateStatus(ctx context.Context, c *hub.Client, messageID, conversationID, status string) error {
	if !c.Session.IsActive() {
		return domain.ErrUnauthenticated
	}
	userID := c.Session.GetUserID()

	var (
		updated bool
		err     error
	)
	switch status {
	case domain.StatusRead:
		updated, err = s.messages.MarkRead(ctx, messageID, conversationID, userID)
	case domain.StatusDelivered:
		updated, err = s.messages.MarkDelivered(ctx, messageID, conversationID, userID)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	if !updated {
		// Already recorded (or unknown message): not an error, and no
		// broadcast follows.
		return nil
	}

	if status == domain.StatusRead {
		audit.LogTarget(ctx, audit.ActionMarkRead, userID, messageID, "message read")
	}

	return s.bridge.Broadcast(ctx, pubsub.ConversationRoom(conversationID), domain.EvMessageStatusUpdated, "", &domain.MessageStatusUpdatedEvent{
		Type:      domain.EvMessageStatusUpdated,
		MessageID: messageID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

func (s *chatService) Typing(ctx context.Context, c *hub.Client, conversationID string) error {
	return s.typingSignal(ctx, c, conversationID, domain.EvUserTyping)
}

func (s *chatService) StopTyping(ctx context.Context, c *hub.Client, conversationID string) error {
	return s.typingSignal(ctx, c, conversationID, domain.EvUserStopTyping)
}

// typingSignal is fire-and-forget: no persistence, no acknowledgment,
// and no membership query beyond the connection already being in the
// room. The sender never receives its own signal.
func (s *chatService) typingSignal(ctx context.Context, c *hub.Client, conversationID, eventType string) error {
	if !c.Session.IsActive() {
		return domain.ErrUnauthenticated
	}

	room := pubsub.ConversationRoom(conversationID)
	if !s.hub.InRoom(c.ID, room) {
		return nil
	}

	return s.bridge.Broadcast(ctx, room, eventType, c.ID, &domain.RoomActivityEvent{
		Type:           eventType,
		UserID:         c.Session.GetUserID(),
		ConversationID: conversationID,
	})
}

func (s *chatService) SubscribePresence(ctx context.Context, c *hub.Client, targetID string) error {
	if !c.Session.IsActive() {
		return domain.ErrUnauthenticated
	}
	if targetID == "" {
		return domain.ErrInvalidMessage
	}
	return s.presence.Subscribe(c, targetID)
}

func (s *chatService) UnsubscribePresence(ctx context.Context, c *hub.Client, targetID string) error {
	if !c.Session.IsActive() {
		return domain.ErrUnauthenticated
	}
	s.presence.Unsubscribe(c, targetID)
	return nil
}

// notifyOffline pushes a preview of the message to every offline member
// of the conversation through the notification gateway.
func (s *chatService) notifyOffline(conv *domain.Conversation, msg *domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	recipients := make([]string, 0, len(conv.Members))
	for _, m := range conv.Members {
		if m != msg.SenderID {
			recipients = append(recipients, m)
		}
	}

	offline, err := s.users.FindOfflineWithDevices(ctx, recipients)
	if err != nil {
		log.L().Warn().Err(err).Str(log.FieldConversationID, conv.ID).Msg("failed to resolve offline members")
		return
	}
	if len(offline) == 0 {
		return
	}

	targets := make([]notify.Target, 0, len(offline))
	for _, u := range offline {
		subs := make([]notify.Subscription, 0, len(u.Subscriptions))
		for _, ps := range u.Subscriptions {
			subs = append(subs, notify.Subscription{Endpoint: ps.Endpoint, P256dh: ps.P256dh, Auth: ps.Auth})
		}
		targets = append(targets, notify.Target{UserID: u.ID, Subscriptions: subs})
	}

	n := notify.Notification{
		Title: notify.Title(conv, msg.SenderName),
		Body:  notify.Preview(msg),
		Data: map[string]string{
			"type":           "new_message",
			"conversationId": conv.ID,
			"messageId":      msg.ID,
			"senderId":       msg.SenderID,
		},
	}

	if err := s.gateway.Send(ctx, targets, n); err != nil {
		log.L().Warn().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to send offline notifications")
	}
}
