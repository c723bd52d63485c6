package domain

import "time"

// WebSocket event types from client.
const (
	EvJoinConversation    = "join_conversation"
	EvLeaveConversation   = "leave_conversation"
	EvNewMessage          = "new_message"
	EvMessageRead         = "message_read"
	EvMessageDelivered    = "message_delivered"
	EvTyping              = "typing"
	EvStopTyping          = "stop_typing"
	EvSubscribePresence   = "subscribe_presence"
	EvUnsubscribePresence = "unsubscribe_presence"
	EvPing                = "ping"
)

// WebSocket event types to client.
const (
	EvPresenceUpdate       = "presence_update"
	EvUserActive           = "user_active"
	EvUserInactive         = "user_inactive"
	EvMessageReceived      = "message_received"
	EvMessageStatusUpdated = "message_status_updated"
	EvUserTyping           = "user_typing"
	EvUserStopTyping       = "user_stop_typing"
	EvError                = "error"
	EvPong                 = "pong"
)

// BaseEvent is decoded first to select the concrete event variant.
// Unknown types are rejected with a BAD_REQUEST error event.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server events

type ConversationEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

type NewMessageEvent struct {
	Type string `json:"type"`
	MessageDraft
}

type MessageStatusRequest struct {
	Type           string `json:"type"`
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type PresenceTargetEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Server -> Client events

type PresenceUpdateEvent struct {
	Type     string     `json:"type"`
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen"`
}

type RoomActivityEvent struct {
	Type           string `json:"type"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

type MessageReceivedEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

type MessageStatusUpdatedEvent struct {
	Type      string    `json:"type"`
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorEvent(code, message string) *ErrorEvent {
	return &ErrorEvent{Type: EvError, Code: code, Message: message}
}

// ErrorEventFor builds the error event for a failed operation.
func ErrorEventFor(err error) *ErrorEvent {
	return NewErrorEvent(ErrorCode(err), err.Error())
}
