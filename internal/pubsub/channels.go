package pubsub

import "fmt"

// Channel and room naming conventions.
//
// Rooms are process-local broadcast groups; each room with local members
// is mirrored by one broker channel so fan-out crosses processes.

// PresenceChannel is the per-principal presence feed.
func PresenceChannel(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

// RoomChannel is the broker channel mirroring one room.
func RoomChannel(room string) string {
	return fmt.Sprintf("room:%s", room)
}

// ConversationRoom is the room for one conversation's subscribers.
func ConversationRoom(conversationID string) string {
	return fmt.Sprintf("conversation:%s", conversationID)
}

// UserRoom is the personal room used for direct pushes to a principal's
// connections (presence updates, DMs-as-events).
func UserRoom(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}
