package notify

import (
	"strings"

	"github.com/chatmesh/server/internal/domain"
)

const previewLimit = 50

// Preview derives the notification body from a message: its text
// content, or a bracketed tag for attachment-only messages, truncated
// to 50 characters with an ellipsis.
func Preview(msg *domain.Message) string {
	preview := msg.Content
	if preview == "" && len(msg.Attachments) > 0 {
		t := msg.Attachments[0].Type
		if t != "" {
			preview = "[" + strings.ToUpper(t[:1]) + t[1:] + "]"
		}
	}

	// Truncate on runes, not bytes, so multi-byte content is never cut
	// mid-character.
	if runes := []rune(preview); len(runes) > previewLimit {
		preview = string(runes[:previewLimit-3]) + "..."
	}
	return preview
}

// Title picks the sender name for private conversations and the
// conversation name for groups.
func Title(conv *domain.Conversation, senderName string) string {
	if conv.Type == domain.ConversationPrivate {
		if senderName == "" {
			return "Someone"
		}
		return senderName
	}
	return conv.Name
}
