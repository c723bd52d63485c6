package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/chatmesh/server/internal/domain"
)

func TestPreviewShortContent(t *testing.T) {
	msg := &domain.Message{Content: "see you at noon"}
	assert.Equal(t, "see you at noon", Preview(msg))
}

func TestPreviewTruncatesLongContent(t *testing.T) {
	msg := &domain.Message{Content: strings.Repeat("a", 80)}
	got := Preview(msg)
	assert.Len(t, got, 50)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("a", 47), got[:47])
}

func TestPreviewTruncatesMultiByteContentOnRunes(t *testing.T) {
	msg := &domain.Message{Content: strings.Repeat("é", 60)}
	got := Preview(msg)

	assert.True(t, utf8.ValidString(got), "truncation must not split a rune")
	assert.Equal(t, 50, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("é", 47), strings.TrimSuffix(got, "..."))
}

func TestPreviewExactLimitNotTruncated(t *testing.T) {
	content := strings.Repeat("b", 50)
	assert.Equal(t, content, Preview(&domain.Message{Content: content}))
}

func TestPreviewAttachmentOnly(t *testing.T) {
	msg := &domain.Message{
		Attachments: []domain.Attachment{{Type: "image", URL: "https://cdn/x.png"}},
	}
	assert.Equal(t, "[Image]", Preview(msg))
}

func TestPreviewContentWinsOverAttachment(t *testing.T) {
	msg := &domain.Message{
		Content:     "look at this",
		Attachments: []domain.Attachment{{Type: "video"}},
	}
	assert.Equal(t, "look at this", Preview(msg))
}

func TestTitlePrivateUsesSenderName(t *testing.T) {
	conv := &domain.Conversation{Type: domain.ConversationPrivate, Name: "ignored"}
	assert.Equal(t, "Alice", Title(conv, "Alice"))
	assert.Equal(t, "Someone", Title(conv, ""))
}

func TestTitleGroupUsesConversationName(t *testing.T) {
	conv := &domain.Conversation{Type: domain.ConversationGroup, Name: "Weekend Plans"}
	assert.Equal(t, "Weekend Plans", Title(conv, "Alice"))
}
