package domain

import "time"

// Message content types.
const (
	ContentTypeText     = "text"
	ContentTypeImage    = "image"
	ContentTypeVideo    = "video"
	ContentTypeAudio    = "audio"
	ContentTypeFile     = "file"
	ContentTypeLocation = "location"
	ContentTypeContact  = "contact"
	ContentTypeSystem   = "system"
)

// Message is immutable after creation except for the monotonic growth of
// ReadBy and DeliveredTo.
type Message struct {
	ID             string       `bson:"_id" json:"id"`
	ConversationID string       `bson:"conversationId" json:"conversationId"`
	SenderID       string       `bson:"sender" json:"senderId"`
	SenderName     string       `bson:"-" json:"senderName,omitempty"`
	SenderAvatar   string       `bson:"-" json:"senderAvatar,omitempty"`
	Content        string       `bson:"content" json:"content"`
	ContentType    string       `bson:"contentType" json:"contentType"`
	Attachments    []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	ReadBy         []string     `bson:"readBy" json:"readBy"`
	DeliveredTo    []string     `bson:"deliveredTo" json:"deliveredTo"`
	ReplyTo        string       `bson:"replyTo,omitempty" json:"replyTo,omitempty"`
	CreatedAt      time.Time    `bson:"createdAt" json:"createdAt"`
}

type Attachment struct {
	Type         string `bson:"type" json:"type"`
	URL          string `bson:"url" json:"url"`
	Name         string `bson:"name,omitempty" json:"name,omitempty"`
	Size         int64  `bson:"size,omitempty" json:"size,omitempty"`
	MimeType     string `bson:"mimeType,omitempty" json:"mimeType,omitempty"`
	Width        int    `bson:"width,omitempty" json:"width,omitempty"`
	Height       int    `bson:"height,omitempty" json:"height,omitempty"`
	Duration     int    `bson:"duration,omitempty" json:"duration,omitempty"`
	ThumbnailURL string `bson:"thumbnailUrl,omitempty" json:"thumbnailUrl,omitempty"`
}

// MessageDraft is a client send request before validation.
type MessageDraft struct {
	ConversationID string       `json:"conversationId"`
	Content        string       `json:"content,omitempty"`
	ContentType    string       `json:"contentType,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	ReplyTo        string       `json:"replyTo,omitempty"`
}

// Message status values carried by message_status_updated events.
const (
	StatusRead      = "read"
	StatusDelivered = "delivered"
)
