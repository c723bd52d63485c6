package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Realtime
	FieldClientID       = "client_id"
	FieldConversationID = "conversation_id"
	FieldMessageID      = "message_id"
	FieldRoom           = "room"
	FieldChannel        = "channel"
	FieldEvent          = "event"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
