package audit

import (
	"context"

	"github.com/chatmesh/server/pkg/log"
)

// Audit actions for the realtime engine.
const (
	ActionConnect     = "realtime.connect"
	ActionAuthFailed  = "realtime.auth_failed"
	ActionJoin        = "realtime.join_conversation"
	ActionLeave       = "realtime.leave_conversation"
	ActionSendMessage = "realtime.send_message"
	ActionMarkRead    = "realtime.mark_read"
	ActionDisconnect  = "realtime.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, userID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogTarget emits an audit log entry about an action on a target
// (conversation or message id).
func LogTarget(ctx context.Context, action, userID, targetID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}
