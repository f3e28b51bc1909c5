package audit

import (
	"context"

	"github.com/weiawesome/wes-match-live/pkg/log"
)

// Audit actions.
const (
	ActionConnect           = "presence.connect"
	ActionAuthFailed        = "presence.auth_failed"
	ActionDisconnect        = "presence.disconnect"
	ActionLogout            = "presence.logout"
	ActionJoinConversation  = "chat.join_conversation"
	ActionLeaveConversation = "chat.leave_conversation"
	ActionSendMessage       = "chat.send_message"
	ActionNotify            = "notify.deliver"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithTarget emits an audit entry about an action userID took on targetID.
func LogWithTarget(ctx context.Context, action string, userID, targetID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
