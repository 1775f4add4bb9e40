package audit

import (
	"context"
	"log/slog"

	"senderguard/pkg/requestcontext"
)

// LogEvent writes a structured audit log line. It is used for events that are
// observable but not persisted as audit records (rate limit denials, match runs).
func LogEvent(ctx context.Context, logger *slog.Logger, level slog.Level, event AuditEvent, attrs ...any) {
	if logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	attrs = append(attrs, "event", string(event), "log_type", "audit")
	logger.Log(ctx, level, string(event), attrs...)
}
