package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Identity      string // masked before it reaches the log
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.log("auth", event)
}

// LogLockout logs lockout transitions (triggered by the guard or cleared by an operator)
func (al *AuditLogger) LogLockout(event AuditEvent) {
	al.log("lockout", event)
}

func (al *AuditLogger) log(auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Identity != "" {
		attrs = append(attrs, slog.String("identity", SanitizedEmail(event.Identity)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
