package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/mailcal/internal/logging"
)

// AuthEvent names an auditable change in a session's authorization state.
type AuthEvent string

// Auth events written to the audit log.
const (
	AuthEventConnected       AuthEvent = "auth_connected"
	AuthEventExchangeFailed  AuthEvent = "auth_exchange_failed"
	AuthEventRefreshed       AuthEvent = "auth_refreshed"
	AuthEventRefreshRejected AuthEvent = "auth_refresh_rejected"
	AuthEventConsentRequired AuthEvent = "auth_consent_required"
	AuthEventMalformedToken  AuthEvent = "auth_malformed_token"
	AuthEventLoggedOut       AuthEvent = "auth_logged_out"
)

// ToolInvocation captures one MCP tool call for the audit log.
type ToolInvocation struct {
	Tool        string
	SessionID   string
	ServiceName string
	Operation   string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewToolInvocation creates a ToolInvocation with timing started.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithSession sets the session the tool ran for.
func (ti *ToolInvocation) WithSession(sessionID string) *ToolInvocation {
	ti.SessionID = sessionID
	return ti
}

// WithService sets the Google service and operation.
func (ti *ToolInvocation) WithService(serviceName, operation string) *ToolInvocation {
	ti.ServiceName = serviceName
	ti.Operation = operation
	return ti
}

// WithSpanContext copies the trace id from ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	return ti
}

// Complete marks the invocation as finished.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns "success" or "error".
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// AuditLogger writes the auth and tool audit trail.
type AuditLogger struct {
	logger            *slog.Logger
	includeSessionIDs bool
	enabled           bool
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:            logger.With(slog.String("audit", "true")),
		includeSessionIDs: config.IncludeSessionIDs,
		enabled:           config.Enabled,
	}
}

func (al *AuditLogger) sessionAttr(sessionID string) slog.Attr {
	if al.includeSessionIDs {
		return slog.String(logging.KeySession, sessionID)
	}
	return logging.Session(sessionID)
}

// LogAuthEvent records a change of a session's authorization state.
// Safe on a nil AuditLogger.
func (al *AuditLogger) LogAuthEvent(ctx context.Context, event AuthEvent, sessionID string, attrs ...slog.Attr) {
	if al == nil || !al.enabled {
		return
	}

	all := make([]slog.Attr, 0, len(attrs)+2)
	all = append(all, al.sessionAttr(sessionID))
	if traceID := GetTraceID(ctx); traceID != "" {
		all = append(all, slog.String("trace_id", traceID))
	}
	all = append(all, attrs...)

	level := slog.LevelInfo
	switch event {
	case AuthEventExchangeFailed, AuthEventRefreshRejected, AuthEventMalformedToken:
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, string(event), all...)
}

// LogToolInvocation records a completed MCP tool call.
// Safe on a nil AuditLogger.
func (al *AuditLogger) LogToolInvocation(ctx context.Context, ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	attrs := []slog.Attr{
		slog.String(logging.KeyTool, ti.Tool),
		al.sessionAttr(ti.SessionID),
		slog.Duration(logging.KeyDuration, ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.ServiceName != "" {
		attrs = append(attrs, slog.String("service", ti.ServiceName))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String(logging.KeyOperation, ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, ti.Error))
	}

	if ti.Success {
		al.logger.LogAttrs(ctx, slog.LevelInfo, "tool_executed", attrs...)
	} else {
		al.logger.LogAttrs(ctx, slog.LevelWarn, "tool_failed", attrs...)
	}
}
