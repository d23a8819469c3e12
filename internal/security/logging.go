// Package security provides structured security logging.
// Every entry is a single JSON object written through log/slog so that the
// process-wide default logger and the security logger share one format.
package security

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel is the level name written to the "level" key.
type LogLevel string

const (
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
	LogLevelSecurity LogLevel = "SECURITY"
)

// slog levels for the two names slog does not define.
const (
	levelSecurity = slog.Level(6)
	levelCritical = slog.Level(12)
)

// SecurityEventType classifies security and workflow events for alerting.
type SecurityEventType string

const (
	// Authentication
	EventLoginSuccess  SecurityEventType = "LOGIN_SUCCESS"
	EventLoginFailure  SecurityEventType = "LOGIN_FAILURE"
	EventLogout        SecurityEventType = "LOGOUT"
	EventAccountLocked SecurityEventType = "ACCOUNT_LOCKED"
	EventTokenRejected SecurityEventType = "TOKEN_REJECTED"
	EventInactiveActor SecurityEventType = "INACTIVE_ACTOR"

	// Authorization
	EventUnauthorizedAccess SecurityEventType = "UNAUTHORIZED_ACCESS"
	EventTransitionDenied   SecurityEventType = "TRANSITION_DENIED"
	EventRateLimitExceeded  SecurityEventType = "RATE_LIMIT_EXCEEDED"
	EventCSRFViolation      SecurityEventType = "CSRF_VIOLATION"

	// Reporting hierarchy
	EventHierarchyOrphaned SecurityEventType = "HIERARCHY_ORPHANED"
	EventHierarchyCycle    SecurityEventType = "HIERARCHY_CYCLE"
	EventHierarchyTooDeep  SecurityEventType = "HIERARCHY_TOO_DEEP"
	EventReportsToChange   SecurityEventType = "REPORTS_TO_CHANGE"

	// Workflow
	EventTaskCreate       SecurityEventType = "TASK_CREATE"
	EventTaskTransition   SecurityEventType = "TASK_TRANSITION"
	EventApprovalDecision SecurityEventType = "APPROVAL_DECISION"
	EventFirmAssign       SecurityEventType = "FIRM_ASSIGN"
	EventFirmUnassign     SecurityEventType = "FIRM_UNASSIGN"
)

// LogEntry is the JSON shape of one log line. Tests decode output into it.
type LogEntry struct {
	Timestamp  time.Time              `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Message    string                 `json:"message"`
	EventType  SecurityEventType      `json:"event_type,omitempty"`
	ActorID    *int                   `json:"actor_id,omitempty"`
	ActorEmail string                 `json:"actor_email,omitempty"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	Method     string                 `json:"method,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Status     int                    `json:"status,omitempty"`
	LatencyMS  int64                  `json:"latency_ms,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// Logger writes structured JSON log entries.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a logger writing to stdout.
func NewLogger() *Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a logger writing to w.
func NewLoggerWithWriter(w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: replaceAttr,
	})
	return &Logger{logger: slog.New(handler)}
}

// Slog exposes the underlying slog.Logger, e.g. for slog.SetDefault.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
		a.Value = slog.TimeValue(a.Value.Time().UTC())
	case slog.MessageKey:
		a.Key = "message"
	case slog.LevelKey:
		a.Value = slog.StringValue(string(levelName(a.Value.Any().(slog.Level))))
	}
	return a
}

func levelName(level slog.Level) LogLevel {
	switch {
	case level >= levelCritical:
		return LogLevelCritical
	case level >= slog.LevelError:
		return LogLevelError
	case level >= levelSecurity:
		return LogLevelSecurity
	case level >= slog.LevelWarn:
		return LogLevelWarning
	default:
		return LogLevelInfo
	}
}

// Info logs an informational message with optional slog key/value pairs.
func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

// Warn logs a warning.
func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// Error logs an error; err may be nil.
func (l *Logger) Error(message string, err error, args ...any) {
	l.log(slog.LevelError, message, err, args)
}

// Critical logs a failure that needs immediate attention.
func (l *Logger) Critical(message string, err error, args ...any) {
	l.log(levelCritical, message, err, args)
}

func (l *Logger) log(level slog.Level, message string, err error, args []any) {
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	l.logger.Log(context.Background(), level, message, args...)
}

// SecurityEvent logs a security-relevant event.
//
// Parameters:
//   - eventType: Event classification
//   - actorID: Acting user, nil for anonymous or system actions
//   - actorEmail, ipAddress, userAgent: Optional request context, omitted when empty
//   - extra: Event-specific fields
func (l *Logger) SecurityEvent(
	eventType SecurityEventType,
	actorID *int,
	actorEmail, ipAddress, userAgent string,
	extra map[string]interface{},
) {
	attrs := []any{slog.String("event_type", string(eventType))}
	if actorID != nil {
		attrs = append(attrs, slog.Int("actor_id", *actorID))
	}
	if actorEmail != "" {
		attrs = append(attrs, slog.String("actor_email", actorEmail))
	}
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}
	if userAgent != "" {
		attrs = append(attrs, slog.String("user_agent", userAgent))
	}
	if len(extra) > 0 {
		attrs = append(attrs, slog.Any("extra", extra))
	}
	l.logger.Log(context.Background(), levelSecurity, fmt.Sprintf("Security event: %s", eventType), attrs...)
}

// Event is SecurityEvent for workflow code that only knows the actor id.
func (l *Logger) Event(eventType SecurityEventType, actorID int, extra map[string]interface{}) {
	l.SecurityEvent(eventType, &actorID, "", "", "", extra)
}

// HTTPRequest logs one completed HTTP request.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMS int64, ipAddress, userAgent string, args ...any) {
	attrs := append([]any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Int64("latency_ms", latencyMS),
		slog.String("ip_address", ipAddress),
		slog.String("user_agent", userAgent),
	}, args...)

	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf("%s %s %d", method, path, status), attrs...)
}
