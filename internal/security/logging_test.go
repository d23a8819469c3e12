// Package security provides security tests for logging.
package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) LogEntry {
	t.Helper()
	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Log output is not valid JSON: %s", buf.String())
	return entry
}

// TestLogger_JSONFormat tests that logs are output in valid JSON format.
func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf)

	logger.Info("Test message")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "Test message", entry.Message)
	assert.Equal(t, LogLevelInfo, entry.Level)
	assert.False(t, entry.Timestamp.IsZero(), "Timestamp should not be zero")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"), "One line per entry")
}

// TestLogger_Levels tests different log levels.
func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		logFunc  func(*Logger, string)
		expected LogLevel
	}{
		{"Info", func(l *Logger, m string) { l.Info(m) }, LogLevelInfo},
		{"Warn", func(l *Logger, m string) { l.Warn(m) }, LogLevelWarning},
		{"Error", func(l *Logger, m string) { l.Error(m, nil) }, LogLevelError},
		{"Critical", func(l *Logger, m string) { l.Critical(m, nil) }, LogLevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(&buf)

			tt.logFunc(logger, "test message")

			assert.Equal(t, tt.expected, decodeEntry(t, &buf).Level)
		})
	}
}

// TestLogger_SecurityEvent tests security event logging.
func TestLogger_SecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf)

	actorID := 123
	extra := map[string]interface{}{
		"task_id": 456,
		"from":    "pending",
	}

	logger.SecurityEvent(
		EventTransitionDenied,
		&actorID,
		"staff@example.com",
		"192.168.1.100",
		"Mozilla/5.0",
		extra,
	)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, LogLevelSecurity, entry.Level)
	assert.Equal(t, EventTransitionDenied, entry.EventType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, 123, *entry.ActorID)
	assert.Equal(t, "staff@example.com", entry.ActorEmail)
	assert.Equal(t, "192.168.1.100", entry.IPAddress)
	assert.Equal(t, "Mozilla/5.0", entry.UserAgent)
	assert.Equal(t, float64(456), entry.Extra["task_id"]) // JSON numbers decode as float64
	assert.Equal(t, "pending", entry.Extra["from"])
}

// TestLogger_SecurityEvent_Anonymous verifies empty request context is omitted.
func TestLogger_SecurityEvent_Anonymous(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf)

	logger.SecurityEvent(EventLoginFailure, nil, "", "10.0.0.1", "", nil)

	assert.NotContains(t, buf.String(), "actor_id")
	assert.NotContains(t, buf.String(), "user_agent")
	assert.Equal(t, "10.0.0.1", decodeEntry(t, &buf).IPAddress)
}

// TestLogger_Event tests the workflow shorthand.
func TestLogger_Event(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf)

	logger.Event(EventHierarchyCycle, 9, map[string]interface{}{"user_id": 9})

	entry := decodeEntry(t, &buf)
	assert.Equal(t, EventHierarchyCycle, entry.EventType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, 9, *entry.ActorID)
}

// TestLogger_HTTPRequest tests HTTP request logging.
func TestLogger_HTTPRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf)

	logger.HTTPRequest("PATCH", "/api/tasks/42/status", 200, 245, "192.168.1.100", "Mozilla/5.0",
		"request_id", "abc-123")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, LogLevelInfo, entry.Level)
	assert.Equal(t, "PATCH", entry.Method)
	assert.Equal(t, "/api/tasks/42/status", entry.Path)
	assert.Equal(t, 200, entry.Status)
	assert.Equal(t, int64(245), entry.LatencyMS)
	assert.Equal(t, "abc-123", entry.RequestID)
	assert.Contains(t, entry.Message, "PATCH")
	assert.Contains(t, entry.Message, "200")
}

// TestLogger_HTTPRequest_ServerError verifies 5xx responses log at ERROR.
func TestLogger_HTTPRequest_ServerError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf)

	logger.HTTPRequest("GET", "/api/tasks", 500, 3, "", "")

	assert.Equal(t, LogLevelError, decodeEntry(t, &buf).Level)
}

// TestLogger_ErrorWithException tests error logging with an underlying error.
func TestLogger_ErrorWithException(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf)

	logger.Error("Failed to connect", errors.New("database connection failed"))

	assert.Equal(t, "database connection failed", decodeEntry(t, &buf).Error)
}

// BenchmarkLogger_SecurityEvent benchmarks security event logging.
func BenchmarkLogger_SecurityEvent(b *testing.B) {
	logger := NewLoggerWithWriter(&bytes.Buffer{})

	actorID := 123
	extra := map[string]interface{}{"test": "value"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.SecurityEvent(EventLoginSuccess, &actorID, "owner@example.com", "192.168.1.100", "Mozilla/5.0", extra)
	}
}
