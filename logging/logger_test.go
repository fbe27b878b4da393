package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*DialogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Output = buf
	cfg.Level = level
	return NewLogger(cfg), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	return m
}

func TestDialogLogger_ContextAttributes(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.WithComponent("engine").WithConversation("c-1").Info("turn started", "queue_depth", 2)

	m := decodeLine(t, buf)
	assert.Equal(t, "turn started", m["msg"])
	assert.Equal(t, "engine", m["component"])
	assert.Equal(t, "c-1", m["conversation_id"])
	assert.Equal(t, float64(2), m["queue_depth"])
}

func TestDialogLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestDialogLogger_LogActionCall(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.LogActionCall("action_check", 10*time.Millisecond, false, errors.New("boom"))

	m := decodeLine(t, buf)
	assert.Equal(t, "Action execution failed", m["msg"])
	assert.Equal(t, "action_check", m["action_name"])
	assert.Equal(t, "boom", m["error"])
	assert.Equal(t, "ERROR", m["level"])
}

func TestDialogLogger_LogTurn(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.LogTurn(3, 7, time.Millisecond, nil)

	m := decodeLine(t, buf)
	assert.Equal(t, "Turn completed", m["msg"])
	assert.Equal(t, float64(3), m["action_count"])
	assert.Equal(t, true, m["success"])
}

func TestDialogLogger_WithIsCopy(t *testing.T) {
	base, _ := newBufferLogger(LogLevelInfo)
	derived := base.WithContext("k", "v")
	assert.NotContains(t, base.context, "k")
	assert.Equal(t, "v", derived.context["k"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		err  bool
	}{
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{"", LogLevelInfo, false},
		{"warning", LogLevelWarn, false},
		{"error", LogLevelError, false},
		{"loud", LogLevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestForConversation(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, ForConversation(NoOpLogger{}, "x"))
	l, _ := newBufferLogger(LogLevelInfo)
	scoped, ok := ForConversation(l, "x").(*DialogLogger)
	require.True(t, ok)
	assert.Equal(t, "x", scoped.conversationID)
	assert.Equal(t, NoOpLogger{}, OrNoOp(nil))
}
