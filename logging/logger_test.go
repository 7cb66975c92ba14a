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

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, l)

	l, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewLogger_SlogJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf, Component: "test"})

	l.Debug("hidden")
	l.Info("state.add", "user_id", "u1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "state.add", rec["msg"])
	assert.Equal(t, "u1", rec["user_id"])
	assert.Equal(t, "test", rec["component"])
}

func TestNewLogger_Zerolog(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Backend: "zerolog", Output: &buf})

	l.Error("tool.call.failed", "tool", "add_item", "error", errors.New("boom"), "dangling")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "tool.call.failed", rec["message"])
	assert.Equal(t, "add_item", rec["tool"])
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, "dangling", rec["!BADKEY"])
}

func TestLogToolCall(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})

	LogToolCall(l, "get_count", 5*time.Millisecond, nil)
	assert.Contains(t, buf.String(), "tool.call.completed")

	buf.Reset()
	LogToolCall(l, "get_count", time.Millisecond, errors.New("bad"))
	assert.Contains(t, buf.String(), "tool.call.failed")
}
