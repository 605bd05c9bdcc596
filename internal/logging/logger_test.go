package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	testCases := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	assert.Empty(t, buf.String())

	logger.Warn(ctx, errors.New("boom"), "warn message")
	out := buf.String()
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error=boom")
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("compiler").With("file", "index.html").
		Info(context.Background(), "compiled", "bytes", 42)

	line := strings.TrimSpace(buf.String())
	var record map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.Equal(t, "compiled", record["msg"])
	assert.Equal(t, "compiler", record["component"])
	assert.Equal(t, "index.html", record["file"])
	assert.Equal(t, float64(42), record["bytes"])
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("ignored"), "nothing is written")
	})
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})

	op := logger.StartOperation("build")
	op.End(context.Background(), "pages", 3)

	out := buf.String()
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "operation=build")
	assert.Contains(t, out, "pages=3")
	assert.Contains(t, out, "duration_ms=")
}

func TestLoggerFieldOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})

	logger.With("page", "index.html", "dangling").With("pass", 1).
		Info(context.Background(), "rendered", "scope", 7)

	out := buf.String()
	page := strings.Index(out, "page=index.html")
	pass := strings.Index(out, "pass=1")
	scope := strings.Index(out, "scope=7")
	require.True(t, page >= 0 && pass >= 0 && scope >= 0, out)
	assert.Less(t, page, pass)
	assert.Less(t, pass, scope)
	assert.NotContains(t, out, "dangling")
}
