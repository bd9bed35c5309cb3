package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())
	logger.SetLevel(WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestTextFormatterFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())

	logger.Info("connection opened",
		String("transport", "http"),
		Int("port", 8080),
		Bool("tls", true))

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "connection opened")
	assert.Contains(t, out, "transport=http")
	assert.Contains(t, out, "port=8080")
	assert.Contains(t, out, "tls=true")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	logger.Error("frame decode failed", String("reason", "short read"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "frame decode failed", entry["msg"])
	assert.Equal(t, "short read", entry["reason"])
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter()).WithFields(String("transport", "stdio"))

	logger.Info("started")
	logger.Info("stopped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, "transport=stdio")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter()).WithError(fmt.Errorf("dial refused"))

	logger.Error("connect failed")

	out := buf.String()
	assert.Contains(t, out, "connect failed")
	assert.Contains(t, out, "error=dial refused")
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger{}
	// Must be safe to call everything.
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x")
	logger.SetLevel(DebugLevel)
	assert.NotNil(t, logger.WithFields(String("k", "v")))
	assert.NotNil(t, logger.WithError(fmt.Errorf("x")))
}
