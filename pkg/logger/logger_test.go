package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	Initialize(Config{Level: level, Format: "json", Output: buf})
	t.Cleanup(func() { globalLogger = nil })
	return buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestInfo_WritesFieldsAndCaller(t *testing.T) {
	buf := captureJSON(t, "debug")

	Info("product reserved", Fields{"product_id": 7})

	entry := decodeLine(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "product reserved", entry["message"])
	assert.Equal(t, float64(7), entry["product_id"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestError_IncludesError(t *testing.T) {
	buf := captureJSON(t, "debug")

	Error("sweep failed", errors.New("boom"))

	entry := decodeLine(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	buf := captureJSON(t, "warn")

	Debug("hidden")
	Info("hidden")
	assert.Zero(t, buf.Len())

	Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestWithContext_AddsFields(t *testing.T) {
	buf := captureJSON(t, "info")

	WithContext(Fields{"request_id": "abc"}).Info("handled", nil)

	entry := decodeLine(t, buf)
	assert.Equal(t, "abc", entry["request_id"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}
