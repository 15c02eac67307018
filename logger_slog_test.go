package authflow_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
)

func TestSlogLoggerFormatsMessages(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := authflow.NewSlogLogger(slog.New(handler)).With("component", "store")

	logger.Debug("hidden %d", 1)
	logger.Warn("refetch failed for %s", "user-1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "refetch failed for user-1")
	assert.Contains(t, out, "component=store")
}

func TestNewSlogLoggerDefaults(t *testing.T) {
	assert.NotNil(t, authflow.NewSlogLogger(nil))
}
