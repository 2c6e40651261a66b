package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/contextkeys"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug is below info")

	logger.Info("info message")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "info message", entry["message"])

	buf.Reset()
	logger.Warnf("warn %d", 3)
	assert.Equal(t, "warn 3", decodeEntry(t, &buf)["message"])
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithField("entity_type", "posts").
		WithFields(map[string]interface{}{"organization_id": "org-1"}).
		WithError(errors.New("boom")).
		Error("search failed")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "posts", entry["entity_type"])
	assert.Equal(t, "org-1", entry["organization_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "error", entry["level"])

	assert.Same(t, logger, logger.WithError(nil))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, "warn", WarnLevel.String())
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-42")
	FromContext(ctx).Info("handled")

	assert.Equal(t, "req-42", decodeEntry(t, &buf)["request_id"])
	assert.NotNil(t, FromContext(context.Background()))
}
