package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONCarriesServiceAndContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:          "debug",
		Format:         LogFormatJSON,
		Output:         &buf,
		ServiceName:    "taskboard",
		ServiceVersion: "1.2.3",
	})

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "user-1")
	logger.DebugContext(ctx, "hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "taskboard", rec["service"])
	assert.Equal(t, "1.2.3", rec["version"])
	assert.Equal(t, "corr-1", rec[CorrelationIDKey])
	assert.Equal(t, "req-1", rec[RequestIDKey])
	assert.Equal(t, "user-1", rec[UserIDKey])
	assert.Equal(t, "v", rec["k"])
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: LogFormatText, Output: &buf})

	logger.Info("skipped")
	assert.Empty(t, buf.String())

	logger.With("a", 1).Warn("kept")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "a=1")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestWithCorrelationID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "")
	id := CorrelationIDFromContext(ctx)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, CorrelationUUID(ctx).String())

	assert.Empty(t, CorrelationIDFromContext(context.Background()))
	assert.Equal(t, "00000000-0000-0000-0000-000000000000",
		CorrelationUUID(WithCorrelationID(context.Background(), "not-a-uuid")).String())
}
