package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "transfers", "info", "production")

	logger.Debug("hidden")
	logger.Info("transfer completed", "reference", "ref-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "transfers", rec["service"])
	assert.Equal(t, "ref-1", rec["reference"])
	assert.Equal(t, "transfer completed", rec["msg"])
}

func TestWith_AddsAttrsToContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, "accounts", "debug", "development")

	ctx := WithLogger(context.Background(), base)
	ctx = With(ctx, "account_number", "0600000001")

	FromContext(ctx).Info("balance mutated")
	assert.Contains(t, buf.String(), "account_number=0600000001")
	assert.Contains(t, buf.String(), "service=accounts")
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
