package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestWithContextAddsRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	original := log
	Set(zap.New(core))
	defer Set(original)

	WithContext(ContextWithRequestID(context.Background(), "abc")).Info("hello")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0].ContextMap()["request_id"])
}

func TestInitRejectsBadLevel(t *testing.T) {
	original := log
	defer Set(original)

	assert.Error(t, Init("development", "loud"))
	require.NoError(t, Init("production", "warn"))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Get().Core().Enabled(zapcore.WarnLevel))
}

func TestOrFallsBack(t *testing.T) {
	l := zap.NewNop()
	assert.Same(t, l, Or(l))
	assert.NotNil(t, Or(nil))
}
