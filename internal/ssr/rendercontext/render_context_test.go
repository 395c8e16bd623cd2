package rendercontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRenderContext_LoggerEnrichment(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rc := New("req-1", &fasthttp.RequestCtx{}, zap.New(core), 0).
		WithCacheKey("/episodes?page=2").
		WithCookie("session=secret")

	rc.Logger.Info("cache miss")

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/episodes?page=2", fields["cache_key"])
	assert.NotContains(t, fields, "cookie")
	assert.Equal(t, "session=secret", rc.Cookie)
}

func TestRenderContext_NoTimeout(t *testing.T) {
	rc := New("req", &fasthttp.RequestCtx{}, zap.NewNop(), 0)
	ctx, cancel := rc.RenderContext()
	defer cancel()

	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	assert.NoError(t, ctx.Err())
}

func TestRenderContext_Timeout(t *testing.T) {
	rc := New("req", &fasthttp.RequestCtx{}, zap.NewNop(), 20*time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, rc.Timeout())

	ctx, cancel := rc.RenderContext()
	defer cancel()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, 20*time.Millisecond)

	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	assert.GreaterOrEqual(t, rc.Elapsed(), 20*time.Millisecond)
}
