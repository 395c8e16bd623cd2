package rendercontext

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// RenderContext carries per-request state through the render pipeline.
// startTime and timeout are immutable after creation.
type RenderContext struct {
	RequestID string
	Logger    *zap.Logger
	HTTPCtx   *fasthttp.RequestCtx

	CacheKey string
	Cookie   string

	startTime time.Time
	timeout   time.Duration
}

// New creates a context for one request; timeout bounds the render, zero means no deadline
func New(requestID string, httpCtx *fasthttp.RequestCtx, baseLogger *zap.Logger, timeout time.Duration) *RenderContext {
	return &RenderContext{
		RequestID: requestID,
		Logger:    baseLogger.With(zap.String("request_id", requestID)),
		HTTPCtx:   httpCtx,
		startTime: time.Now().UTC(),
		timeout:   timeout,
	}
}

// WithCacheKey sets the cache key and adds it to the logger
func (rc *RenderContext) WithCacheKey(key string) *RenderContext {
	rc.CacheKey = key
	rc.Logger = rc.Logger.With(zap.String("cache_key", key))
	return rc
}

// WithCookie records the Cookie header forwarded to data fetches. It is never logged.
func (rc *RenderContext) WithCookie(cookie string) *RenderContext {
	rc.Cookie = cookie
	return rc
}

func (rc *RenderContext) Elapsed() time.Duration {
	return time.Since(rc.startTime)
}

func (rc *RenderContext) Timeout() time.Duration {
	return rc.timeout
}

// RenderContext returns the context a render runs under.
// With a timeout the deadline counts from request start.
func (rc *RenderContext) RenderContext() (context.Context, context.CancelFunc) {
	if rc.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithDeadline(context.Background(), rc.startTime.Add(rc.timeout))
}
