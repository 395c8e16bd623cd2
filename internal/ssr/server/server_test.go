package server

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/edgecomet/ssr-gateway/internal/common/config"
	"github.com/edgecomet/ssr-gateway/internal/common/configtypes"
	"github.com/edgecomet/ssr-gateway/internal/common/redis"
	"github.com/edgecomet/ssr-gateway/internal/ssr/app"
	"github.com/edgecomet/ssr-gateway/internal/ssr/app/mock"
	"github.com/edgecomet/ssr-gateway/internal/ssr/cache"
	"github.com/edgecomet/ssr-gateway/internal/ssr/document"
	"github.com/edgecomet/ssr-gateway/internal/ssr/graphql"
	"github.com/edgecomet/ssr-gateway/internal/ssr/metrics"
	"github.com/edgecomet/ssr-gateway/internal/ssr/orchestrator"
	"github.com/edgecomet/ssr-gateway/pkg/types"
)

type staticConfig struct {
	cfg *configtypes.SSRConfig
}

func (s staticConfig) GetConfig() *configtypes.SSRConfig {
	return s.cfg
}

type testServer struct {
	server   *Server
	store    *cache.Tiered
	renderer *mock.MockRenderer
}

func newTestServer(t *testing.T, cfg *configtypes.SSRConfig, shared *cache.Shared) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	renderer := mock.NewMockRenderer(gomock.NewController(t))
	mc := metrics.NewMetricsCollectorWithRegistry("ssr", prometheus.NewRegistry(), logger)
	store := cache.NewTiered(cache.New(), shared, mc, logger)

	ro := orchestrator.NewRenderOrchestrator(
		store,
		renderer,
		graphql.NewFactoryForEndpoint("http://127.0.0.1:1/graphql", time.Second, logger),
		document.New("/static/bundle.js"),
		mc,
		orchestrator.Options{},
		logger,
	)

	return &testServer{
		server:   NewServer(staticConfig{cfg: cfg}, store, ro, mc, logger),
		store:    store,
		renderer: renderer,
	}
}

func newRequest(method, uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	return ctx
}

const testAuthKey = "secret"

func adminConfig() *configtypes.SSRConfig {
	return &configtypes.SSRConfig{Internal: configtypes.InternalConfig{AuthKey: testAuthKey}}
}

func newAdminRequest(method, uri string) *fasthttp.RequestCtx {
	ctx := newRequest(method, uri)
	ctx.Request.Header.Set(AuthHeader, testAuthKey)
	return ctx
}

func decodeEnvelope(t *testing.T, ctx *fasthttp.RequestCtx, data interface{}) bool {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &envelope))
	if data != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.Success
}

func TestHandleRequest_Health(t *testing.T) {
	ts := newTestServer(t, &configtypes.SSRConfig{}, nil)
	ctx := newRequest(fasthttp.MethodGet, PathHealth)

	ts.server.HandleRequest(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "OK", string(ctx.Response.Body()))
	assert.NotEmpty(t, ctx.Response.Header.Peek("X-Request-ID"))
}

func TestHandleRequest_RequestIDEchoed(t *testing.T) {
	ts := newTestServer(t, &configtypes.SSRConfig{}, nil)
	ctx := newRequest(fasthttp.MethodGet, PathHealth)
	ctx.Request.Header.Set("X-Request-ID", "abc-123")

	ts.server.HandleRequest(ctx)

	assert.Equal(t, "abc-123", string(ctx.Response.Header.Peek("X-Request-ID")))
}

func TestHandleRequest_Ready(t *testing.T) {
	t.Run("local cache only", func(t *testing.T) {
		ts := newTestServer(t, &configtypes.SSRConfig{}, nil)
		ctx := newRequest(fasthttp.MethodGet, PathReady)

		ts.server.HandleRequest(ctx)
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	})

	t.Run("shared tier down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := redis.NewClient(configtypes.RedisConfig{Addr: mr.Addr()}, zaptest.NewLogger(t))
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })

		shared := cache.NewShared(client, "ssr:page:", types.CompressionNone, time.Hour)
		ts := newTestServer(t, &configtypes.SSRConfig{}, shared)

		ctx := newRequest(fasthttp.MethodGet, PathReady)
		ts.server.HandleRequest(ctx)
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

		mr.Close()
		ctx = newRequest(fasthttp.MethodGet, PathReady)
		ts.server.HandleRequest(ctx)
		assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
		assert.Equal(t, "Shared cache not available", string(ctx.Response.Body()))
	})
}

func TestHandleRequest_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &configtypes.SSRConfig{}, nil)
	ctx := newRequest(fasthttp.MethodPost, "/episodes")

	ts.server.HandleRequest(ctx)

	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
	assert.Equal(t, "GET, HEAD", string(ctx.Response.Header.Peek("Allow")))
	assert.Equal(t, 0, ts.store.Len())
}

func TestHandleRequest_PageUsesVerbatimURIAsKey(t *testing.T) {
	ts := newTestServer(t, &configtypes.SSRConfig{}, nil)
	ts.renderer.EXPECT().
		Render(gomock.Any(), "/hello/world?b=2&a=1", gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&app.Page{Markup: "<h1>Hello world</h1>"}, nil).
		Times(1)

	ctx := newRequest(fasthttp.MethodGet, "/hello/world?b=2&a=1")
	ts.server.HandleRequest(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	_, ok := ts.store.Get(context.Background(), "/hello/world?b=2&a=1")
	assert.True(t, ok)

	// a different query order is a different page
	_, ok = ts.store.Get(context.Background(), "/hello/world?a=1&b=2")
	assert.False(t, ok)
}

func TestHandleRequest_HeadServedFromCache(t *testing.T) {
	ts := newTestServer(t, &configtypes.SSRConfig{}, nil)
	ts.store.Set(context.Background(), "/episodes", "<!doctype html><html></html>")

	ctx := newRequest(fasthttp.MethodHead, "/episodes")
	ts.server.HandleRequest(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "hit", string(ctx.Response.Header.Peek("X-Render-Cache")))
}

func TestCacheAdmin_Authentication(t *testing.T) {
	ts := newTestServer(t, adminConfig(), nil)

	ctx := newRequest(fasthttp.MethodGet, PathCacheStats)
	ts.server.HandleRequest(ctx)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.False(t, decodeEnvelope(t, ctx, nil))

	ctx = newRequest(fasthttp.MethodGet, PathCacheStats)
	ctx.Request.Header.Set(AuthHeader, "wrong")
	ts.server.HandleRequest(ctx)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = newAdminRequest(fasthttp.MethodGet, PathCacheStats)
	ts.server.HandleRequest(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestCacheAdmin_DisabledWithoutAuthKey(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "..", "configs", "ssr-server.yaml"))
	require.NoError(t, err)
	require.Empty(t, cfg.Internal.AuthKey)

	ts := newTestServer(t, cfg, nil)
	ts.store.Set(context.Background(), "/episodes", "page")

	for _, method := range []string{fasthttp.MethodPost, fasthttp.MethodGet} {
		for _, path := range []string{PathCachePurge, PathCacheStats} {
			ctx := newRequest(method, path)
			ts.server.HandleRequest(ctx)
			assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode(), "%s %s", method, path)
			assert.False(t, decodeEnvelope(t, ctx, nil))
		}
	}

	// any header value is rejected too, an empty key never matches
	ctx := newRequest(fasthttp.MethodPost, PathCachePurge)
	ctx.Request.Header.Set(AuthHeader, "")
	ts.server.HandleRequest(ctx)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	assert.Equal(t, 1, ts.store.Len())
}

func TestCacheAdmin_Stats(t *testing.T) {
	ts := newTestServer(t, adminConfig(), nil)
	ts.store.Set(context.Background(), "/episodes", "page")
	ts.store.Get(context.Background(), "/episodes")
	ts.store.Get(context.Background(), "/missing")

	ctx := newAdminRequest(fasthttp.MethodGet, PathCacheStats)
	ts.server.HandleRequest(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var stats CacheStatsResponse
	assert.True(t, decodeEnvelope(t, ctx, &stats))
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, cache.DefaultMaxEntries, stats.Capacity)
	assert.False(t, stats.SharedEnabled)
}

func TestCacheAdmin_Purge(t *testing.T) {
	ts := newTestServer(t, adminConfig(), nil)
	ts.store.Set(context.Background(), "/episodes", "a")
	ts.store.Set(context.Background(), "/hello/x", "b")

	ctx := newAdminRequest(fasthttp.MethodPost, PathCachePurge+"?key=/episodes")
	ts.server.HandleRequest(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var single CachePurgeResponse
	decodeEnvelope(t, ctx, &single)
	assert.Equal(t, "/episodes", single.Key)
	assert.Equal(t, 1, single.Removed)
	assert.Equal(t, 1, ts.store.Len())

	ctx = newAdminRequest(fasthttp.MethodPost, PathCachePurge)
	ts.server.HandleRequest(ctx)

	var all CachePurgeResponse
	decodeEnvelope(t, ctx, &all)
	assert.Equal(t, 1, all.Removed)
	assert.Equal(t, 0, ts.store.Len())
}

func TestCacheAdmin_WrongMethod(t *testing.T) {
	ts := newTestServer(t, adminConfig(), nil)

	ctx := newAdminRequest(fasthttp.MethodGet, PathCachePurge)
	ts.server.HandleRequest(ctx)
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())

	ctx = newAdminRequest(fasthttp.MethodDelete, PathCacheStats)
	ts.server.HandleRequest(ctx)
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
}
