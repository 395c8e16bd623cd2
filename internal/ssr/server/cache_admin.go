package server

import (
	"context"
	"crypto/subtle"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/ssr-gateway/internal/common/httputil"
	"github.com/edgecomet/ssr-gateway/internal/ssr/cache"
)

const (
	PathCacheStats = "/_internal/cache/stats"
	PathCachePurge = "/_internal/cache/purge"

	// AuthHeader carries internal.auth_key on admin requests.
	// Without a configured key the admin endpoints answer 404.
	AuthHeader = "X-Internal-Auth"
)

// CacheStatsResponse is the data payload of the stats endpoint
type CacheStatsResponse struct {
	cache.Stats
	SharedEnabled bool `json:"shared_enabled"`
}

// CachePurgeResponse is the data payload of the purge endpoint
type CachePurgeResponse struct {
	Key     string `json:"key,omitempty"`
	Removed int    `json:"removed"`
}

func (s *Server) handleCacheAdmin(ctx *fasthttp.RequestCtx, path string, logger *zap.Logger) {
	expected := s.configManager.GetConfig().Internal.AuthKey
	if expected == "" {
		httputil.JSONError(ctx, "cache administration is disabled", fasthttp.StatusNotFound)
		return
	}
	if !authenticate(ctx, expected) {
		logger.Warn("Cache admin request rejected", zap.String("path", path))
		httputil.JSONError(ctx, "unauthorized", fasthttp.StatusUnauthorized)
		return
	}

	switch path {
	case PathCacheStats:
		if !ctx.IsGet() {
			httputil.JSONError(ctx, "method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}
		httputil.JSONData(ctx, CacheStatsResponse{
			Stats:         s.store.Stats(),
			SharedEnabled: s.store.SharedEnabled(),
		}, fasthttp.StatusOK)

	case PathCachePurge:
		if !ctx.IsPost() {
			httputil.JSONError(ctx, "method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}
		s.handlePurge(ctx, logger)
	}
}

// handlePurge drops one key when the key argument is present, otherwise everything
func (s *Server) handlePurge(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	key := string(ctx.QueryArgs().Peek("key"))
	if key == "" {
		key = string(ctx.PostArgs().Peek("key"))
	}

	if key != "" {
		removed := 0
		if s.store.Delete(context.Background(), key) {
			removed = 1
		}
		s.metrics.SetCacheEntries(s.store.Len())
		logger.Info("Cache entry purged", zap.String("cache_key", key), zap.Int("removed", removed))
		httputil.JSONData(ctx, CachePurgeResponse{Key: key, Removed: removed}, fasthttp.StatusOK)
		return
	}

	removed := s.store.Purge(context.Background())
	s.metrics.SetCacheEntries(s.store.Len())
	logger.Info("Cache purged", zap.Int("removed", removed))
	httputil.JSONData(ctx, CachePurgeResponse{Removed: removed}, fasthttp.StatusOK)
}

func authenticate(ctx *fasthttp.RequestCtx, expected string) bool {
	provided := ctx.Request.Header.Peek(AuthHeader)
	return subtle.ConstantTimeCompare(provided, []byte(expected)) == 1
}
