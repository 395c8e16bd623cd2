package server

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/ssr-gateway/internal/common/clientip"
	"github.com/edgecomet/ssr-gateway/internal/common/configtypes"
	"github.com/edgecomet/ssr-gateway/internal/common/httputil"
	"github.com/edgecomet/ssr-gateway/internal/common/requestid"
	"github.com/edgecomet/ssr-gateway/internal/ssr/cache"
	"github.com/edgecomet/ssr-gateway/internal/ssr/metrics"
	"github.com/edgecomet/ssr-gateway/internal/ssr/orchestrator"
	"github.com/edgecomet/ssr-gateway/internal/ssr/rendercontext"
)

const (
	PathHealth = "/health"
	PathReady  = "/ready"
)

const readyTimeout = 2 * time.Second

// Server is the public fasthttp handler of the SSR gateway
type Server struct {
	configManager configtypes.ConfigProvider
	store         *cache.Tiered
	orchestrator  *orchestrator.RenderOrchestrator
	metrics       *metrics.MetricsCollector
	logger        *zap.Logger
}

func NewServer(
	configManager configtypes.ConfigProvider,
	store *cache.Tiered,
	renderOrchestrator *orchestrator.RenderOrchestrator,
	metricsCollector *metrics.MetricsCollector,
	logger *zap.Logger,
) *Server {
	return &Server{
		configManager: configManager,
		store:         store,
		orchestrator:  renderOrchestrator,
		metrics:       metricsCollector,
		logger:        logger,
	}
}

func (s *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	requestID := requestid.FromHeader(string(ctx.Request.Header.Peek(requestid.HeaderName)))
	ctx.Response.Header.Set(requestid.HeaderName, requestID)

	path := string(ctx.Path())
	switch path {
	case PathHealth:
		s.handleHealth(ctx)
	case PathReady:
		s.handleReady(ctx)
	case PathCacheStats, PathCachePurge:
		s.handleCacheAdmin(ctx, path, s.logger.With(zap.String("request_id", requestID)))
	default:
		if !ctx.IsGet() && !ctx.IsHead() {
			ctx.Response.Header.Set("Allow", "GET, HEAD")
			httputil.PlainStatus(ctx, fasthttp.StatusMethodNotAllowed)
			return
		}
		s.handlePage(ctx, requestID)
	}
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/plain")
	ctx.SetBodyString("OK")
}

func (s *Server) handleReady(ctx *fasthttp.RequestCtx) {
	pingCtx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	if err := s.store.Ping(pingCtx); err != nil {
		s.logger.Warn("Readiness check failed", zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		ctx.SetContentType("text/plain")
		ctx.SetBodyString("Shared cache not available")
		return
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/plain")
	ctx.SetBodyString("OK")
}

// handlePage runs the render cache middleware for one page request.
// The cache key is the request URI exactly as received, query string included.
func (s *Server) handlePage(ctx *fasthttp.RequestCtx, requestID string) {
	s.metrics.IncActiveRequests()
	defer s.metrics.DecActiveRequests()

	cfg := s.configManager.GetConfig()
	ip, source := clientip.Resolve(ctx, cfg.Server.ClientIPHeaders)
	logger := s.logger.With(zap.String("client_ip", ip), zap.String("client_ip_source", source))

	renderCtx := rendercontext.New(requestID, ctx, logger, cfg.Render.Timeout.ToDuration()).
		WithCacheKey(string(ctx.RequestURI())).
		WithCookie(string(ctx.Request.Header.Peek(fasthttp.HeaderCookie)))

	result := s.orchestrator.ProcessRequest(renderCtx)
	s.metrics.RecordRequest(result.Outcome, result.StatusCode, renderCtx.Elapsed())
}
