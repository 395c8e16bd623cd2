package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/edgecomet/ssr-gateway/internal/ssr/app"
	"github.com/edgecomet/ssr-gateway/internal/ssr/document"
	"github.com/edgecomet/ssr-gateway/internal/ssr/graphql"
	"github.com/edgecomet/ssr-gateway/internal/ssr/metrics"
	"github.com/edgecomet/ssr-gateway/internal/ssr/rendercontext"
	"github.com/edgecomet/ssr-gateway/pkg/types"
)

// ErrRenderPanic wraps a panic recovered from the renderer
var ErrRenderPanic = errors.New("render panicked")

// Render failure reasons reported to metrics
const (
	failureError   = "error"
	failurePanic   = "panic"
	failureTimeout = "timeout"
)

// storeWriteTimeout bounds the cache write after a render, independent of the render deadline
const storeWriteTimeout = 5 * time.Second

// PageStore is the cache consulted before rendering
type PageStore interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Len() int
}

// Options configures a RenderOrchestrator
type Options struct {
	// Coalesce shares one render between concurrent misses of the same key
	Coalesce bool
}

// Result describes what ProcessRequest sent
type Result struct {
	Outcome     types.Outcome
	StatusCode  int
	RedirectURL string
	BytesServed int
	Coalesced   bool
	Err         error
}

// renderOutcome is the shareable product of a single render
type renderOutcome struct {
	outcome     types.Outcome
	statusCode  int
	document    string
	redirectURL string
	err         error
}

// RenderOrchestrator implements the render cache middleware: serve from cache,
// otherwise render, store and serve, short-circuiting redirects and failures.
type RenderOrchestrator struct {
	store          PageStore
	renderer       app.Renderer
	clients        *graphql.Factory
	document       *document.Template
	responseWriter *ResponseWriter
	metrics        *metrics.MetricsCollector
	coalesce       bool
	group          singleflight.Group
	logger         *zap.Logger
}

func NewRenderOrchestrator(
	store PageStore,
	renderer app.Renderer,
	clients *graphql.Factory,
	doc *document.Template,
	metricsCollector *metrics.MetricsCollector,
	opts Options,
	logger *zap.Logger,
) *RenderOrchestrator {
	return &RenderOrchestrator{
		store:          store,
		renderer:       renderer,
		clients:        clients,
		document:       doc,
		responseWriter: NewResponseWriter(),
		metrics:        metricsCollector,
		coalesce:       opts.Coalesce,
		logger:         logger,
	}
}

// ProcessRequest sends exactly one response for renderCtx.
// renderCtx.CacheKey must already hold the verbatim request URI.
func (ro *RenderOrchestrator) ProcessRequest(renderCtx *rendercontext.RenderContext) *Result {
	key := renderCtx.CacheKey

	if doc, ok := ro.store.Get(context.Background(), key); ok {
		ro.metrics.RecordCacheHit()
		renderCtx.Logger.Info("Cache hit")
		ro.responseWriter.WriteCached(renderCtx, doc)
		return &Result{Outcome: types.OutcomeCacheHit, StatusCode: fasthttp.StatusOK, BytesServed: len(doc)}
	}
	ro.metrics.RecordCacheMiss()

	out, coalesced := ro.renderOnce(renderCtx)
	result := &Result{
		Outcome:   out.outcome,
		Coalesced: coalesced,
		Err:       out.err,
	}

	switch out.outcome {
	case types.OutcomeRedirect:
		renderCtx.Logger.Info("Render redirected", zap.String("location", out.redirectURL))
		ro.responseWriter.WriteRedirect(renderCtx, out.redirectURL)
		result.StatusCode = fasthttp.StatusFound
		result.RedirectURL = out.redirectURL

	case types.OutcomeRendered:
		renderCtx.Logger.Info("Cache miss, rendered",
			zap.Int("status_code", out.statusCode),
			zap.Bool("coalesced", coalesced))
		ro.responseWriter.WriteRendered(renderCtx, out.document, out.statusCode)
		result.StatusCode = out.statusCode
		result.BytesServed = len(out.document)

	default:
		ro.responseWriter.WriteFailure(renderCtx)
		result.StatusCode = fasthttp.StatusInternalServerError
	}

	return result
}

func (ro *RenderOrchestrator) renderOnce(renderCtx *rendercontext.RenderContext) (*renderOutcome, bool) {
	if !ro.coalesce {
		return ro.render(renderCtx), false
	}

	v, _, shared := ro.group.Do(renderCtx.CacheKey, func() (interface{}, error) {
		return ro.render(renderCtx), nil
	})
	if shared {
		ro.metrics.RecordCoalesced()
	}
	return v.(*renderOutcome), shared
}

// render runs the renderer for one key and stores successful documents
func (ro *RenderOrchestrator) render(renderCtx *rendercontext.RenderContext) *renderOutcome {
	start := time.Now()
	ctx, cancel := renderCtx.RenderContext()
	defer cancel()

	store := graphql.NewStore(ro.clients.NewClient(renderCtx.Cookie))
	route := &app.RouteContext{}
	styles := app.NewStyleSheet()

	page, err := ro.runRenderer(ctx, renderCtx.CacheKey, store, route, styles)
	if err != nil {
		return ro.fail(renderCtx, err, start)
	}

	if route.RedirectURL != "" {
		ro.metrics.RecordRender("redirect", time.Since(start))
		return &renderOutcome{outcome: types.OutcomeRedirect, redirectURL: route.RedirectURL}
	}

	html, err := ro.document.Assemble(page.Markup, store.InitialState(), styles.CSS(), document.Head{Title: page.Title})
	if err != nil {
		return ro.fail(renderCtx, err, start)
	}
	doc := types.DocumentPrefix + html

	storeCtx, storeCancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	ro.store.Set(storeCtx, renderCtx.CacheKey, doc)
	storeCancel()
	ro.metrics.SetCacheEntries(ro.store.Len())

	statusCode := route.StatusCode
	if statusCode == 0 {
		statusCode = fasthttp.StatusOK
	}

	duration := time.Since(start)
	ro.metrics.RecordRender("success", duration)
	renderCtx.Logger.Debug("Stored rendered document",
		zap.Int("status_code", statusCode),
		zap.Int("size", len(doc)),
		zap.Duration("render_time", duration))

	return &renderOutcome{outcome: types.OutcomeRendered, statusCode: statusCode, document: doc}
}

// runRenderer calls the renderer, converting panics to errors and enforcing the context deadline
func (ro *RenderOrchestrator) runRenderer(ctx context.Context, location string, data app.DataSource, route *app.RouteContext, styles *app.StyleSheet) (*app.Page, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return ro.safeRender(ctx, location, data, route, styles)
	}

	type result struct {
		page *app.Page
		err  error
	}
	// the renderer gets its own route context so a late write cannot race the caller
	routeCopy := &app.RouteContext{}
	done := make(chan result, 1)
	go func() {
		page, err := ro.safeRender(ctx, location, data, routeCopy, styles)
		done <- result{page: page, err: err}
	}()

	select {
	case r := <-done:
		*route = *routeCopy
		return r.page, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("render aborted: %w", ctx.Err())
	}
}

func (ro *RenderOrchestrator) safeRender(ctx context.Context, location string, data app.DataSource, route *app.RouteContext, styles *app.StyleSheet) (page *app.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			ro.logger.Error("Renderer panicked",
				zap.String("location", location),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			page, err = nil, fmt.Errorf("%w: %v", ErrRenderPanic, r)
		}
	}()

	page, err = ro.renderer.Render(ctx, location, data, route, styles)
	if err == nil && page == nil && route.RedirectURL == "" {
		err = errors.New("renderer returned no page")
	}
	return page, err
}

func (ro *RenderOrchestrator) fail(renderCtx *rendercontext.RenderContext, err error, start time.Time) *renderOutcome {
	reason := failureError
	switch {
	case errors.Is(err, ErrRenderPanic):
		reason = failurePanic
	case errors.Is(err, context.DeadlineExceeded):
		reason = failureTimeout
	}

	duration := time.Since(start)
	ro.metrics.RecordRender("failed", duration)
	ro.metrics.RecordRenderFailure(reason)
	renderCtx.Logger.Error("Render failed",
		zap.String("reason", reason),
		zap.Duration("render_time", duration),
		zap.Error(err))

	return &renderOutcome{outcome: types.OutcomeFailed, err: err}
}
