package orchestrator

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/ssr-gateway/internal/common/httputil"
	"github.com/edgecomet/ssr-gateway/internal/ssr/rendercontext"
	"github.com/edgecomet/ssr-gateway/pkg/types"
)

const (
	contentTypeHTML   = "text/html; charset=utf-8"
	headerRenderCache = "X-Render-Cache"
)

// ResponseWriter handles all HTTP response writing for page requests
type ResponseWriter struct{}

func NewResponseWriter() *ResponseWriter {
	return &ResponseWriter{}
}

// WriteCached serves a cached document; cache hits are always 200
func (rw *ResponseWriter) WriteCached(renderCtx *rendercontext.RenderContext, doc string) {
	rw.writeDocument(renderCtx, fasthttp.StatusOK, types.CacheStatusHit, doc)
}

// WriteRendered serves a freshly rendered document with the status chosen by the page
func (rw *ResponseWriter) WriteRendered(renderCtx *rendercontext.RenderContext, doc string, statusCode int) {
	renderCtx.Logger.Debug("Serving rendered content",
		zap.Int("status_code", statusCode),
		zap.Int("content_size", len(doc)))
	rw.writeDocument(renderCtx, statusCode, types.CacheStatusMiss, doc)
}

func (rw *ResponseWriter) WriteRedirect(renderCtx *rendercontext.RenderContext, location string) {
	resp := &renderCtx.HTTPCtx.Response
	resp.SetStatusCode(fasthttp.StatusFound)
	resp.Header.Set(fasthttp.HeaderLocation, location)
	resp.Header.Set(headerRenderCache, types.CacheStatusMiss)
}

// WriteFailure answers 500 with the plain status text
func (rw *ResponseWriter) WriteFailure(renderCtx *rendercontext.RenderContext) {
	httputil.PlainStatus(renderCtx.HTTPCtx, fasthttp.StatusInternalServerError)
}

func (rw *ResponseWriter) writeDocument(renderCtx *rendercontext.RenderContext, statusCode int, cacheStatus, doc string) {
	resp := &renderCtx.HTTPCtx.Response
	resp.SetStatusCode(statusCode)
	resp.Header.Set(fasthttp.HeaderContentType, contentTypeHTML)
	resp.Header.Set(headerRenderCache, cacheStatus)
	resp.SetBodyString(doc)
}
