package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/ssr-gateway/internal/ssr/cache"
	"github.com/edgecomet/ssr-gateway/pkg/types"
)

var _ cache.Observer = (*MetricsCollector)(nil)

// MetricsCollector is the recording surface used by the orchestrator and the cache tiers
type MetricsCollector struct {
	prometheus *PrometheusMetrics
	logger     *zap.Logger
}

// NewMetricsCollector registers on the default prometheus registry
func NewMetricsCollector(namespace string, logger *zap.Logger) *MetricsCollector {
	return NewMetricsCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

func NewMetricsCollectorWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		prometheus: NewPrometheusMetricsWithRegistry(namespace, registerer, logger),
		logger:     logger,
	}
}

// RecordRequest records a finished page request
func (mc *MetricsCollector) RecordRequest(outcome types.Outcome, statusCode int, duration time.Duration) {
	mc.prometheus.RecordRequest(string(outcome), statusCode, duration)

	mc.logger.Debug("Recorded request metric",
		zap.String("outcome", string(outcome)),
		zap.Int("status_code", statusCode),
		zap.Duration("duration", duration))
}

func (mc *MetricsCollector) RecordCacheHit() {
	mc.prometheus.RecordCacheHit()
}

func (mc *MetricsCollector) RecordCacheMiss() {
	mc.prometheus.RecordCacheMiss()
}

func (mc *MetricsCollector) SetCacheEntries(n int) {
	mc.prometheus.SetCacheEntries(n)
}

// RecordEviction matches the page cache eviction hook signature
func (mc *MetricsCollector) RecordEviction(key string, reason cache.EvictReason) {
	mc.prometheus.RecordEviction(reason.String())

	mc.logger.Debug("Page cache eviction",
		zap.String("cache_key", key),
		zap.String("reason", reason.String()))
}

// RecordRender records a render attempt; result is "success", "redirect" or "failed"
func (mc *MetricsCollector) RecordRender(result string, duration time.Duration) {
	mc.prometheus.RecordRender(result, duration)
}

func (mc *MetricsCollector) RecordRenderFailure(reason string) {
	mc.prometheus.RecordRenderFailure(reason)
}

func (mc *MetricsCollector) RecordCoalesced() {
	mc.prometheus.RecordCoalesced()
}

func (mc *MetricsCollector) IncActiveRequests() {
	mc.prometheus.IncActiveRequests()
}

func (mc *MetricsCollector) DecActiveRequests() {
	mc.prometheus.DecActiveRequests()
}

func (mc *MetricsCollector) RecordSharedError(op string) {
	mc.prometheus.RecordSharedError(op)
}

// RecordCompression observes storedBytes/originalBytes for a shared tier write
func (mc *MetricsCollector) RecordCompression(originalBytes, storedBytes int) {
	if originalBytes <= 0 {
		return
	}
	ratio := float64(storedBytes) / float64(originalBytes)
	mc.prometheus.RecordCompressionRatio(ratio)

	mc.logger.Debug("Recorded shared tier compression",
		zap.Int("original_size", originalBytes),
		zap.Int("stored_size", storedBytes),
		zap.Float64("ratio", ratio))
}

func (mc *MetricsCollector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	mc.prometheus.ServeHTTP(ctx)
}
