package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// PrometheusMetrics owns the prometheus collectors of the SSR server
type PrometheusMetrics struct {
	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	statusCodes     *prometheus.CounterVec
	activeRequests  prometheus.Gauge

	// Page cache metrics
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	cacheHitRatio    prometheus.Gauge
	cacheEntries     prometheus.Gauge
	cacheEvictions   *prometheus.CounterVec

	// Render metrics
	renderDuration   *prometheus.HistogramVec
	renderFailures   *prometheus.CounterVec
	coalescedRenders prometheus.Counter

	// Shared tier metrics
	sharedErrors          *prometheus.CounterVec
	sharedCompressedRatio prometheus.Histogram

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// NewPrometheusMetricsWithRegistry registers every collector on registerer.
// The registerer also serves /metrics when it implements prometheus.Gatherer.
func NewPrometheusMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *PrometheusMetrics {
	pm := &PrometheusMetrics{logger: logger}

	pm.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gw",
			Name:      "requests_total",
			Help:      "Page requests by outcome (cache_hit, rendered, redirect, failed)",
		},
		[]string{"outcome"},
	)

	pm.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gw",
			Name:      "request_duration_seconds",
			Help:      "Time from request arrival to response by outcome",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	pm.statusCodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gw",
			Name:      "status_code_responses_total",
			Help:      "Page responses by status code range",
		},
		[]string{"status_range"},
	)

	pm.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gw",
			Name:      "active_requests",
			Help:      "Page requests currently in flight",
		},
	)

	pm.cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Requests answered from the page cache",
		},
	)

	pm.cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Requests that required a render",
		},
	)

	pm.cacheHitRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hit_ratio",
			Help:      "Page cache hit ratio (0-1)",
		},
	)

	pm.cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Documents currently stored in the in-process cache",
		},
	)

	pm.cacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed from the in-process cache by reason",
		},
		[]string{"reason"},
	)

	pm.renderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "Time spent rendering, including data fetches",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"result"},
	)

	pm.renderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "failures_total",
			Help:      "Failed renders by reason (error, panic, timeout)",
		},
		[]string{"reason"},
	)

	pm.coalescedRenders = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "coalesced_total",
			Help:      "Requests that shared another request's in-flight render",
		},
	)

	pm.sharedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "shared_errors_total",
			Help:      "Shared cache tier failures by operation",
		},
		[]string{"op"},
	)

	pm.sharedCompressedRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "shared_compression_ratio",
			Help:      "Stored size divided by document size for shared tier writes",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.8, 1.0, 1.2},
		},
	)

	registerer.MustRegister(
		pm.requestsTotal,
		pm.requestDuration,
		pm.statusCodes,
		pm.activeRequests,
		pm.cacheHitsTotal,
		pm.cacheMissesTotal,
		pm.cacheHitRatio,
		pm.cacheEntries,
		pm.cacheEvictions,
		pm.renderDuration,
		pm.renderFailures,
		pm.coalescedRenders,
		pm.sharedErrors,
		pm.sharedCompressedRatio,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("Prometheus metrics initialized", zap.String("namespace", namespace))
	return pm
}

func (pm *PrometheusMetrics) RecordRequest(outcome string, statusCode int, duration time.Duration) {
	pm.requestsTotal.WithLabelValues(outcome).Inc()
	pm.requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	pm.statusCodes.WithLabelValues(getStatusCodeRange(statusCode)).Inc()
}

func (pm *PrometheusMetrics) RecordCacheHit() {
	pm.cacheHitsTotal.Inc()
	pm.updateCacheHitRatio()
}

func (pm *PrometheusMetrics) RecordCacheMiss() {
	pm.cacheMissesTotal.Inc()
	pm.updateCacheHitRatio()
}

func (pm *PrometheusMetrics) SetCacheEntries(n int) {
	pm.cacheEntries.Set(float64(n))
}

func (pm *PrometheusMetrics) RecordEviction(reason string) {
	pm.cacheEvictions.WithLabelValues(reason).Inc()
}

func (pm *PrometheusMetrics) RecordRender(result string, duration time.Duration) {
	pm.renderDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (pm *PrometheusMetrics) RecordRenderFailure(reason string) {
	pm.renderFailures.WithLabelValues(reason).Inc()
}

func (pm *PrometheusMetrics) RecordCoalesced() {
	pm.coalescedRenders.Inc()
}

func (pm *PrometheusMetrics) IncActiveRequests() {
	pm.activeRequests.Inc()
}

func (pm *PrometheusMetrics) DecActiveRequests() {
	pm.activeRequests.Dec()
}

func (pm *PrometheusMetrics) RecordSharedError(op string) {
	pm.sharedErrors.WithLabelValues(op).Inc()
}

func (pm *PrometheusMetrics) RecordCompressionRatio(ratio float64) {
	pm.sharedCompressedRatio.Observe(ratio)
}

// ServeHTTP serves the registry in the prometheus text format
func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}

func (pm *PrometheusMetrics) updateCacheHitRatio() {
	hits := pm.getCounterValue(pm.cacheHitsTotal)
	misses := pm.getCounterValue(pm.cacheMissesTotal)

	if total := hits + misses; total > 0 {
		pm.cacheHitRatio.Set(hits / total)
	}
}

func (pm *PrometheusMetrics) getCounterValue(counter prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		pm.logger.Warn("Failed to read counter value", zap.Error(err))
		return 0
	}
	return metric.GetCounter().GetValue()
}

// getStatusCodeRange converts a status code to a range label (2xx, 3xx, 4xx, 5xx)
func getStatusCodeRange(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
