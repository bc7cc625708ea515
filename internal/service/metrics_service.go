package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/feedback-sessions-api/internal/models"
)

// Close triggers used as the "trigger" label on session close metrics.
const (
	CloseTriggerManual    = "manual"
	CloseTriggerAuto      = "auto"
	CloseTriggerRecompile = "recompile"
)

// MetricsService owns the Prometheus registry and keeps counters for snapshots.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	compileDuration *prometheus.HistogramVec
	compiledSize    prometheus.Histogram
	sessionsClosed  *prometheus.CounterVec
	responsesTotal  prometheus.Counter
	closeFailures   prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	sessionsClosedCount  uint64
	responsesCount       uint64
	compileCount         uint64
	compileDurationTotal uint64
	closeFailureCount    uint64
}

// NewMetricsService registers the service's collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	compileDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedback_compile_duration_seconds",
		Help:    "Time spent compiling session statistics",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"trigger"})

	compiledSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedback_compiled_responses",
		Help:    "Number of responses folded into each compilation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	sessionsClosed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_sessions_closed_total",
		Help: "Sessions whose statistics were frozen, by trigger",
	}, []string{"trigger"})

	responsesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedback_responses_submitted_total",
		Help: "Responses accepted from students",
	})

	closeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedback_close_job_failures_total",
		Help: "Auto-close jobs that exhausted their retries",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		compileDuration, compiledSize, sessionsClosed, responsesTotal, closeFailures, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		compileDuration: compileDuration,
		compiledSize:    compiledSize,
		sessionsClosed:  sessionsClosed,
		responsesTotal:  responsesTotal,
		closeFailures:   closeFailures,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveCompilation records one run of the aggregation engine.
func (m *MetricsService) ObserveCompilation(trigger string, responses int, duration time.Duration) {
	if m == nil {
		return
	}
	m.compileDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	m.compiledSize.Observe(float64(responses))
	atomic.AddUint64(&m.compileCount, 1)
	atomic.AddUint64(&m.compileDurationTotal, uint64(duration.Nanoseconds()))
}

// IncSessionsClosed counts a session whose statistics were written.
func (m *MetricsService) IncSessionsClosed(trigger string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(trigger).Inc()
	atomic.AddUint64(&m.sessionsClosedCount, 1)
}

// IncResponsesSubmitted counts an accepted submission.
func (m *MetricsService) IncResponsesSubmitted() {
	if m == nil {
		return
	}
	m.responsesTotal.Inc()
	atomic.AddUint64(&m.responsesCount, 1)
}

// IncCloseFailures counts an auto-close job that gave up.
func (m *MetricsService) IncCloseFailures() {
	if m == nil {
		return
	}
	m.closeFailures.Inc()
	atomic.AddUint64(&m.closeFailureCount, 1)
}

// Snapshot returns aggregated counters for the admin metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	compiles := atomic.LoadUint64(&m.compileCount)
	compileDuration := atomic.LoadUint64(&m.compileDurationTotal)

	var cacheRatio float64
	if hits+misses > 0 {
		cacheRatio = float64(hits) / float64(hits+misses)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgCompileMs float64
	if compiles > 0 {
		avgCompileMs = float64(compileDuration) / float64(compiles) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SessionsClosed:           atomic.LoadUint64(&m.sessionsClosedCount),
		ResponsesSubmitted:       atomic.LoadUint64(&m.responsesCount),
		AverageCompileDurationMs: avgCompileMs,
		CloseJobFailures:         atomic.LoadUint64(&m.closeFailureCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
