package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, the cache and the placement workflow.
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

	applicationsCreated *prometheus.CounterVec
	applyRejections     *prometheus.CounterVec
	statusTransitions   *prometheus.CounterVec
	sideEffectFailures  *prometheus.CounterVec
	jobsExpired         prometheus.Counter
	notifications       *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
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
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
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

	applicationsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "applications_created_total",
		Help: "Applications accepted, by college",
	}, []string{"college"})

	applyRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "application_rejections_total",
		Help: "Apply attempts refused, by error code",
	}, []string{"code"})

	statusTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "application_status_transitions_total",
		Help: "Application status writes, by target status",
	}, []string{"status"})

	sideEffectFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "side_effect_failures_total",
		Help: "Best-effort side effects that failed after the primary write",
	}, []string{"effect"})

	jobsExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_expired_total",
		Help: "Jobs closed by lazy deadline expiry",
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notifications handed to the dispatcher, by kind and outcome",
	}, []string{"kind", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		applicationsCreated, applyRejections, statusTransitions, sideEffectFailures, jobsExpired, notifications, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		applicationsCreated: applicationsCreated,
		applyRejections:     applyRejections,
		statusTransitions:   statusTransitions,
		sideEffectFailures:  sideEffectFailures,
		jobsExpired:         jobsExpired,
		notifications:       notifications,
	}
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

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ApplicationCreated counts a successful apply.
func (m *MetricsService) ApplicationCreated(collegeID string) {
	if m == nil {
		return
	}
	m.applicationsCreated.WithLabelValues(collegeID).Inc()
}

// ApplyRejected counts an apply refused with the given error code.
func (m *MetricsService) ApplyRejected(code string) {
	if m == nil {
		return
	}
	m.applyRejections.WithLabelValues(code).Inc()
}

// StatusTransition counts an application status write.
func (m *MetricsService) StatusTransition(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

// SideEffectFailed counts a failed post-commit side effect.
func (m *MetricsService) SideEffectFailed(effect string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(effect).Inc()
}

// JobsExpired adds the rows actually closed by an expiry sweep.
func (m *MetricsService) JobsExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.jobsExpired.Add(float64(n))
}

// NotificationDispatched counts a notification outcome (queued, dropped, stored, published, failed).
func (m *MetricsService) NotificationDispatched(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}
