package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/timetable-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, the evaluation
// cache and the timetable engine.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	generationDuration prometheus.Histogram
	tasksTotal         *prometheus.CounterVec
	optimizationMoves  *prometheus.CounterVec
	schedulePenalty    *prometheus.GaugeVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	generationCount      uint64
	optimizationCount    uint64
}

// NewMetricsService registers collectors on a private registry.
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Wall time of schedule construction runs",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	tasksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_tasks_total",
		Help: "Placement tasks processed by result",
	}, []string{"result"})

	optimizationMoves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_optimization_moves_total",
		Help: "Local search moves by outcome",
	}, []string{"outcome"})

	schedulePenalty := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "timetable_schedule_penalty",
		Help: "Latest penalty of the last evaluated schedule by kind",
	}, []string{"kind"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		generationDuration, tasksTotal, optimizationMoves, schedulePenalty, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		generationDuration: generationDuration,
		tasksTotal:         tasksTotal,
		optimizationMoves:  optimizationMoves,
		schedulePenalty:    schedulePenalty,
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

// Registry returns the private registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
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

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveGeneration records a finished construction run.
func (m *MetricsService) ObserveGeneration(duration time.Duration, placed, unplaced int) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(duration.Seconds())
	m.tasksTotal.WithLabelValues("placed").Add(float64(placed))
	m.tasksTotal.WithLabelValues("unplaced").Add(float64(unplaced))
	atomic.AddUint64(&m.generationCount, 1)
}

// RecordMove counts one optimisation move by outcome (accepted, rejected_conflict,
// rejected_score, failed).
func (m *MetricsService) RecordMove(outcome string) {
	if m == nil {
		return
	}
	m.optimizationMoves.WithLabelValues(outcome).Inc()
}

// ObserveOptimization counts a finished optimisation run.
func (m *MetricsService) ObserveOptimization() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.optimizationCount, 1)
}

// ObservePenalty publishes the latest evaluation of a schedule.
func (m *MetricsService) ObservePenalty(report models.PenaltyReport) {
	if m == nil {
		return
	}
	m.schedulePenalty.WithLabelValues("hard").Set(report.Breakdown.Hard)
	m.schedulePenalty.WithLabelValues("soft").Set(report.Breakdown.Soft)
	m.schedulePenalty.WithLabelValues("total").Set(report.TotalPenalty)
}

// Snapshot returns aggregated counters for the metrics summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if lookups := hits + misses; lookups > 0 {
		cacheRatio = float64(hits) / float64(lookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		GenerationsTotal:         atomic.LoadUint64(&m.generationCount),
		OptimizationsTotal:       atomic.LoadUint64(&m.optimizationCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
