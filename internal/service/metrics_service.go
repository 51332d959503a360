package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the timetable engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	placements         *prometheus.CounterVec
	conflictsDetected  *prometheus.CounterVec
	sweepDuration      *prometheus.HistogramVec
	generationDuration prometheus.Observer
	generationUnmet    prometheus.Counter
	staleChecks        prometheus.Counter
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_placements_total",
		Help: "Timetable cell writes by operation",
	}, []string{"operation"})

	conflictsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_conflicts_detected_total",
		Help: "Conflicts reported by placements and checks",
	}, []string{"dimension"})

	sweepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_sweep_duration_seconds",
		Help:    "Duration of full-grid conflict sweeps",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Duration of timetable generation runs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	generationUnmet := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_generation_unmet_total",
		Help: "Quota occurrences generation could not place",
	})

	staleChecks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_stale_checks_total",
		Help: "Conflict checks discarded as superseded by a newer sequence",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		placements, conflictsDetected, sweepDuration, generationDuration, generationUnmet, staleChecks, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		placements:         placements,
		conflictsDetected:  conflictsDetected,
		sweepDuration:      sweepDuration,
		generationDuration: generationDuration,
		generationUnmet:    generationUnmet,
		staleChecks:        staleChecks,
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
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordPlacement counts a cell write ("place", "remove", "clear", "generate").
func (m *MetricsService) RecordPlacement(operation string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.placements.WithLabelValues(operation).Add(float64(count))
}

// RecordConflicts counts reported conflicts per dimension.
func (m *MetricsService) RecordConflicts(result models.ConflictResult) {
	if m == nil {
		return
	}
	if n := len(result.TeacherConflicts); n > 0 {
		m.conflictsDetected.WithLabelValues(string(models.ConflictTeacher)).Add(float64(n))
	}
	if n := len(result.RoomConflicts); n > 0 {
		m.conflictsDetected.WithLabelValues(string(models.ConflictRoom)).Add(float64(n))
	}
}

// ObserveSweep records the duration of a conflict sweep.
func (m *MetricsService) ObserveSweep(mode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveGeneration records one generation run.
func (m *MetricsService) ObserveGeneration(duration time.Duration, result *models.GenerationResult) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(duration.Seconds())
	if result == nil {
		return
	}
	m.RecordPlacement("generate", result.EntriesCreated+result.FixedEntries)
	missing := 0
	for _, item := range result.Unmet {
		missing += item.MissingCount
	}
	if missing > 0 {
		m.generationUnmet.Add(float64(missing))
	}
}

// RecordStaleCheck counts a discarded speculative check.
func (m *MetricsService) RecordStaleCheck() {
	if m == nil {
		return
	}
	m.staleChecks.Inc()
}
