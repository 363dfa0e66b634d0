package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rotaops/rota-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	generationsTotal prometheus.Counter
	shiftsPlanned    prometheus.Gauge
	slotsFilled      prometheus.Gauge
	slotsOpen        prometheus.Gauge
	reportsRendered  *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	generationCount      uint64
	reportsSucceeded     uint64
	reportsFailed        uint64
	lastShifts           int64
	lastOpenSlots        int64
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

	generationsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_generations_total",
		Help: "Total number of schedule generation runs",
	})

	shiftsPlanned := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_shifts_planned",
		Help: "Shifts in the most recently generated schedule",
	})

	slotsFilled := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_slots_filled",
		Help: "Filled staff slots in the most recently generated schedule",
	})

	slotsOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_slots_open",
		Help: "Unfilled staff slots in the most recently generated schedule",
	})

	reportsRendered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reports_rendered_total",
		Help: "Total report render attempts by format and outcome",
	}, []string{"format", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, generationsTotal, shiftsPlanned, slotsFilled, slotsOpen, reportsRendered, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		generationsTotal: generationsTotal,
		shiftsPlanned:    shiftsPlanned,
		slotsFilled:      slotsFilled,
		slotsOpen:        slotsOpen,
		reportsRendered:  reportsRendered,
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

// RecordGeneration tracks the outcome of a schedule generation run.
func (m *MetricsService) RecordGeneration(totalShifts, filledSlots, openSlots int) {
	if m == nil {
		return
	}
	m.generationsTotal.Inc()
	m.shiftsPlanned.Set(float64(totalShifts))
	m.slotsFilled.Set(float64(filledSlots))
	m.slotsOpen.Set(float64(openSlots))
	atomic.AddUint64(&m.generationCount, 1)
	atomic.StoreInt64(&m.lastShifts, int64(totalShifts))
	atomic.StoreInt64(&m.lastOpenSlots, int64(openSlots))
}

// RecordReport tracks a report render attempt.
func (m *MetricsService) RecordReport(format models.ReportFormat, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.reportsRendered.WithLabelValues(string(format), status).Inc()
	if success {
		atomic.AddUint64(&m.reportsSucceeded, 1)
	} else {
		atomic.AddUint64(&m.reportsFailed, 1)
	}
}

// Snapshot returns aggregated metrics suitable for the ops endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		GenerationsTotal:         atomic.LoadUint64(&m.generationCount),
		LastGenerationShifts:     int(atomic.LoadInt64(&m.lastShifts)),
		LastGenerationOpenSlots:  int(atomic.LoadInt64(&m.lastOpenSlots)),
		ReportsSucceeded:         atomic.LoadUint64(&m.reportsSucceeded),
		ReportsFailed:            atomic.LoadUint64(&m.reportsFailed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
