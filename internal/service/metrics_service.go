package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the import pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	documentsTotal  *prometheus.CounterVec
	recordsMerged   prometheus.Counter
	recomputes      prometheus.Counter
	importDuration  prometheus.Histogram
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

	documentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_documents_total",
		Help: "Documents processed by the import pipeline, by outcome",
	}, []string{"outcome"})

	recordsMerged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_records_merged_total",
		Help: "Result records merged into the store",
	})

	recomputes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aggregate_recomputes_total",
		Help: "Per-test statistics recomputations",
	})

	importDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "import_document_duration_seconds",
		Help:    "End-to-end duration of one document import",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, documentsTotal, recordsMerged, recomputes, importDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		documentsTotal:  documentsTotal,
		recordsMerged:   recordsMerged,
		recomputes:      recomputes,
		importDuration:  importDuration,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveImport records one finished document import.
func (m *MetricsService) ObserveImport(outcome string, records int, duration time.Duration) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(outcome).Inc()
	m.recordsMerged.Add(float64(records))
	m.importDuration.Observe(duration.Seconds())
}

// ObserveRecompute records one per-test statistics recomputation.
func (m *MetricsService) ObserveRecompute() {
	if m == nil {
		return
	}
	m.recomputes.Inc()
}
