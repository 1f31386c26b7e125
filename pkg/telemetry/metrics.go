package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the sync engine. A nil *Metrics
// is valid and records nothing, so components never need to nil-check.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Query metrics
	queryPages          prometheus.Counter
	queryRecords        prometheus.Counter
	rateLimitRejections prometheus.Counter

	// Delivery metrics
	deliveries      *prometheus.CounterVec
	deliveryRetries prometheus.Counter
	inFlight        prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of sync runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of sync runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		queryPages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_pages_total",
				Help:      "Total number of result pages fetched from the graph backend",
			},
		),
		queryRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_records_total",
				Help:      "Total number of change records fetched",
			},
		),
		rateLimitRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_rejections_total",
				Help:      "Total number of query calls delayed by the local rate limiter",
			},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Total number of terminal delivery outcomes",
			},
			[]string{"operation", "entity_type", "status"},
		),
		deliveryRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delivery_retries_total",
				Help:      "Total number of delivery retry attempts",
			},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "deliveries_in_flight",
				Help:      "Current number of in-flight delivery calls",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.runsCompleted, m.runDuration,
		m.queryPages, m.queryRecords, m.rateLimitRejections,
		m.deliveries, m.deliveryRetries, m.inFlight,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// RunCompleted records a finished run with its status and duration.
func (m *Metrics) RunCompleted(status string, duration time.Duration) {
	if m == nil || m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// QueryPage records one fetched result page and its record count.
func (m *Metrics) QueryPage(records int) {
	if m == nil || m.queryPages == nil {
		return
	}
	m.queryPages.Inc()
	m.queryRecords.Add(float64(records))
}

// RateLimitRejection records one rate-limiter backoff.
func (m *Metrics) RateLimitRejection() {
	if m == nil || m.rateLimitRejections == nil {
		return
	}
	m.rateLimitRejections.Inc()
}

// Delivery records a terminal delivery outcome.
func (m *Metrics) Delivery(operation, entityType string, ok bool) {
	if m == nil || m.deliveries == nil {
		return
	}
	status := "delivered"
	if !ok {
		status = "dropped"
	}
	m.deliveries.WithLabelValues(operation, entityType, status).Inc()
}

// DeliveryRetry records one retry attempt.
func (m *Metrics) DeliveryRetry() {
	if m == nil || m.deliveryRetries == nil {
		return
	}
	m.deliveryRetries.Inc()
}

// InFlight adjusts the in-flight delivery gauge.
func (m *Metrics) InFlight(delta int) {
	if m == nil || m.inFlight == nil {
		return
	}
	m.inFlight.Add(float64(delta))
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if m == nil || !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
