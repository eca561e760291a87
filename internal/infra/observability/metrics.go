package observability

import (
	"time"

	"github.com/boddenberg/giant-coach-panel-bfa/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Validation kinds tracked in the panel snapshot.
var validationKinds = []domain.ValidationKind{
	domain.ValidationMissingField,
	domain.ValidationMissingJourney,
	domain.ValidationEmptyQuestion,
	domain.ValidationInvalidValue,
}

// Metrics holds all Prometheus metrics for the panel BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	messagesTotal    *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	widgetErrors     prometheus.Counter
	errorsDismissed  prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "panel_request_duration_seconds",
				Help:    "Duration of panel operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panel_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panel_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panel_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		messagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panel_messages_total",
				Help: "Messages dispatched to the chat transport.",
			},
			[]string{"flow", "status"},
		),
		validationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panel_validation_errors_total",
				Help: "Form submissions rejected by validation.",
			},
			[]string{"kind"},
		),
		widgetErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "panel_widget_errors_total",
				Help: "Errors reported by the chat widget error channel.",
			},
		),
		errorsDismissed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "panel_errors_dismissed_total",
				Help: "Errors dismissed by the user.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrMessage counts a dispatch attempt. status is "success" or "error".
func (m *Metrics) IncrMessage(flow, status string) {
	m.messagesTotal.WithLabelValues(flow, status).Inc()
}

// IncrValidationError counts a rejected form submission.
func (m *Metrics) IncrValidationError(kind domain.ValidationKind) {
	m.validationErrors.WithLabelValues(string(kind)).Inc()
}

// IncrWidgetError counts an error applied from the widget channel.
func (m *Metrics) IncrWidgetError() {
	m.widgetErrors.Inc()
}

// IncrErrorDismissed counts an explicit dismissal of a shown error.
func (m *Metrics) IncrErrorDismissed() {
	m.errorsDismissed.Inc()
}

// GetPanelSnapshot returns a snapshot of panel metrics suitable for the
// GET /v1/metrics/panel endpoint.
func (m *Metrics) GetPanelSnapshot() *domain.PanelMetrics {
	var sent, failed float64
	for _, flow := range []string{"appointment", "journey", "message"} {
		sent += counterValue(m.messagesTotal.WithLabelValues(flow, "success"))
		failed += counterValue(m.messagesTotal.WithLabelValues(flow, "error"))
	}

	validation := make(map[string]int64, len(validationKinds))
	for _, kind := range validationKinds {
		validation[string(kind)] = int64(counterValue(m.validationErrors.WithLabelValues(string(kind))))
	}

	hits := counterValue(m.cacheHits.WithLabelValues("session"))
	misses := counterValue(m.cacheMisses.WithLabelValues("session"))

	errorRate := float64(0)
	hitRate := float64(0)
	if sent+failed > 0 {
		errorRate = failed / (sent + failed)
	}
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.PanelMetrics{
		MessagesSent:       int64(sent),
		MessagesFailed:     int64(failed),
		ValidationErrors:   validation,
		WidgetErrors:       int64(counterValue(m.widgetErrors)),
		ErrorsDismissed:    int64(counterValue(m.errorsDismissed)),
		TransportErrorRate: errorRate,
		SessionHitRate:     hitRate,
		Period:             "all_time",
	}
}

// counterValue extracts the current float64 value from a counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
