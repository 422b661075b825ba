package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the audit service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Records written by action type code
	RecordsCreated *prometheus.CounterVec

	// Ingested events by source service and outcome
	IngestOutcome *prometheus.CounterVec

	// Dedup store failures swallowed by the gate, by operation
	DedupErrors *prometheus.CounterVec

	// Expired dedup entries removed by the sweep
	DedupRemoved prometheus.Counter

	// Narratives that degraded to the fallback sentence, by action type code
	NarrativeFallbacks *prometheus.CounterVec

	// HTTP latency by method, route and status
	HTTPDuration *prometheus.HistogramVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecordsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_records_created_total",
			Help: "Total audit records written by action type",
		}, []string{"action_type"}),

		IngestOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_ingest_events_total",
			Help: "Total ingested events by source service and outcome",
		}, []string{"source", "outcome"}), // outcome: accepted, duplicate, rejected, failed

		DedupErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_dedup_store_errors_total",
			Help: "Dedup store failures treated as non-duplicate",
		}, []string{"op"}),

		DedupRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "audit_dedup_expired_removed_total",
			Help: "Expired dedup entries removed by cleanup",
		}),

		NarrativeFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_narrative_fallbacks_total",
			Help: "Narratives rendered with the generic fallback sentence",
		}, []string{"action_type"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncRecordCreated(actionType string) {
	if m != nil {
		m.RecordsCreated.WithLabelValues(actionType).Inc()
	}
}

func (m *Metrics) IncIngestOutcome(source, outcome string) {
	if m != nil {
		m.IngestOutcome.WithLabelValues(source, outcome).Inc()
	}
}

func (m *Metrics) IncDedupError(op string) {
	if m != nil {
		m.DedupErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) AddDedupRemoved(n int64) {
	if m != nil && n > 0 {
		m.DedupRemoved.Add(float64(n))
	}
}

// NarrativeFallback matches narrative.Builder.OnFallback.
func (m *Metrics) NarrativeFallback(actionType string, _ error) {
	if m != nil {
		m.NarrativeFallbacks.WithLabelValues(actionType).Inc()
	}
}

// Middleware records request latency under the matched route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
