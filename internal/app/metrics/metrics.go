package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rental_settlement"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	settlementRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "runs_total",
			Help:      "Settlement runs by kind and resulting record status.",
		},
		[]string{"kind", "status"},
	)

	settlementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "run_duration_seconds",
			Help:      "Duration of settlement runs.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"kind"},
	)

	stepFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "step_failures_total",
			Help:      "Failed settlement steps by kind, step and policy.",
		},
		[]string{"kind", "step", "policy"},
	)

	ledgerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "calls_total",
			Help:      "Ledger calls by function and outcome.",
		},
		[]string{"function", "outcome"},
	)

	ledgerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "call_duration_seconds",
			Help:      "Latency of ledger calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"function"},
	)

	notificationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "notifications_total",
			Help:      "Notification events by type and publish outcome.",
		},
		[]string{"type", "outcome"},
	)

	pendingRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "pending_records",
			Help:      "Agreements found PENDING past the audit threshold on the last sweep.",
		},
	)

	auditRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "runs_total",
			Help:      "Pending-record audit sweeps.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		settlementRuns,
		settlementDuration,
		stepFailures,
		ledgerCalls,
		ledgerDuration,
		notificationEvents,
		pendingRecords,
		auditRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordSettlementRun records a finished settlement run.
func RecordSettlementRun(kind, status string, duration time.Duration) {
	if status == "" {
		status = "ABORTED"
	}
	settlementRuns.WithLabelValues(kind, status).Inc()
	settlementDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordStepFailure records a failed step.
func RecordStepFailure(kind, step, policy string) {
	stepFailures.WithLabelValues(kind, step, policy).Inc()
}

// RecordLedgerCall records one ledger gateway call.
func RecordLedgerCall(function, outcome string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	ledgerCalls.WithLabelValues(function, outcome).Inc()
	ledgerDuration.WithLabelValues(function).Observe(duration.Seconds())
}

// RecordNotificationEvent records what happened to a notification event.
func RecordNotificationEvent(eventType, outcome string) {
	notificationEvents.WithLabelValues(eventType, outcome).Inc()
}

// SetPendingRecords publishes the result of the last audit sweep.
func SetPendingRecords(n int) {
	pendingRecords.Set(float64(n))
}

// RecordAuditRun counts an audit sweep.
func RecordAuditRun(success bool) {
	auditRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

var pathKeywords = map[string]bool{
	"api":           true,
	"rentals":       true,
	"payments":      true,
	"notifications": true,
	"tenant":        true,
	"owner":         true,
	"property":      true,
	"rental":        true,
	"payer":         true,
	"payee":         true,
	"user":          true,
	"health":        true,
}

// canonicalPath replaces identifiers with :id to keep label cardinality bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		if !pathKeywords[p] {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
