package api

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. Each Server owns its own
// registry so several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests            *prometheus.CounterVec
	codesRegistered     prometheus.Counter
	verifications       *prometheus.CounterVec
	statusChecks        *prometheus.CounterVec
	rateLimited         prometheus.Counter
	deploymentsRecorded prometheus.Counter
	codesPruned         prometheus.Counter
	webhookFailures     prometheus.Counter
}

// NewMetrics registers the dehost collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dehost_http_requests_total",
			Help: "HTTP requests by status class.",
		}, []string{"class"}),
		codesRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "dehost_pairing_codes_registered_total",
			Help: "Verification codes registered by the CLI.",
		}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dehost_pairing_verifications_total",
			Help: "Code verification attempts by result.",
		}, []string{"result"}), // verified, not_found, expired, already_verified, invalid, error
		statusChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dehost_pairing_status_checks_total",
			Help: "Code status lookups by result.",
		}, []string{"result"}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "dehost_rate_limited_total",
			Help: "Requests rejected by the per-IP pairing limiter.",
		}),
		deploymentsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "dehost_deployments_recorded_total",
			Help: "Deployments recorded for paired CLI sessions.",
		}),
		codesPruned: f.NewCounter(prometheus.CounterOpts{
			Name: "dehost_pairing_codes_pruned_total",
			Help: "Expired unverified codes removed by housekeeping.",
		}),
		webhookFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "dehost_webhook_failures_total",
			Help: "Webhook deliveries that did not get a 2xx response.",
		}),
	}
}

// RecordRequest counts a finished request by its status class ("2xx", "4xx", ...).
func (m *Metrics) RecordRequest(status int) {
	m.requests.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
