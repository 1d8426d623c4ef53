// Package metrics holds the process-wide Prometheus instruments, served on
// GET /metrics by the ingestion server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_http_requests_total",
		Help: "Webhook HTTP requests by response status.",
	}, []string{"status"})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_events_total",
		Help: "Decoded webhook events by normalized type.",
	}, []string{"type"})

	SignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hookgate_signature_failures_total",
		Help: "Requests rejected for a missing or invalid signature.",
	})

	WelcomesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hookgate_welcomes_sent_total",
		Help: "Welcome DMs delivered and recorded in the ledger.",
	})

	WelcomesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hookgate_welcomes_skipped_total",
		Help: "Welcome dispatches skipped because the user was already welcomed.",
	})

	WelcomesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hookgate_welcomes_failed_total",
		Help: "Welcome DMs that could not be delivered.",
	})
)
