// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mantikon_registrations_total",
		Help: "Registration attempts by outcome",
	}, []string{"outcome"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mantikon_notifications_total",
		Help: "Outbound registration notices by notifier and outcome",
	}, []string{"notifier", "outcome"})

	BotUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mantikon_bot_updates_total",
		Help: "Chat updates handled by the admin bot, by action",
	}, []string{"action"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mantikon_http_request_duration_seconds",
		Help:    "Latency of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Outcome labels shared by the counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)
