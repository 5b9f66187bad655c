// Package metrics holds the prometheus collectors of the tracking core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Requests counts handled requests by route kind: page, pixel, beacon, rpc.
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishtrack_requests_total",
			Help: "Tracked requests by route kind and status code",
		},
		[]string{"kind", "status"},
	)

	// Denials counts gatekeeper denials by reason.
	Denials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishtrack_gate_denials_total",
			Help: "Requests denied by the gatekeeper",
		},
		[]string{"reason"}, // no_identity, unmatched_host
	)

	// Visits counts recorded visits: new or repeat.
	Visits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishtrack_visits_total",
			Help: "Recorded page visits",
		},
		[]string{"kind"},
	)

	// Credentials counts credential submissions: inserted or duplicate.
	Credentials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishtrack_credentials_total",
			Help: "Credential submissions",
		},
		[]string{"result"},
	)

	// Beacons counts deaddrop call-ins by outcome.
	Beacons = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishtrack_beacons_total",
			Help: "Deaddrop call-ins by outcome",
		},
		[]string{"result"}, // created, updated, unknown_deployment, malformed, incomplete
	)

	// Alerts counts alert lifecycle events.
	Alerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishtrack_alerts_total",
			Help: "Alerts by lifecycle stage",
		},
		[]string{"result"}, // dispatched, dropped, sent, failed
	)

	// InFlight tracks requests holding an admission permit.
	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phishtrack_admission_inflight",
		Help: "Requests currently admitted by the concurrency gate",
	})

	// TrackerFailures counts best-effort tracking steps that failed or panicked.
	TrackerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishtrack_tracker_failures_total",
		Help: "Best-effort tracking failures that did not block serving",
	})
)
