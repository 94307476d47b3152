// Package metrics defines Prometheus metrics for sweeps, escalations,
// ledger claims and per-channel deliveries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SweepRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalator_sweep_runs_total",
		Help: "Total number of SLA sweeps, by result (ok/error)",
	}, []string{"result"})
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "escalator_sweep_duration_seconds",
		Help:    "Wall time of one SLA sweep",
		Buckets: prometheus.DefBuckets,
	})
	// Case decisions taken by the sweep: notified, already_notified,
	// no_recipients, resolution_failed.
	SweepCases = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalator_sweep_cases_total",
		Help: "Cases evaluated by the SLA sweep, by decision and tier",
	}, []string{"decision", "tier"})
	LedgerClaims = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalator_ledger_claims_total",
		Help: "Ledger TryRecord calls, by tier and whether the caller won the claim",
	}, []string{"tier", "won"})
	Escalations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalator_escalations_total",
		Help: "Single-case escalations, by type",
	}, []string{"type"})
	HierarchyNotifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalator_hierarchy_notifications_total",
		Help: "Work order completion and tag notifications, by kind",
	}, []string{"kind"})
	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalator_deliveries_total",
		Help: "Delivery attempts, by channel and status (sent/skipped/failed)",
	}, []string{"channel", "status"})
	BindingLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalator_binding_lookups_total",
		Help: "Chat handle resolutions, by source (cache/directory/not_found)",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(SweepRuns)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(SweepCases)
	prometheus.MustRegister(LedgerClaims)
	prometheus.MustRegister(Escalations)
	prometheus.MustRegister(HierarchyNotifications)
	prometheus.MustRegister(Deliveries)
	prometheus.MustRegister(BindingLookups)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
