package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmergencyTransitions counts lifecycle transitions by resulting status.
	EmergencyTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harmonycare_emergency_transitions_total",
		Help: "Emergency lifecycle transitions by resulting status",
	}, []string{"status"})

	// RemoteSyncFailures counts failed calls against the remote sync API.
	RemoteSyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmonycare_remote_sync_failures_total",
		Help: "Failed remote sync operations (probe, create, update, list)",
	})

	// BroadcastsSent counts LAN announcements (best-effort, no delivery guarantee).
	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmonycare_broadcasts_sent_total",
		Help: "Emergency announcements sent on the local network",
	})

	// PendingOperations tracks the offline queue depth.
	PendingOperations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harmonycare_pending_operations",
		Help: "Operations queued for remote replay",
	})

	// ReplayedOperations counts replay outcomes.
	ReplayedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harmonycare_replayed_operations_total",
		Help: "Offline queue replay outcomes",
	}, []string{"outcome"}) // synced | retried | dropped
)
