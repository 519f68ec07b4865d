package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lifeline"

// Metrics holds the Prometheus collectors shared by the worker, the
// notification dispatcher, the offline queue and the sync controller.
type Metrics struct {
	CacheRequests       *prometheus.CounterVec // labels: strategy, result={hit,miss,network,fallback,offline}
	CacheWrites         *prometheus.CounterVec // labels: partition, outcome={ok,error}
	PartitionsDeleted   prometheus.Counter
	NotificationsShown  *prometheus.CounterVec // labels: type
	NotificationsClosed *prometheus.CounterVec // labels: reason={click,sweep,close}
	NotificationClicks  *prometheus.CounterVec // labels: action

	Snapshots           *prometheus.CounterVec // labels: collection
	AlertsRaised        prometheus.Counter
	AlertsPending       prometheus.Gauge
	SubscriptionsActive prometheus.Gauge

	QueueItems   prometheus.Gauge
	QueueReplays prometheus.Counter
}

func build() *Metrics {
	return &Metrics{
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Intercepted requests by strategy and result.",
		}, []string{"strategy", "result"}),
		CacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Cache partition writes by partition and outcome.",
		}, []string{"partition", "outcome"}),
		PartitionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_deleted_total",
			Help:      "Cache partitions removed on activation.",
		}),
		NotificationsShown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_shown_total",
			Help:      "Notifications rendered by payload type.",
		}, []string{"type"}),
		NotificationsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_closed_total",
			Help:      "Notifications closed by reason.",
		}, []string{"reason"}),
		NotificationClicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_clicks_total",
			Help:      "Notification clicks by action.",
		}, []string{"action"}),
		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshot deliveries reconciled per collection.",
		}, []string{"collection"}),
		AlertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Responder alerts raised for newly reported incidents.",
		}),
		AlertsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_pending",
			Help:      "Alerts waiting behind the visible one.",
		}),
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Live collection subscriptions.",
		}),
		QueueItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_items",
			Help:      "Mutations held in the offline queue.",
		}),
		QueueReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_replays_total",
			Help:      "Replay hand-offs of the offline queue.",
		}),
	}
}

// New creates and registers all metrics with the default Prometheus registry.
func New() *Metrics {
	m := build()
	prometheus.MustRegister(
		m.CacheRequests,
		m.CacheWrites,
		m.PartitionsDeleted,
		m.NotificationsShown,
		m.NotificationsClosed,
		m.NotificationClicks,
		m.Snapshots,
		m.AlertsRaised,
		m.AlertsPending,
		m.SubscriptionsActive,
		m.QueueItems,
		m.QueueReplays,
	)
	return m
}

// NewForTesting creates unregistered metrics so tests can build as many
// instances as they like.
func NewForTesting() *Metrics {
	return build()
}
