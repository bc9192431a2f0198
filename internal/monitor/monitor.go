package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor exposes the server's operational metrics.
type Monitor struct {
	onlineConnections prometheus.Gauge
	activeMatches     prometheus.Gauge
	actionsAdmitted   prometheus.Counter
	actionsRejected   *prometheus.CounterVec
	snapshotsSent     prometheus.Counter
	broadcastDuration prometheus.Histogram
}

func New(namespace string) *Monitor {
	m := &Monitor{
		onlineConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_connections",
			Help:      "Number of live client connections",
		}),
		activeMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_matches",
			Help:      "Number of matches the room registry tracks",
		}),
		actionsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_admitted_total",
			Help:      "Total number of admitted actions",
		}),
		actionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_rejected_total",
			Help:      "Total number of rejected actions by reason",
		}, []string{"reason"}),
		snapshotsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_sent_total",
			Help:      "Total number of state snapshots pushed to clients",
		}),
		broadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_duration_seconds",
			Help:      "Per-match broadcast fan-out duration",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	prometheus.MustRegister(
		m.onlineConnections,
		m.activeMatches,
		m.actionsAdmitted,
		m.actionsRejected,
		m.snapshotsSent,
		m.broadcastDuration,
	)

	return m
}

// Handler returns the /metrics endpoint handler.
func (that *Monitor) Handler() http.Handler {
	return promhttp.Handler()
}

func (that *Monitor) ConnectionOpened() {
	that.onlineConnections.Inc()
}

func (that *Monitor) ConnectionClosed() {
	that.onlineConnections.Dec()
}

func (that *Monitor) SetActiveMatches(count int) {
	that.activeMatches.Set(float64(count))
}

func (that *Monitor) ActionAdmitted() {
	that.actionsAdmitted.Inc()
}

func (that *Monitor) ActionRejected(reason string) {
	that.actionsRejected.WithLabelValues(reason).Inc()
}

func (that *Monitor) SnapshotSent() {
	that.snapshotsSent.Inc()
}

func (that *Monitor) ObserveBroadcast(duration time.Duration) {
	that.broadcastDuration.Observe(duration.Seconds())
}
