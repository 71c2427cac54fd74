package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the poll-loop instrumentation. All methods are nil-safe so
// a Poller without metrics pays nothing.
type Metrics struct {
	cycles        prometheus.Counter
	cycleFailures prometheus.Counter
	cycleDuration prometheus.Histogram
	unreachable   *prometheus.CounterVec
	activeEvents  prometheus.Gauge
	nodesOnline   prometheus.Gauge
	snapshotsSent prometheus.Counter
}

// NewMetrics registers the poll-loop metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		cycles: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "netsecsim_poll_cycles_total",
			Help: "Completed poll cycles",
		}),
		cycleFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "netsecsim_poll_cycle_failures_total",
			Help: "Poll cycles aborted by an unexpected internal fault",
		}),
		cycleDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "netsecsim_poll_cycle_duration_seconds",
			Help:    "Wall time of one full poll cycle",
			Buckets: prometheus.DefBuckets,
		}),
		unreachable: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "netsecsim_node_unreachable_total",
			Help: "Per-node polls in which the node was unreachable",
		}, []string{"node"}),
		activeEvents: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "netsecsim_attack_events_active",
			Help: "Attack events observed in the latest snapshot",
		}),
		nodesOnline: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "netsecsim_nodes_online",
			Help: "Nodes observed online in the latest snapshot",
		}),
		snapshotsSent: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "netsecsim_snapshots_published_total",
			Help: "Snapshots published to sinks",
		}),
	}
}

func (m *Metrics) observeCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) observeFailure() {
	if m == nil {
		return
	}
	m.cycleFailures.Inc()
}

func (m *Metrics) observeUnreachable(node string) {
	if m == nil {
		return
	}
	m.unreachable.WithLabelValues(node).Inc()
}

func (m *Metrics) observeSnapshot(online, events int) {
	if m == nil {
		return
	}
	m.nodesOnline.Set(float64(online))
	m.activeEvents.Set(float64(events))
	m.snapshotsSent.Inc()
}
