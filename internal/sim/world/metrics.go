package world

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"storageracks.ai/internal/sim/cluster"
)

// Metrics exports world counters to Prometheus. It is updated from the
// world loop goroutine and scraped concurrently.
type Metrics struct {
	discoverTotal  *prometheus.CounterVec
	discoverSize   prometheus.Histogram
	placementTotal *prometheus.CounterVec
	ejectedItems   prometheus.Counter
	racks          prometheus.Gauge
	controllers    prometheus.Gauge
	tick           prometheus.Gauge
	requestsTotal  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		discoverTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storageracks_discover_total",
			Help: "Cluster discovery traversals by result.",
		}, []string{"result"}),
		discoverSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "storageracks_discover_visited",
			Help:    "Nodes visited per discovery traversal.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		placementTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storageracks_placement_total",
			Help: "Topology events by outcome.",
		}, []string{"outcome"}),
		ejectedItems: f.NewCounter(prometheus.CounterOpts{
			Name: "storageracks_ejected_items_total",
			Help: "Items handed to the item sink on removal or shrink.",
		}),
		racks: f.NewGauge(prometheus.GaugeOpts{
			Name: "storageracks_racks",
			Help: "Racks currently in the world.",
		}),
		controllers: f.NewGauge(prometheus.GaugeOpts{
			Name: "storageracks_controllers",
			Help: "Controllers currently registered.",
		}),
		tick: f.NewGauge(prometheus.GaugeOpts{
			Name: "storageracks_tick",
			Help: "Last completed world tick.",
		}),
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storageracks_requests_total",
			Help: "Requests applied by the world loop, by op and ok.",
		}, []string{"op", "ok"}),
	}
}

// ObserveDiscover implements cluster.Observer.
func (m *Metrics) ObserveDiscover(result string, visited int) {
	m.discoverTotal.WithLabelValues(result).Inc()
	m.discoverSize.Observe(float64(visited))
}

func (m *Metrics) observePlacement(o cluster.Outcome) {
	m.placementTotal.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) observeEjected(n int) { m.ejectedItems.Add(float64(n)) }

func (m *Metrics) setTopology(racks, controllers int) {
	m.racks.Set(float64(racks))
	m.controllers.Set(float64(controllers))
}

func (m *Metrics) observeTick(tick uint64) { m.tick.Set(float64(tick)) }

func (m *Metrics) observeRequest(op string, ok bool) {
	label := "false"
	if ok {
		label = "true"
	}
	m.requestsTotal.WithLabelValues(op, label).Inc()
}
