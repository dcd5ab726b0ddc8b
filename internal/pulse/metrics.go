package pulse

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/Pulse/internal/weights"
)

const (
	resultChanged         = "changed"
	resultNoop            = "noop"
	resultUnknownCategory = "unknown_category"
	resultError           = "error"
)

type Metrics struct {
	Redistributions *prometheus.CounterVec
	PulseScore      prometheus.Gauge
	SectorWeight    *prometheus.GaugeVec
	Snapshots       prometheus.Counter
}

// NewMetrics registers the pulse collectors with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Redistributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "redistributions_total",
			Help:      "Weight redistribution requests by result.",
		}, []string{"result"}),
		PulseScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pulse",
			Name:      "score",
			Help:      "Current weighted pulse score (0-100).",
		}),
		SectorWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pulse",
			Name:      "sector_weight_percent",
			Help:      "Current weight of each sector.",
		}, []string{"sector"}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "snapshots_total",
			Help:      "Pulse snapshots recorded.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Redistributions, m.PulseScore, m.SectorWeight, m.Snapshots)
	}
	return m
}

func (m *Metrics) observe(w weights.Set, score float64) {
	for name, v := range w {
		m.SectorWeight.WithLabelValues(name).Set(v)
	}
	m.PulseScore.Set(score)
}
