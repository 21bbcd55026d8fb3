package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Connections  prometheus.Gauge
	Rooms        prometheus.Gauge
	Envelopes    *prometheus.CounterVec
	DroppedSends prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "signaling_connections",
			Help: "Open signaling connections.",
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "signaling_rooms",
			Help: "Rooms with at least one member.",
		}),
		Envelopes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signaling_envelopes_total",
			Help: "Inbound envelopes by type.",
		}, []string{"type"}),
		DroppedSends: f.NewCounter(prometheus.CounterOpts{
			Name: "signaling_dropped_sends_total",
			Help: "Outbound frames dropped due to backpressure.",
		}),
	}
}
