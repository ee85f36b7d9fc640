package signaling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the rendezvous server's Prometheus instrumentation.
type Metrics struct {
	RoomsOpen      prometheus.Gauge
	PeersSeated    prometheus.Gauge
	JoinsAdmitted  prometheus.Counter
	JoinsDenied    *prometheus.CounterVec
	MessagesRelays prometheus.Counter
}

// NewMetrics registers the rendezvous metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RoomsOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "rendezvous_rooms_open",
			Help: "Number of rooms currently registered.",
		}),
		PeersSeated: f.NewGauge(prometheus.GaugeOpts{
			Name: "rendezvous_peers_seated",
			Help: "Number of peer seats currently taken across all rooms, hosts included.",
		}),
		JoinsAdmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "rendezvous_joins_admitted_total",
			Help: "Join requests admitted.",
		}),
		JoinsDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rendezvous_joins_denied_total",
			Help: "Join requests denied, by reason.",
		}, []string{"reason"}),
		MessagesRelays: f.NewCounter(prometheus.CounterOpts{
			Name: "rendezvous_messages_relayed_total",
			Help: "Negotiation messages relayed between host and clients.",
		}),
	}
}
