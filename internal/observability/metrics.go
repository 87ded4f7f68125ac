package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the Prometheus collectors for the session layer.
type Metrics struct {
	// ConnectedPlayers tracks the number of live registry entries.
	ConnectedPlayers prometheus.Gauge
	// InboundMessages counts decoded inbound messages by protocol type.
	InboundMessages *prometheus.CounterVec
	// DecodeFailures counts inbound frames that could not be decoded.
	DecodeFailures prometheus.Counter
	// DroppedOutbound counts outbound messages dropped because the
	// target channel was closed or full.
	DroppedOutbound prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a fresh Prometheus registry.
//
// Postcondition: All collectors are registered and ready to use.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		ConnectedPlayers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gameserver",
			Subsystem: "session",
			Name:      "connected_players",
			Help:      "Number of currently connected players.",
		}),
		InboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gameserver",
			Subsystem: "session",
			Name:      "inbound_messages_total",
			Help:      "Decoded inbound protocol messages by type.",
		}, []string{"type"}),
		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gameserver",
			Subsystem: "session",
			Name:      "decode_failures_total",
			Help:      "Inbound frames dropped because they could not be decoded.",
		}),
		DroppedOutbound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gameserver",
			Subsystem: "session",
			Name:      "dropped_outbound_total",
			Help:      "Outbound messages dropped before delivery.",
		}),
		registry: reg,
	}
}

// Registry returns the underlying Prometheus registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
