// Package metrics exposes ridgebreaker's Prometheus metrics: per-engine
// session gauges, message counters, and IS-IS adjacency-state gauges.
package metrics

import (
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const namespace = "ridgebreaker"

// Label names.
const (
	labelPeerAddr  = "peer_addr"
	labelLocalAddr = "local_addr"
	labelEngine    = "engine" // "bgp", "ldp", "isis"
	labelFromState = "from_state"
	labelToState   = "to_state"
	labelInterface = "interface"
	labelLevel     = "level"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Engine Metrics
// -------------------------------------------------------------------------

// Collector holds every Prometheus metric emitted by the three peering
// engines.
//
//   - Sessions tracks currently active BGP/LDP sessions, labeled by engine.
//   - MessagesSent/MessagesReceived count protocol-message traffic per peer.
//   - StateTransitions records FSM changes for alerting.
//   - Adjacencies tracks IS-IS per-(interface, level) adjacency state.
//   - RoutingSessions mirrors the shared routing_sessions counter
//     (spec.md §4.3, floored at zero).
type Collector struct {
	// Sessions tracks the number of currently active BGP/LDP sessions,
	// labeled by engine ("bgp" or "ldp").
	Sessions *prometheus.GaugeVec

	// MessagesSent counts protocol messages transmitted per peer.
	MessagesSent *prometheus.CounterVec

	// MessagesReceived counts protocol messages received per peer.
	MessagesReceived *prometheus.CounterVec

	// StateTransitions counts FSM state transitions, labeled with the old
	// state and new state for precise alerting (e.g., Established->Idle).
	StateTransitions *prometheus.CounterVec

	// Adjacencies reports the current IS-IS adjacency state (0=down,
	// 1=up) per (interface, level).
	Adjacencies *prometheus.GaugeVec

	// RoutingSessions mirrors the shared routing_sessions gauge: the
	// count of IS-IS adjacencies plus LDP sessions currently up.
	RoutingSessions prometheus.Gauge
}

// NewCollector creates a Collector with every metric registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.MessagesSent,
		c.MessagesReceived,
		c.StateTransitions,
		c.Adjacencies,
		c.RoutingSessions,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	sessionLabels := []string{labelPeerAddr, labelLocalAddr, labelEngine}
	peerLabels := []string{labelPeerAddr, labelLocalAddr, labelEngine}
	transitionLabels := []string{labelPeerAddr, labelLocalAddr, labelEngine, labelFromState, labelToState}
	adjacencyLabels := []string{labelInterface, labelLevel}

	return &Collector{
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Number of currently active BGP/LDP sessions.",
		}, sessionLabels),

		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total protocol messages transmitted.",
		}, peerLabels),

		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total protocol messages received.",
		}, peerLabels),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total session FSM state transitions.",
		}, transitionLabels),

		Adjacencies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "isis_adjacency_up",
			Help:      "IS-IS adjacency state per (interface, level): 1 if up, 0 otherwise.",
		}, adjacencyLabels),

		RoutingSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "routing_sessions",
			Help:      "Combined count of up IS-IS adjacencies and LDP sessions (spec routing_sessions counter).",
		}),
	}
}

// -------------------------------------------------------------------------
// Session Lifecycle
// -------------------------------------------------------------------------

// RegisterSession increments the active sessions gauge for the given peer.
func (c *Collector) RegisterSession(peer, local netip.Addr, engine string) {
	c.Sessions.WithLabelValues(peer.String(), local.String(), engine).Inc()
}

// UnregisterSession decrements the active sessions gauge for the given peer.
func (c *Collector) UnregisterSession(peer, local netip.Addr, engine string) {
	c.Sessions.WithLabelValues(peer.String(), local.String(), engine).Dec()
}

// -------------------------------------------------------------------------
// Message Counters
// -------------------------------------------------------------------------

// IncMessagesSent increments the transmitted-message counter for the peer.
func (c *Collector) IncMessagesSent(peer, local netip.Addr, engine string) {
	c.MessagesSent.WithLabelValues(peer.String(), local.String(), engine).Inc()
}

// IncMessagesReceived increments the received-message counter for the peer.
func (c *Collector) IncMessagesReceived(peer, local netip.Addr, engine string) {
	c.MessagesReceived.WithLabelValues(peer.String(), local.String(), engine).Inc()
}

// -------------------------------------------------------------------------
// State Transitions
// -------------------------------------------------------------------------

// RecordStateTransition increments the state transition counter with the
// old and new state labels.
func (c *Collector) RecordStateTransition(peer, local netip.Addr, engine, from, to string) {
	c.StateTransitions.WithLabelValues(peer.String(), local.String(), engine, from, to).Inc()
}

// -------------------------------------------------------------------------
// IS-IS Adjacencies
// -------------------------------------------------------------------------

// SetAdjacencyUp reports an IS-IS adjacency's up/down state.
func (c *Collector) SetAdjacencyUp(iface string, level uint8, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	c.Adjacencies.WithLabelValues(iface, levelLabel(level)).Set(v)
}

func levelLabel(level uint8) string {
	switch level {
	case 1:
		return "1"
	case 2:
		return "2"
	default:
		return "unknown"
	}
}

// -------------------------------------------------------------------------
// Routing Sessions
// -------------------------------------------------------------------------

// SetRoutingSessions reports the current value of the shared
// routing_sessions counter.
func (c *Collector) SetRoutingSessions(n int64) {
	c.RoutingSessions.Set(float64(n))
}
