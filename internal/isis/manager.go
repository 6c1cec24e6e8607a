package isis

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ridgebreaker/ridgebreaker/internal/timing"
)

// Snapshot is a read-only view of one adjacency's state for the control
// API.
type Snapshot struct {
	Interface    string
	Level        Level
	P2P          bool
	State        State
	PseudoNodeID uint32
	AdjacencySID uint32
}

// Manager owns every configured interface's adjacency objects and the
// shared pseudo-node-id allocator (spec.md §4.3 "Initialization").
type Manager struct {
	mu          sync.RWMutex
	adjacencies map[string][]*Adjacency // keyed by interface name
	pseudoNodes PseudoNodeAllocator

	wheel   *timing.Wheel
	logger  *slog.Logger
	counter RoutingSessionCounter
}

// RoutingSessionCounter is the shared routing_sessions counter, floored at
// zero (spec.md §4.3 supplement, resolving the Open Question in
// DESIGN.md). It is also incremented/decremented by internal/ldp sessions
// reaching/leaving OPERATIONAL, so it lives behind a narrow interface
// rather than a concrete isis type.
type RoutingSessionCounter interface {
	Inc()
	Dec()
	Value() int64
}

// noopCounter is used when the caller does not care about the shared
// counter (e.g. isis package tests exercising Up/Down in isolation).
type noopCounter struct{}

func (noopCounter) Inc()        {}
func (noopCounter) Dec()        {}
func (noopCounter) Value() int64 { return 0 }

// NewManager creates an empty Manager. If counter is nil, a no-op counter
// is used.
func NewManager(wheel *timing.Wheel, logger *slog.Logger, counter RoutingSessionCounter) *Manager {
	if counter == nil {
		counter = noopCounter{}
	}
	return &Manager{
		adjacencies: make(map[string][]*Adjacency),
		wheel:       wheel,
		logger:      logger.With(slog.String("component", "isis.manager")),
		counter:     counter,
	}
}

// ErrUnknownInterface is returned when an operation names an interface the
// Manager has no adjacencies for.
var ErrUnknownInterface = fmt.Errorf("isis: unknown interface")

// AddInterface allocates one Adjacency per level bit set in cfg.Levels
// (spec.md §4.3 "Initialization"). On a P2P link both level-objects share
// one PeerDescriptor; on a broadcast link the interface is assigned a
// fresh pseudo-node-id from the instance-wide allocator.
func (m *Manager) AddInterface(cfg Config) []*Adjacency {
	m.mu.Lock()
	defer m.mu.Unlock()

	var peer *PeerDescriptor
	var pseudoNodeID uint32
	if cfg.P2P {
		peer = &PeerDescriptor{}
	} else {
		pseudoNodeID = m.pseudoNodes.Next()
	}

	var out []*Adjacency
	for _, level := range []Level{Level1, Level2} {
		if cfg.Levels&uint8(level) == 0 {
			continue
		}
		adj := NewAdjacency(cfg, level, peer, m.wheel, m.logger)
		adj.PseudoNodeID = pseudoNodeID
		adj.SetCallbacks(m.counter.Inc, m.counter.Dec)
		out = append(out, adj)
	}
	m.adjacencies[cfg.Interface] = out
	return out
}

// Adjacencies returns every Adjacency configured for iface.
func (m *Manager) Adjacencies(iface string) ([]*Adjacency, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	adjs, ok := m.adjacencies[iface]
	return adjs, ok
}

// Up brings every adjacency on iface up.
func (m *Manager) Up(iface string) error {
	adjs, ok := m.Adjacencies(iface)
	if !ok {
		return fmt.Errorf("up %s: %w", iface, ErrUnknownInterface)
	}
	for _, a := range adjs {
		a.Up()
	}
	return nil
}

// Down brings every adjacency on iface down.
func (m *Manager) Down(iface, reason string) error {
	adjs, ok := m.Adjacencies(iface)
	if !ok {
		return fmt.Errorf("down %s: %w", iface, ErrUnknownInterface)
	}
	for _, a := range adjs {
		a.Down(reason)
	}
	return nil
}

// Snapshots returns a point-in-time view of every adjacency across every
// configured interface.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Snapshot
	for iface, adjs := range m.adjacencies {
		for _, a := range adjs {
			out = append(out, Snapshot{
				Interface:    iface,
				Level:        a.Level,
				P2P:          a.P2P,
				State:        a.state,
				PseudoNodeID: a.PseudoNodeID,
				AdjacencySID: a.AdjacencySID,
			})
		}
	}
	return out
}
