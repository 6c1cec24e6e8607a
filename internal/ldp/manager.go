package ldp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/ridgebreaker/ridgebreaker/internal/rawupdate"
	"github.com/ridgebreaker/ridgebreaker/internal/timing"
)

// Sentinel errors for Manager operations.
var (
	ErrDuplicateSession = errors.New("ldp: duplicate session for peer")
	ErrInvalidPeerAddr  = errors.New("ldp: peer address must be valid")
)

// Snapshot is a read-only view of a session's state for the control API.
type Snapshot struct {
	ID           uint64
	LocalAddress netip.Addr
	PeerAddress  netip.Addr
	Active       bool
	State        State
	Stats        Stats
}

const notifyChSize = 64

// RoutingSessionCounter is the shared routing_sessions counter that IS-IS
// adjacencies also increment/decrement (spec.md §4.3 supplement:
// "incremented in isis_adjacency_up/LDP's ldp_connected_cb"). Defined
// here to match internal/isis.RoutingSessionCounter structurally without
// either package importing the other; *counter.RoutingSessions from
// internal/counter satisfies both.
type RoutingSessionCounter interface {
	Inc()
	Dec()
}

// Manager owns every configured/discovered LDP session, dual-indexed like
// bgp.Manager.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	byPeer   map[netip.Addr]*Session
	nextID   uint64

	wheel    *timing.Wheel
	logger   *slog.Logger
	notifyCh chan StateChange
	counter  RoutingSessionCounter
}

// NewManager creates an empty Manager bound to the shared timer wheel. If
// counter is non-nil, it is incremented each time a session first reaches
// OPERATIONAL and decremented each time one leaves it, mirroring
// ldp_connected_cb's routing_sessions bump.
func NewManager(wheel *timing.Wheel, logger *slog.Logger, counter RoutingSessionCounter) *Manager {
	return &Manager{
		sessions: make(map[uint64]*Session),
		byPeer:   make(map[netip.Addr]*Session),
		wheel:    wheel,
		logger:   logger.With(slog.String("component", "ldp.manager")),
		notifyCh: make(chan StateChange, notifyChSize),
		counter:  counter,
	}
}

// CreateSession allocates and registers a new session for cfg.PeerAddress.
// The active/passive role is derived from IsActive(cfg.LocalAddress,
// cfg.PeerAddress) — spec §4.2's role election by transport address.
func (m *Manager) CreateSession(cfg Config) (*Session, error) {
	if !cfg.PeerAddress.IsValid() {
		return nil, fmt.Errorf("create session: %w", ErrInvalidPeerAddr)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byPeer[cfg.PeerAddress]; exists {
		return nil, fmt.Errorf("create session %s: %w", cfg.PeerAddress, ErrDuplicateSession)
	}

	m.nextID++
	id := m.nextID
	active := IsActive(cfg.LocalAddress, cfg.PeerAddress)

	s := NewSession(id, cfg, active, m.wheel, m.logger, WithOnStateChange(m.onStateChange))
	m.sessions[id] = s
	m.byPeer[cfg.PeerAddress] = s

	m.logger.Info("session created",
		slog.Uint64("session_id", id),
		slog.String("peer", cfg.PeerAddress.String()),
		slog.Bool("active", active),
	)

	if cfg.StartTraffic {
		s.Start()
	}
	return s, nil
}

func (m *Manager) onStateChange(sc StateChange) {
	if m.counter != nil {
		switch {
		case sc.New == StateOperational && sc.Old != StateOperational:
			m.counter.Inc()
		case sc.Old == StateOperational && sc.New != StateOperational:
			m.counter.Dec()
		}
	}

	select {
	case m.notifyCh <- sc:
	default:
		m.logger.Warn("state change notification dropped, channel full", slog.Uint64("session_id", sc.SessionID))
	}
}

// StateChanges returns the channel of FSM transitions.
func (m *Manager) StateChanges() <-chan StateChange {
	return m.notifyCh
}

// DestroySession tears down and removes the session with the given id.
func (m *Manager) DestroySession(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("destroy session %d: %w", id, ErrUnknownSession)
	}
	s.Teardown()
	delete(m.sessions, id)
	delete(m.byPeer, s.cfg.PeerAddress)
	return nil
}

// LookupByID returns the session registered under id.
func (m *Manager) LookupByID(id uint64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// LookupByPeer returns the session registered for peer, if any.
func (m *Manager) LookupByPeer(peer netip.Addr) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byPeer[peer]
	return s, ok
}

// Sessions returns a point-in-time snapshot of every registered session.
func (m *Manager) Sessions() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.sessions))
	for id, s := range m.sessions {
		out = append(out, Snapshot{
			ID:           id,
			LocalAddress: s.cfg.LocalAddress,
			PeerAddress:  s.cfg.PeerAddress,
			Active:       s.active,
			State:        s.state,
			Stats:        s.stats,
		})
	}
	return out
}

// Teardown initiates a graceful close of the session with the given id.
func (m *Manager) Teardown(id uint64) error {
	s, ok := m.LookupByID(id)
	if !ok {
		return fmt.Errorf("teardown session %d: %w", id, ErrUnknownSession)
	}
	s.Teardown()
	return nil
}

// TeardownAll initiates a graceful close of every registered session,
// the session-agnostic form of `teardown` named in spec.md §6.
func (m *Manager) TeardownAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Teardown()
	}
}

// AttachRawUpdateAll loads file once per registered session and attaches
// it to each, implementing spec.md §6's `raw-update-list` operation.
func (m *Manager) AttachRawUpdateAll(file string, messages, pdus uint32) error {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		desc, err := rawupdate.LoadFile(file, messages, pdus)
		if err != nil {
			return err
		}
		s.AttachRawUpdates(rawupdate.NewChain(desc))
	}
	return nil
}

// Disconnect forcibly closes the session's transport.
func (m *Manager) Disconnect(id uint64) error {
	s, ok := m.LookupByID(id)
	if !ok {
		return fmt.Errorf("disconnect session %d: %w", id, ErrUnknownSession)
	}
	s.cancelAllTimers()
	_ = s.transport.Close()
	s.state = StateIdle
	return nil
}

// Close tears down every registered session.
func (m *Manager) Close() {
	m.TeardownAll()
}

// Len returns the number of currently registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
