package bgp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/ridgebreaker/ridgebreaker/internal/rawupdate"
	"github.com/ridgebreaker/ridgebreaker/internal/timing"
)

// Sentinel errors for Manager operations, in the style of the teacher's
// bfd.Manager error set.
var (
	// ErrDuplicateSession indicates a session already exists for the peer.
	ErrDuplicateSession = errors.New("bgp: duplicate session for peer")
	// ErrInvalidPeerAddr indicates the peer address is not valid.
	ErrInvalidPeerAddr = errors.New("bgp: peer address must be valid")
)

// Snapshot is a read-only view of a session's state for the control API's
// `sessions` enumeration (spec §6).
type Snapshot struct {
	ID           uint64
	LocalAddress netip.Addr
	PeerAddress  netip.Addr
	LocalAS      uint32
	PeerAS       uint32
	Family       Family
	State        State
	Stats        Stats
	ErrorCode    uint8
	ErrorSubcode uint8
}

const notifyChSize = 64

// Manager owns every configured BGP session, keyed both by a stable
// numeric id and by peer address, mirroring the teacher's dual-indexed
// bfd.Manager (sessions / sessionsByPeer).
type Manager struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	byPeer   map[netip.Addr]*Session
	nextID   uint64

	wheel    *timing.Wheel
	logger   *slog.Logger
	notifyCh chan StateChange
}

// NewManager creates an empty Manager bound to the shared timer wheel.
func NewManager(wheel *timing.Wheel, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[uint64]*Session),
		byPeer:   make(map[netip.Addr]*Session),
		wheel:    wheel,
		logger:   logger.With(slog.String("component", "bgp.manager")),
		notifyCh: make(chan StateChange, notifyChSize),
	}
}

// CreateSession allocates and registers a new session for cfg.PeerAddress,
// returning ErrDuplicateSession if one is already registered.
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

	s := NewSession(id, cfg, m.wheel, m.logger, WithOnStateChange(m.onStateChange))
	m.sessions[id] = s
	m.byPeer[cfg.PeerAddress] = s

	m.logger.Info("session created",
		slog.Uint64("session_id", id),
		slog.String("peer", cfg.PeerAddress.String()),
		slog.Uint64("local_as", uint64(cfg.LocalAS)),
	)

	if cfg.StartTraffic {
		s.Start()
	}
	return s, nil
}

func (m *Manager) onStateChange(sc StateChange) {
	select {
	case m.notifyCh <- sc:
	default:
		m.logger.Warn("state change notification dropped, channel full", slog.Uint64("session_id", sc.SessionID))
	}
}

// StateChanges returns the channel of FSM transitions for metrics/logging
// consumers (spec §6 "State-change notifications").
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

// Sessions returns a point-in-time snapshot of every registered session,
// for the control API's `sessions` command (bgp_ctrl_sessions).
func (m *Manager) Sessions() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.sessions))
	for id, s := range m.sessions {
		code, subcode := s.ErrorCode()
		out = append(out, Snapshot{
			ID:           id,
			LocalAddress: s.cfg.LocalAddress,
			PeerAddress:  s.cfg.PeerAddress,
			LocalAS:      s.cfg.LocalAS,
			PeerAS:       s.peer.AS,
			Family:       s.cfg.Family,
			State:        s.state,
			Stats:        s.stats,
			ErrorCode:    code,
			ErrorSubcode: subcode,
		})
	}
	return out
}

// Teardown initiates a graceful close of the session with the given id
// (bgp_ctrl_teardown).
func (m *Manager) Teardown(id uint64) error {
	s, ok := m.LookupByID(id)
	if !ok {
		return fmt.Errorf("teardown session %d: %w", id, ErrUnknownSession)
	}
	s.Teardown()
	return nil
}

// TeardownAll initiates a graceful close of every registered session.
// spec.md §6 names `teardown` as operating on all sessions unconditionally
// (bgp_ctrl_teardown takes session_id but never reads it in the original);
// this is the session-agnostic counterpart exposed alongside the
// by-id Teardown above.
func (m *Manager) TeardownAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Teardown()
	}
}

// AttachRawUpdateAll loads file once per registered session and attaches
// it, implementing spec.md §6's `raw-update-list` ("attach a new chain to
// ... all sessions"). Each session performs its own load rather than
// sharing one Descriptor, per rawupdate's "descriptors are never shared
// between sessions" contract (spec §5 "Resource ownership").
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

// Disconnect forcibly closes the session's transport without a graceful
// NOTIFICATION exchange (bgp_ctrl_disconnect).
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

// Close tears down every registered session. Intended for daemon shutdown.
func (m *Manager) Close() {
	m.TeardownAll()
}

// Len returns the number of currently registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
