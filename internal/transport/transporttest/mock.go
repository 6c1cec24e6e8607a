// Package transporttest provides an in-memory transport.StreamTransport
// double for engine unit tests, modeled on the teacher's
// internal/netio/mock_test.go pattern but exported so internal/bgp and
// internal/ldp tests share one implementation.
package transporttest

import (
	"net/netip"
	"sync"

	"github.com/ridgebreaker/ridgebreaker/internal/transport"
)

// Mock is a fully in-memory StreamTransport. Tests drive it by calling
// Deliver to simulate inbound bytes and inspect Sent for outbound bytes.
type Mock struct {
	mu          sync.Mutex
	cb          transport.Callbacks
	state       transport.State
	Sent        [][]byte
	ConnectErr  error
	ListenErr   error
	RefuseSend  bool // when true, Send reports backpressure (false, no drain)
	connectedAt int
	closed      bool
}

// NewMock creates an unconnected Mock transport.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Connect(_, _ netip.Addr, _ uint16, _ uint8, cb transport.Callbacks) error {
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.mu.Lock()
	m.cb = cb
	m.state = transport.StateIdle
	m.connectedAt++
	m.mu.Unlock()
	if cb.Connected != nil {
		cb.Connected()
	}
	return nil
}

func (m *Mock) Listen(_ netip.Addr, _ uint16, _ uint8, cb transport.Callbacks) error {
	if m.ListenErr != nil {
		return m.ListenErr
	}
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()
	return nil
}

// SimulateAccept simulates a passive transport accepting a peer.
func (m *Mock) SimulateAccept() {
	m.mu.Lock()
	m.state = transport.StateIdle
	cb := m.cb
	m.mu.Unlock()
	if cb.Accepted != nil {
		cb.Accepted()
	}
}

// Send records buf and, unless RefuseSend is set, immediately fires Idle
// -- simulating a transport that drains synchronously. Tests that need to
// exercise send-coalescing set RefuseSend, then clear it and let the
// session's own send-retry timer post the buffered bytes again.
func (m *Mock) Send(buf []byte) bool {
	m.mu.Lock()
	if m.RefuseSend {
		m.mu.Unlock()
		return false
	}
	cp := append([]byte(nil), buf...)
	m.Sent = append(m.Sent, cp)
	m.state = transport.StateSending
	cb := m.cb
	m.mu.Unlock()

	m.mu.Lock()
	m.state = transport.StateIdle
	m.mu.Unlock()
	if cb.Idle != nil {
		cb.Idle()
	}
	return true
}

// State reports the current send state.
func (m *Mock) State() transport.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close marks the mock closed. Idempotent.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.state = transport.StateClosed
	return nil
}

// Closed reports whether Close has been called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Deliver simulates len(buf) inbound bytes arriving, invoking
// Callbacks.Receive. Passing nil triggers the "drain now" signal (spec
// §6), matching bgp_receive_cb's buf == NULL branch.
func (m *Mock) Deliver(buf []byte) {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if cb.Receive != nil {
		cb.Receive(buf)
	}
}

// DeliverError simulates a transport-level failure.
func (m *Mock) DeliverError(err error) {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if cb.Error != nil {
		cb.Error(err)
	}
}

// LastSent returns the most recently sent buffer, or nil.
func (m *Mock) LastSent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return m.Sent[len(m.Sent)-1]
}
