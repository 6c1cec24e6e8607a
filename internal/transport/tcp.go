package transport

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
)

// TCPTransport is a concrete StreamTransport over the standard library's
// net.TCPConn, giving BGP/LDP sessions a real, runnable default transport
// over loopback or a routed network without requiring the raw-socket /
// AF_PACKET path that spec §1 places out of scope.
//
// TCPTransport sets no socket options (no SO_REUSEADDR, IP_TTL or GTSM
// handling); deployments that need them supply their own StreamTransport
// implementation.
type TCPTransport struct {
	mu       sync.Mutex
	conn     net.Conn
	listener net.Listener
	cb       Callbacks
	state    State
	readBuf  []byte
}

// NewTCPTransport creates an unconnected TCPTransport. Connect or Listen
// must be called before Send.
func NewTCPTransport() *TCPTransport {
	return &TCPTransport{readBuf: make([]byte, 64*1024)}
}

// Connect dials peer:port and starts the read-pump goroutine that
// delivers inbound bytes via cb.Receive.
func (t *TCPTransport) Connect(local, peer netip.Addr, port uint16, _ uint8, cb Callbacks) error {
	laddr := &net.TCPAddr{IP: local.AsSlice()}
	raddr := &net.TCPAddr{IP: peer.AsSlice(), Port: int(port)}

	conn, err := net.DialTCP("tcp", laddr, raddr)
	if err != nil {
		return fmt.Errorf("transport connect %s:%d: %w", peer, port, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.cb = cb
	t.state = StateIdle
	t.mu.Unlock()

	if cb.Connected != nil {
		cb.Connected()
	}
	go t.readPump()
	return nil
}

// Listen opens an accept socket on local:port. The first inbound
// connection is accepted and cb.Accepted fires; subsequent connections
// are rejected (each session owns exactly one listen transport, per
// spec §5 "Resource ownership").
func (t *TCPTransport) Listen(local netip.Addr, port uint16, _ uint8, cb Callbacks) error {
	laddr := &net.TCPAddr{IP: local.AsSlice(), Port: int(port)}
	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return fmt.Errorf("transport listen %s:%d: %w", local, port, err)
	}

	t.mu.Lock()
	t.listener = ln
	t.cb = cb
	t.mu.Unlock()

	go t.acceptPump()
	return nil
}

func (t *TCPTransport) acceptPump() {
	t.mu.Lock()
	ln := t.listener
	cb := t.cb
	t.mu.Unlock()
	if ln == nil {
		return
	}

	conn, err := ln.Accept()
	if err != nil {
		if cb.Error != nil {
			cb.Error(fmt.Errorf("transport accept: %w", err))
		}
		return
	}

	t.mu.Lock()
	t.conn = conn
	t.state = StateIdle
	t.mu.Unlock()

	if cb.Accepted != nil {
		cb.Accepted()
	}
	t.readPump()
}

func (t *TCPTransport) readPump() {
	t.mu.Lock()
	conn := t.conn
	cb := t.cb
	buf := t.readBuf
	t.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		n, err := conn.Read(buf)
		if n > 0 && cb.Receive != nil {
			cb.Receive(buf[:n])
		}
		if err != nil {
			if cb.Error != nil {
				cb.Error(fmt.Errorf("transport read: %w", err))
			}
			return
		}
	}
}

// Send writes buf synchronously. TCPTransport does not coalesce sends
// itself — LDP's send-coalescing logic (spec §4.2) operates one layer up,
// against the session's own write buffer, before calling Send.
func (t *TCPTransport) Send(buf []byte) bool {
	t.mu.Lock()
	conn := t.conn
	t.state = StateSending
	t.mu.Unlock()
	if conn == nil {
		return false
	}

	_, err := conn.Write(buf)

	t.mu.Lock()
	t.state = StateIdle
	cb := t.cb
	t.mu.Unlock()

	if err != nil {
		if cb.Error != nil {
			cb.Error(fmt.Errorf("transport write: %w", err))
		}
		return false
	}
	if cb.Idle != nil {
		cb.Idle()
	}
	return true
}

// State reports the transport's current send state.
func (t *TCPTransport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Close releases the underlying connection and/or listener. Idempotent.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	conn, ln := t.conn, t.listener
	t.conn, t.listener = nil, nil
	t.state = StateClosed
	t.mu.Unlock()

	var err error
	if conn != nil {
		if cerr := conn.Close(); cerr != nil {
			err = cerr
		}
	}
	if ln != nil {
		if cerr := ln.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}
