// Package transport defines the external byte-stream and packet
// abstractions consumed by the BGP/LDP and IS-IS engines respectively
// (spec §6 "Transport contract"). Production sockets, raw AF_PACKET
// capture, and TCP reassembly live outside this module (spec §1
// "Out of scope"); this package only specifies the callback-driven
// interface the engines program against, plus one concrete TCP-backed
// StreamTransport for standalone operation (see tcp.go).
package transport

import "net/netip"

// State mirrors the transport context's `state` field from spec §6:
// IDLE means no send is outstanding, SENDING means a write is in flight.
type State int

const (
	StateIdle State = iota
	StateSending
	StateClosed
)

// Callbacks groups the five callback slots a StreamTransport invokes into
// the owning session, matching spec §6 exactly:
//
//   - Connected fires once an active (connect()) transport establishes.
//   - Accepted fires once a passive (listen()) transport accepts a peer.
//   - Receive delivers newly arrived bytes; a call with buf == nil is the
//     "drain now" signal — the engine must run its decode loop against
//     whatever is already buffered (grounded on bgp_receive_cb's
//     buf == NULL branch which triggers bgp_read with no new bytes).
//   - Idle fires once a previously posted Send has fully drained.
//   - Error fires on any transport-level failure. The engines send no
//     outbound notification in response: BGP moves from Connect to
//     Active and LDP from Connect back to Idle, both re-arming the connect
//     supervisor; in every other state an Error changes no FSM state.
type Callbacks struct {
	Connected func()
	Accepted  func()
	Receive   func(buf []byte)
	Idle      func()
	Error     func(err error)
}

// StreamTransport is the per-peer byte-stream context consumed by the BGP
// and LDP engines (spec §6).
type StreamTransport interface {
	// Connect actively establishes a connection to peer:port from local,
	// registering cb to receive the resulting events.
	Connect(local, peer netip.Addr, port uint16, tos uint8, cb Callbacks) error

	// Listen passively opens an accept socket on local:port, registering cb
	// to receive Accepted/Receive/Idle/Error for whichever peer connects.
	Listen(local netip.Addr, port uint16, tos uint8, cb Callbacks) error

	// Send posts buf for transmission. Returns true if the write was
	// accepted (queued or sent immediately), false if a previous send has
	// not yet drained and the caller must retry later. LDP keeps the bytes
	// in its write buffer and retries from a 1-second timer; BGP does not
	// retry, and the refused message is dropped.
	Send(buf []byte) bool

	// State reports the current transport state.
	State() State

	// Close releases the transport context. Idempotent.
	Close() error
}

// PacketTransport is the per-interface packet-oriented context consumed
// by the IS-IS engine (spec §2 "For IS-IS, the transport is
// packet-oriented over a network interface").
type PacketTransport interface {
	// Send transmits one framed packet (hello, CSNP, PSNP, or LSP) on the
	// interface.
	Send(frame []byte) error

	// SetReceiver registers the callback invoked for each inbound frame.
	SetReceiver(func(frame []byte))

	// Close releases the interface binding. Idempotent.
	Close() error
}
