package ldp_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/ridgebreaker/ridgebreaker/internal/ldp"
	"github.com/ridgebreaker/ridgebreaker/internal/timing"
	"github.com/ridgebreaker/ridgebreaker/internal/transport/transporttest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeConfig() ldp.Config {
	return ldp.Config{
		LocalAddress: netip.MustParseAddr("10.0.0.2"),
		PeerAddress:  netip.MustParseAddr("10.0.0.1"),
		LSRID:        0x0A000002,
		KeepaliveTime: 30,
	}.WithDefaults()
}

func passiveConfig() ldp.Config {
	return ldp.Config{
		LocalAddress: netip.MustParseAddr("10.0.0.1"),
		PeerAddress:  netip.MustParseAddr("10.0.0.2"),
		LSRID:        0x0A000001,
		KeepaliveTime: 30,
	}.WithDefaults()
}

// TestSessionActiveHappyPath drives the active side through
// Connect->Initialized->OpenSent->OpenRec->Operational.
func TestSessionActiveHappyPath(t *testing.T) {
	t.Parallel()
	now := time.Now()
	wheel := timing.NewWithClock(func() time.Time { return now })
	mock := transporttest.NewMock()

	cfg := activeConfig()
	if !ldp.IsActive(cfg.LocalAddress, cfg.PeerAddress) {
		t.Fatalf("test precondition: expected local to be active")
	}
	sess := ldp.NewSession(1, cfg, true, wheel, testLogger(), ldp.WithTransport(mock))

	sess.Start() // Closed -> Idle -> Connect, arms connect timer

	now = now.Add(5 * time.Second)
	if fired := wheel.RunOnce(); fired == 0 {
		t.Fatalf("expected connect timer to fire")
	}
	// Mock.Connect invokes Connected synchronously, cascading the session
	// all the way to OpenSent (Initialized -> self-posted Start -> OpenSent,
	// emitting INIT).
	if sess.State() != ldp.StateOpenSent {
		t.Fatalf("state = %v, want OpenSent", sess.State())
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("expected 1 message sent (INIT), got %d", len(mock.Sent))
	}

	peerInit := ldp.EncodeInit(0x0A000001, 0, 1, 30, 1500)
	mock.Deliver(peerInit)
	if sess.State() != ldp.StateOpenRec {
		t.Fatalf("state = %v, want OpenRec", sess.State())
	}
	if kept, maxPDU := sess.PeerParams(); kept != 30 || maxPDU != 1500 {
		t.Fatalf("PeerParams() = (%d,%d), want (30,1500)", kept, maxPDU)
	}

	peerKA := ldp.EncodeKeepalive(0x0A000001, 0, 2)
	mock.Deliver(peerKA)
	if sess.State() != ldp.StateOperational {
		t.Fatalf("state = %v, want Operational", sess.State())
	}
	if sess.NegotiatedKeepalive() != 30 {
		t.Fatalf("NegotiatedKeepalive() = %d, want 30", sess.NegotiatedKeepalive())
	}
}

// TestSessionPassiveHappyPath drives the passive side through
// Listen->Initialized->OpenRec->Operational, replying to the peer's INIT
// with its own INIT plus KEEPALIVE in one transition.
func TestSessionPassiveHappyPath(t *testing.T) {
	t.Parallel()
	now := time.Now()
	wheel := timing.NewWithClock(func() time.Time { return now })
	mock := transporttest.NewMock()

	cfg := passiveConfig()
	if ldp.IsActive(cfg.LocalAddress, cfg.PeerAddress) {
		t.Fatalf("test precondition: expected local to be passive")
	}
	sess := ldp.NewSession(1, cfg, false, wheel, testLogger(), ldp.WithTransport(mock))

	sess.Start() // Closed -> Idle -> Listen (a passive session listens instead of connecting)
	if sess.State() != ldp.StateListen {
		t.Fatalf("state = %v, want Listen", sess.State())
	}

	mock.SimulateAccept()
	if sess.State() != ldp.StateInitialized {
		t.Fatalf("state = %v, want Initialized", sess.State())
	}
	if len(mock.Sent) != 0 {
		t.Fatalf("passive side must not self-post Start before the peer's INIT arrives, sent=%d", len(mock.Sent))
	}

	peerInit := ldp.EncodeInit(0x0A000002, 0, 1, 30, 1500)
	mock.Deliver(peerInit)
	if sess.State() != ldp.StateOpenRec {
		t.Fatalf("state = %v, want OpenRec", sess.State())
	}
	// The mock transport drains synchronously when not backpressured, so
	// INIT and KEEPALIVE each depart as their own transport.Send call;
	// coalescing only kicks in under backpressure (see TestSendCoalescing).
	if len(mock.Sent) != 2 {
		t.Fatalf("expected two sends (INIT, KEEPALIVE), got %d", len(mock.Sent))
	}

	peerKA := ldp.EncodeKeepalive(0x0A000002, 0, 2)
	mock.Deliver(peerKA)
	if sess.State() != ldp.StateOperational {
		t.Fatalf("state = %v, want Operational", sess.State())
	}
}

// TestSendCoalescing covers invariant 6: two sends queued while the
// transport is backpressured go out as a single transport.Send call once
// the retry timer fires.
func TestSendCoalescing(t *testing.T) {
	t.Parallel()
	now := time.Now()
	wheel := timing.NewWithClock(func() time.Time { return now })
	mock := transporttest.NewMock()

	cfg := activeConfig()
	sess := ldp.NewSession(1, cfg, true, wheel, testLogger(), ldp.WithTransport(mock))

	mock.RefuseSend = true
	sess.Start()
	now = now.Add(5 * time.Second)
	wheel.RunOnce() // doConnect -> Connected -> cascades to OpenSent, sendInit queues but Send refused

	if len(mock.Sent) != 0 {
		t.Fatalf("expected no sends to have drained while backpressured, got %d", len(mock.Sent))
	}
	if sess.State() != ldp.StateOpenSent {
		t.Fatalf("state = %v, want OpenSent", sess.State())
	}

	// The peer's INIT arrives while the transport is still backpressured:
	// OpenSent+RxInit queues a KEEPALIVE behind the unsent INIT.
	mock.Deliver(ldp.EncodeInit(0x0A000001, 0, 1, 30, 1500))
	if sess.State() != ldp.StateOpenRec {
		t.Fatalf("state = %v, want OpenRec", sess.State())
	}

	// Both queued messages must go out in one transport.Send call rather
	// than two, byte for byte the INIT followed by the KEEPALIVE.
	mock.RefuseSend = false
	now = now.Add(time.Second)
	if fired := wheel.RunOnce(); fired == 0 {
		t.Fatalf("expected send retry timer to fire")
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("expected exactly one coalesced transport.Send call, got %d", len(mock.Sent))
	}
	want := append(ldp.EncodeInit(cfg.LSRID, cfg.LabelSpace, 1, cfg.KeepaliveTime, cfg.MaxPDULen),
		ldp.EncodeKeepalive(cfg.LSRID, cfg.LabelSpace, 2)...)
	if !bytes.Equal(mock.Sent[0], want) {
		t.Fatalf("coalesced send = %x, want INIT+KEEPALIVE %x", mock.Sent[0], want)
	}
}
