package bgp_test

import (
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/ridgebreaker/ridgebreaker/internal/bgp"
	"github.com/ridgebreaker/ridgebreaker/internal/timing"
	"github.com/ridgebreaker/ridgebreaker/internal/transport/transporttest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() bgp.Config {
	return bgp.Config{
		LocalAddress: netip.MustParseAddr("10.0.0.1"),
		PeerAddress:  netip.MustParseAddr("10.0.0.2"),
		RouterID:     0x0A000001,
		LocalAS:      65001,
		HoldTime:     90,
	}.WithDefaults()
}

// newHarness builds a Session wired to a Mock transport and a
// deterministic, manually-advanced clock.
func newHarness(t *testing.T) (*bgp.Session, *transporttest.Mock, *timing.Wheel, *time.Time) {
	t.Helper()
	now := time.Now()
	wheel := timing.NewWithClock(func() time.Time { return now })
	mock := transporttest.NewMock()
	sess := bgp.NewSession(1, testConfig(), wheel, testLogger(), bgp.WithTransport(mock))
	return sess, mock, wheel, &now
}

// TestSessionHappyPath covers scenario S1: operator start, transport
// connect, OPEN exchange, KEEPALIVE, and reaching ESTABLISHED.
func TestSessionHappyPath(t *testing.T) {
	t.Parallel()
	sess, mock, wheel, now := newHarness(t)

	sess.Start() // Closed -> Idle -> Connect, arms connect timer

	*now = now.Add(time.Second)
	if fired := wheel.RunOnce(); fired != 1 {
		t.Fatalf("expected connect timer to fire, fired=%d", fired)
	}
	if sess.State() != bgp.StateOpenSent {
		t.Fatalf("state = %v, want OpenSent", sess.State())
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("expected 1 message sent (OPEN), got %d", len(mock.Sent))
	}

	peerOpen := bgp.EncodeOpen(65002, 60, 0x0A000002)
	mock.Deliver(peerOpen)
	if sess.State() != bgp.StateOpenConfirm {
		t.Fatalf("state = %v, want OpenConfirm", sess.State())
	}
	if sess.Peer().AS != 65002 {
		t.Fatalf("Peer().AS = %d, want 65002", sess.Peer().AS)
	}

	mock.Deliver(bgp.EncodeKeepalive())
	if sess.State() != bgp.StateEstablished {
		t.Fatalf("state = %v, want Established", sess.State())
	}
	if sess.Stats().OpenRx != 1 || sess.Stats().KeepaliveRx != 1 {
		t.Fatalf("unexpected stats: %+v", sess.Stats())
	}
}

// TestSessionBadLengthClosesWithNotification covers scenario S3: a header
// whose length field is out of bounds forces a decode error, which closes
// the session with an outbound NOTIFICATION.
func TestSessionBadLengthClosesWithNotification(t *testing.T) {
	t.Parallel()
	sess, mock, wheel, now := newHarness(t)

	sess.Start()
	*now = now.Add(time.Second)
	wheel.RunOnce()
	if sess.State() != bgp.StateOpenSent {
		t.Fatalf("state = %v, want OpenSent", sess.State())
	}

	bad := make([]byte, bgp.MinMessageSize)
	bad[16] = 0x00
	bad[17] = 0x05 // declares a 5-byte message, below MinMessageSize

	mock.Deliver(bad)

	if sess.State() != bgp.StateClosing {
		t.Fatalf("state = %v, want Closing", sess.State())
	}
	code, subcode := sess.ErrorCode()
	if code != bgp.ErrCodeMessageHeader || subcode != bgp.SubcodeBadMessageLength {
		t.Fatalf("error = (%d,%d), want (%d,%d)", code, subcode, bgp.ErrCodeMessageHeader, bgp.SubcodeBadMessageLength)
	}
	if len(mock.Sent) != 2 {
		t.Fatalf("expected OPEN + NOTIFICATION sent, got %d messages", len(mock.Sent))
	}
}

// TestSessionNotificationFromPeerClosesWithoutReply covers the
// no-outbound-notification-in-response-to-one rule.
func TestSessionNotificationFromPeerClosesWithoutReply(t *testing.T) {
	t.Parallel()
	sess, mock, wheel, now := newHarness(t)

	sess.Start()
	*now = now.Add(time.Second)
	wheel.RunOnce()

	mock.Deliver(bgp.EncodeOpen(65002, 60, 0x0A000002))
	mock.Deliver(bgp.EncodeKeepalive())
	if sess.State() != bgp.StateEstablished {
		t.Fatalf("precondition: state = %v, want Established", sess.State())
	}
	sentBefore := len(mock.Sent)

	mock.Deliver(bgp.EncodeNotification(bgp.ErrCodeCease, bgp.SubcodeCeaseOutOfResources))

	if sess.State() != bgp.StateClosing {
		t.Fatalf("state = %v, want Closing", sess.State())
	}
	if len(mock.Sent) != sentBefore {
		t.Fatalf("expected no additional outbound messages, sent went from %d to %d", sentBefore, len(mock.Sent))
	}
}

// TestManagerCRUD exercises Manager registration, duplicate rejection,
// lookup, and teardown.
func TestManagerCRUD(t *testing.T) {
	t.Parallel()
	wheel := timing.New()
	mgr := bgp.NewManager(wheel, testLogger())

	cfg := testConfig()
	s, err := mgr.CreateSession(cfg)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := mgr.CreateSession(cfg); err == nil {
		t.Fatalf("expected ErrDuplicateSession on second CreateSession for same peer")
	}

	got, ok := mgr.LookupByID(s.ID())
	if !ok || got != s {
		t.Fatalf("LookupByID failed to find created session")
	}

	if _, ok := mgr.LookupByPeer(cfg.PeerAddress); !ok {
		t.Fatalf("LookupByPeer failed to find created session")
	}

	snaps := mgr.Sessions()
	if len(snaps) != 1 || snaps[0].ID != s.ID() {
		t.Fatalf("Sessions() = %+v, want one entry for id %d", snaps, s.ID())
	}

	if err := mgr.DestroySession(s.ID()); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	if mgr.Len() != 0 {
		t.Fatalf("Len() = %d after destroy, want 0", mgr.Len())
	}
	if err := mgr.Teardown(s.ID()); err == nil {
		t.Fatalf("expected ErrUnknownSession after destroy")
	}
}
