package ldp_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/ridgebreaker/ridgebreaker/internal/ldp"
)

// TestIsActiveRoleElection covers scenario S4: role election by transport
// address, and its symmetric reversal.
func TestIsActiveRoleElection(t *testing.T) {
	t.Parallel()

	local := netip.MustParseAddr("10.0.0.1")
	peer := netip.MustParseAddr("10.0.0.2")

	if ldp.IsActive(local, peer) {
		t.Fatalf("IsActive(10.0.0.1, 10.0.0.2) = true, want false")
	}
	if !ldp.IsActive(peer, local) {
		t.Fatalf("IsActive(10.0.0.2, 10.0.0.1) = false, want true")
	}
}

// TestNegotiateParams covers scenario S5: keepalive/max-PDU negotiation.
func TestNegotiateParams(t *testing.T) {
	t.Parallel()

	if got := ldp.NegotiateKeepaliveTime(30, 15); got != 15 {
		t.Fatalf("NegotiateKeepaliveTime(30,15) = %d, want 15", got)
	}
	if got := ldp.KeepaliveInterval(15); got != 5*time.Second {
		t.Fatalf("KeepaliveInterval(15) = %v, want 5s", got)
	}

	if got := ldp.NegotiateKeepaliveTime(30, 0); got != 30 {
		t.Fatalf("NegotiateKeepaliveTime(30,0) = %d, want 30 (peer sent none)", got)
	}

	if got := ldp.NegotiateMaxPDULen(4096, 1500); got != 1500 {
		t.Fatalf("NegotiateMaxPDULen(4096,1500) = %d, want 1500", got)
	}
	if got := ldp.NegotiateMaxPDULen(4096, 100); got != 4096 {
		t.Fatalf("NegotiateMaxPDULen(4096,100) = %d, want 4096 (peer value below MinPDULength)", got)
	}
	if got := ldp.NegotiateMaxPDULen(1500, 4096); got != 1500 {
		t.Fatalf("NegotiateMaxPDULen(1500,4096) = %d, want 1500 (peer value not < local)", got)
	}
}
