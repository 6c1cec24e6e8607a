package isis_test

import (
	"testing"
	"time"

	"github.com/ridgebreaker/ridgebreaker/internal/counter"
	"github.com/ridgebreaker/ridgebreaker/internal/isis"
	"github.com/ridgebreaker/ridgebreaker/internal/timing"
)

// TestManagerAddInterfaceP2PSharesPeer checks that a P2P interface's two
// level-objects share one PeerDescriptor and neither draws a
// pseudo-node-id, matching isis_adjacency_init.
func TestManagerAddInterfaceP2PSharesPeer(t *testing.T) {
	t.Parallel()
	wheel := timing.NewWithClock(func() time.Time { return time.Now() })
	mgr := isis.NewManager(wheel, testLogger(), nil)

	adjs := mgr.AddInterface(p2pConfig())
	if len(adjs) != 2 {
		t.Fatalf("expected 2 adjacencies (L1+L2), got %d", len(adjs))
	}
	if adjs[0].Peer == nil || adjs[0].Peer != adjs[1].Peer {
		t.Fatalf("expected both levels to share one PeerDescriptor on a P2P link")
	}
	if adjs[0].PseudoNodeID != 0 {
		t.Fatalf("expected no pseudo-node-id on a P2P link, got %d", adjs[0].PseudoNodeID)
	}
}

// TestManagerAddInterfaceBroadcastAllocatesPseudoNode checks a broadcast
// interface draws a fresh pseudo-node-id and carries no shared peer.
func TestManagerAddInterfaceBroadcastAllocatesPseudoNode(t *testing.T) {
	t.Parallel()
	wheel := timing.NewWithClock(func() time.Time { return time.Now() })
	mgr := isis.NewManager(wheel, testLogger(), nil)

	adjs := mgr.AddInterface(broadcastConfig())
	if len(adjs) != 1 {
		t.Fatalf("expected 1 adjacency (L1 only), got %d", len(adjs))
	}
	if adjs[0].Peer != nil {
		t.Fatalf("expected no shared peer on a broadcast link")
	}
	if adjs[0].PseudoNodeID == 0 {
		t.Fatalf("expected a nonzero pseudo-node-id on a broadcast link")
	}
}

// TestManagerPseudoNodeAllocatorMonotonic checks that two broadcast
// interfaces on the same Manager get distinct pseudo-node-ids.
func TestManagerPseudoNodeAllocatorMonotonic(t *testing.T) {
	t.Parallel()
	wheel := timing.NewWithClock(func() time.Time { return time.Now() })
	mgr := isis.NewManager(wheel, testLogger(), nil)

	a := mgr.AddInterface(broadcastConfig())
	cfg2 := broadcastConfig()
	cfg2.Interface = "eth2"
	b := mgr.AddInterface(cfg2)

	if a[0].PseudoNodeID == b[0].PseudoNodeID {
		t.Fatalf("expected distinct pseudo-node-ids, both got %d", a[0].PseudoNodeID)
	}
}

// TestManagerSharedRoutingSessionCounter verifies the Manager wires the
// shared counter into each adjacency's Up/Down callbacks, and that the
// counter floors at zero across a down/down sequence (S6: idempotent
// double-DOWN on the shared routing_sessions counter).
func TestManagerSharedRoutingSessionCounter(t *testing.T) {
	t.Parallel()
	wheel := timing.NewWithClock(func() time.Time { return time.Now() })
	var c counter.RoutingSessions
	mgr := isis.NewManager(wheel, testLogger(), &c)

	adjs := mgr.AddInterface(p2pConfig())
	if c.Value() != 0 {
		t.Fatalf("expected counter at 0 before Up, got %d", c.Value())
	}

	if err := mgr.Up(p2pConfig().Interface); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if c.Value() != 2 {
		t.Fatalf("expected counter at 2 after bringing up both levels, got %d", c.Value())
	}

	adjs[0].Down("test")
	if c.Value() != 1 {
		t.Fatalf("expected counter at 1 after one adjacency goes down, got %d", c.Value())
	}

	if err := mgr.Down(p2pConfig().Interface, "test"); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if c.Value() != 0 {
		t.Fatalf("expected counter at 0 after all adjacencies down, got %d", c.Value())
	}

	// Redundant down must not push the counter negative.
	adjs[0].Down("test again")
	adjs[1].Down("test again")
	if c.Value() != 0 {
		t.Fatalf("expected counter floored at 0, got %d", c.Value())
	}
}

// TestManagerUnknownInterface checks Up/Down on an unconfigured interface
// name returns ErrUnknownInterface.
func TestManagerUnknownInterface(t *testing.T) {
	t.Parallel()
	wheel := timing.NewWithClock(func() time.Time { return time.Now() })
	mgr := isis.NewManager(wheel, testLogger(), nil)

	if err := mgr.Up("ghost0"); err == nil {
		t.Fatalf("expected error for unknown interface")
	}
	if err := mgr.Down("ghost0", "n/a"); err == nil {
		t.Fatalf("expected error for unknown interface")
	}
}
