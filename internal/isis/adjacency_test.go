package isis_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ridgebreaker/ridgebreaker/internal/isis"
	"github.com/ridgebreaker/ridgebreaker/internal/timing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func p2pConfig() isis.Config {
	return isis.Config{
		Interface: "eth0",
		P2P:       true,
		Levels:    3,
		L1:        isis.LevelConfig{Priority: 64, Metric: 10},
		L2:        isis.LevelConfig{Priority: 64, Metric: 10},
	}.WithDefaults()
}

func broadcastConfig() isis.Config {
	return isis.Config{
		Interface: "eth1",
		P2P:       false,
		Levels:    1,
		L1:        isis.LevelConfig{Priority: 32, Metric: 20},
	}.WithDefaults()
}

// TestAdjacencyUpArmsTimers verifies Up() arms the CSNP periodic, the 10ms
// CSNP nudge, and the LSP-tx periodic on a broadcast adjacency, but not the
// LSP-retry timer (P2P-only).
func TestAdjacencyUpArmsTimers(t *testing.T) {
	t.Parallel()
	now := time.Now()
	wheel := timing.NewWithClock(func() time.Time { return now })

	adj := isis.NewAdjacency(broadcastConfig(), isis.Level1, nil, wheel, testLogger())
	adj.Up()

	if adj.State() != isis.StateUp {
		t.Fatalf("expected state up, got %s", adj.State())
	}
	if wheel.Len() != 3 {
		t.Fatalf("expected 3 timers armed after Up (CSNP, CSNP nudge, LSP-tx; no LSP-retry on broadcast), got %d", wheel.Len())
	}

	now = now.Add(isis.DefaultCSNPInterval)
	if fired := wheel.RunOnce(); fired == 0 {
		t.Fatalf("expected CSNP periodic timer to fire")
	}
	if adj.State() != isis.StateUp {
		t.Fatalf("csnp job must not change state")
	}
}

// TestAdjacencyUpIdempotent ensures a second Up() call on an already-up
// adjacency is a no-op, matching isis_adjacency_up's early return: onUp
// must not fire twice.
func TestAdjacencyUpIdempotent(t *testing.T) {
	t.Parallel()
	now := time.Now()
	wheel := timing.NewWithClock(func() time.Time { return now })

	adj := isis.NewAdjacency(p2pConfig(), isis.Level1, &isis.PeerDescriptor{}, wheel, testLogger())

	upCount := 0
	adj.SetCallbacks(func() { upCount++ }, func() {})

	adj.Up()
	adj.Up()

	if upCount != 1 {
		t.Fatalf("expected onUp called once, got %d", upCount)
	}
}

// TestAdjacencyDownIdempotent ensures a second Down() call after the
// adjacency is already down is a no-op: onDown must not fire twice, and
// cancelling already-cancelled timers must not panic.
func TestAdjacencyDownIdempotent(t *testing.T) {
	t.Parallel()
	now := time.Now()
	wheel := timing.NewWithClock(func() time.Time { return now })

	adj := isis.NewAdjacency(p2pConfig(), isis.Level1, &isis.PeerDescriptor{}, wheel, testLogger())

	downCount := 0
	adj.SetCallbacks(func() {}, func() { downCount++ })

	adj.Up()
	adj.Down("link down")
	adj.Down("link down again")

	if downCount != 1 {
		t.Fatalf("expected onDown called once, got %d", downCount)
	}
	if adj.State() != isis.StateDown {
		t.Fatalf("expected state down, got %s", adj.State())
	}
}

// TestAdjacencyDownBeforeUpIsNoop matches isis_adjacency_down's early
// return when the adjacency was never brought up: no panic from nil timer
// handles, and onDown never fires.
func TestAdjacencyDownBeforeUpIsNoop(t *testing.T) {
	t.Parallel()
	now := time.Now()
	wheel := timing.NewWithClock(func() time.Time { return now })

	adj := isis.NewAdjacency(broadcastConfig(), isis.Level1, nil, wheel, testLogger())

	downCount := 0
	adj.SetCallbacks(func() {}, func() { downCount++ })
	adj.Down("never was up")

	if downCount != 0 {
		t.Fatalf("expected onDown not called, got %d", downCount)
	}
}

// TestAdjacencyP2PArmsRetryTimer checks the P2P-only LSP retry timer is
// armed on Up() and fires independently of the CSNP/tx timers.
func TestAdjacencyP2PArmsRetryTimer(t *testing.T) {
	t.Parallel()
	now := time.Now()
	wheel := timing.NewWithClock(func() time.Time { return now })

	adj := isis.NewAdjacency(p2pConfig(), isis.Level1, &isis.PeerDescriptor{}, wheel, testLogger())
	adj.Up()
	if wheel.Len() != 4 {
		t.Fatalf("expected 4 timers armed after Up (CSNP, CSNP nudge, LSP-tx, LSP-retry), got %d", wheel.Len())
	}

	now = now.Add(isis.DefaultLSPRetryInterval)
	fired := wheel.RunOnce()
	if fired == 0 {
		t.Fatalf("expected retry timer to fire on a P2P adjacency")
	}
}

// TestStaleTimerDoesNotResurrectState brings an adjacency down with an LSP
// queued in its flood tree, then runs the wheel past the LSP-tx interval:
// no timer may fire, the flood tree keeps its entry, and the state stays
// down.
func TestStaleTimerDoesNotResurrectState(t *testing.T) {
	t.Parallel()
	now := time.Now()
	wheel := timing.NewWithClock(func() time.Time { return now })

	adj := isis.NewAdjacency(broadcastConfig(), isis.Level1, nil, wheel, testLogger())
	adj.Up()
	id := isis.LSPID{SystemID: [6]byte{1, 2, 3, 4, 5, 6}}
	adj.FloodTree.Add(id)

	adj.Down("admin down")

	now = now.Add(isis.DefaultLSPTxInterval)
	if fired := wheel.RunOnce(); fired != 0 {
		t.Fatalf("expected no timer to fire after Down, got %d", fired)
	}
	if adj.FloodTree.Len() != 1 {
		t.Fatalf("Down must not touch the flood tree contents, got len %d", adj.FloodTree.Len())
	}
	if adj.State() != isis.StateDown {
		t.Fatalf("expected state down")
	}
}
