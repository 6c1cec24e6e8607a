// Package isis implements the IS-IS adjacency engine (spec.md §4.3): a
// per-(interface, level) neighborship with point-to-point/broadcast
// variants, LSP flooding windows, and CSNP/PSNP synchronisation
// scaffolding, driven by the same cooperative timer wheel as the BGP and
// LDP engines.
//
// Grounded on
// original_source/code/bngblaster/src/isis/isis_adjacency.c and,
// structurally, on the teacher's internal/bfd session lifecycle pattern
// adapted to single-threaded cooperative scheduling.
package isis

import (
	"log/slog"
	"time"

	"github.com/ridgebreaker/ridgebreaker/internal/timing"
)

// Level identifies an IS-IS routing level.
type Level uint8

const (
	Level1 Level = 1
	Level2 Level = 2
)

func (l Level) String() string {
	switch l {
	case Level1:
		return "L1"
	case Level2:
		return "L2"
	default:
		return "unknown"
	}
}

// State is an adjacency's up/down state (spec.md §4.3 has no intermediate
// states at this engine's level of detail: hello-based neighbor discovery
// itself is out of scope, only the UP/DOWN lifecycle and its timer/counter
// side effects are modeled).
type State uint8

const (
	StateDown State = iota
	StateUp
)

func (s State) String() string {
	if s == StateUp {
		return "up"
	}
	return "down"
}

// PeerDescriptor is shared by pointer between an interface's level-1 and
// level-2 Adjacency objects when the link is point-to-point (spec.md
// §4.3: "peer descriptor... shared between the two level-objects when the
// link is point-to-point"), matching isis_adjacency_p2p_s's single
// isis_peer_s.
type PeerDescriptor struct {
	SystemID [6]byte
}

// PseudoNodeAllocator hands out monotonically increasing pseudo-node-ids
// for broadcast-link adjacencies, one per interface (spec.md §4.3:
// "on broadcast links the instance allocates a fresh pseudo-node-id per
// interface"), matching instance->next_pseudo_node_id.
type PseudoNodeAllocator struct {
	next uint32
}

// Next returns the next pseudo-node-id.
func (a *PseudoNodeAllocator) Next() uint32 {
	a.next++
	return a.next
}

// LevelConfig carries the per-level priority/metric pair read from
// interface configuration (spec.md §4.3 supplement).
type LevelConfig struct {
	Priority uint8
	Metric   uint32
}

// Config describes one configured IS-IS interface.
type Config struct {
	Interface   string
	P2P         bool
	Levels      uint8 // bitmask: 1, 2, or 3 (both)
	L1          LevelConfig
	L2          LevelConfig
	// AdjacencySID is carried only when > 0 (spec.md §4.3 supplement:
	// "set only when > 0 in config, matching the source's guarded
	// assignment").
	AdjacencySID uint32
	WindowSize   uint16

	CSNPInterval     time.Duration
	LSPTxInterval    time.Duration
	LSPRetryInterval time.Duration
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// this engine's documented defaults.
func (c Config) WithDefaults() Config {
	if c.WindowSize == 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.CSNPInterval == 0 {
		c.CSNPInterval = DefaultCSNPInterval
	}
	if c.LSPTxInterval == 0 {
		c.LSPTxInterval = DefaultLSPTxInterval
	}
	if c.LSPRetryInterval == 0 {
		c.LSPRetryInterval = DefaultLSPRetryInterval
	}
	return c
}

// Defaults mirror the source's isis_config_s field defaults.
const (
	DefaultWindowSize       = 10
	DefaultCSNPInterval     = 10 * time.Second
	DefaultLSPTxInterval    = 100 * time.Millisecond
	DefaultLSPRetryInterval = 5 * time.Second

	csnpNudgeDelay = 10 * time.Millisecond
)

// Adjacency is one per-(interface, level) IS-IS neighborship (spec.md §3).
type Adjacency struct {
	Interface string
	Level     Level
	P2P       bool
	Peer      *PeerDescriptor

	Priority     uint8
	Metric       uint32
	PseudoNodeID uint32 // broadcast only
	AdjacencySID uint32 // 0 means unset

	WindowSize uint16

	FloodTree *LSPSet
	PSNPTree  *LSPSet

	state State

	cfg    Config
	wheel  *timing.Wheel
	logger *slog.Logger

	timerCSNP     *timing.Handle
	timerCSNPNext *timing.Handle
	timerTx       *timing.Handle
	timerRetry    *timing.Handle

	onUp   func()
	onDown func()

	// lspTxJob is isis_lsp_tx_job (broadcast) or isis_lsp_tx_p2p_job
	// (P2P) — injectable so tests can observe draining without a real
	// transport.
	lspTxJob func()
}

// NewAdjacency constructs an Adjacency in StateDown, not yet brought up.
func NewAdjacency(cfg Config, level Level, peer *PeerDescriptor, wheel *timing.Wheel, logger *slog.Logger) *Adjacency {
	cfg = cfg.WithDefaults()
	lc := cfg.L1
	if level == Level2 {
		lc = cfg.L2
	}
	a := &Adjacency{
		Interface:  cfg.Interface,
		Level:      level,
		P2P:        cfg.P2P,
		Peer:       peer,
		Priority:   lc.Priority,
		Metric:     lc.Metric,
		WindowSize: cfg.WindowSize,
		FloodTree:  NewLSPSet(),
		PSNPTree:   NewLSPSet(),
		cfg:        cfg,
		wheel:      wheel,
		state:      StateDown,
	}
	if cfg.AdjacencySID > 0 {
		a.AdjacencySID = cfg.AdjacencySID
	}
	a.logger = logger.With(
		slog.String("component", "isis.adjacency"),
		slog.String("interface", a.Interface),
		slog.String("level", level.String()),
	)
	a.lspTxJob = a.drainFloodTree
	return a
}

// State returns the adjacency's current up/down state.
func (a *Adjacency) State() State { return a.state }

// SetCallbacks registers the shared routing_sessions counter hooks,
// invoked exactly once per Up()/Down() transition.
func (a *Adjacency) SetCallbacks(onUp, onDown func()) {
	a.onUp = onUp
	a.onDown = onDown
}

// Up brings the adjacency up (spec.md §4.3 "Timers on UP"): arms a
// periodic CSNP job, an immediate 10ms CSNP nudge, a periodic LSP
// transmit job, and — on P2P only — a periodic LSP retry job. Idempotent:
// calling Up on an already-up adjacency is a no-op, matching
// isis_adjacency_up's early return.
func (a *Adjacency) Up() {
	if a.state == StateUp {
		return
	}
	a.state = StateUp
	a.logger.Info("adjacency up")

	a.timerCSNP = a.wheel.AddPeriodic(a.cfg.CSNPInterval, a.csnpJob)
	a.timerCSNPNext = a.wheel.Add(csnpNudgeDelay, a.csnpJob)

	a.timerTx = a.wheel.AddPeriodic(a.cfg.LSPTxInterval, a.lspTxJob)
	if a.P2P {
		a.timerRetry = a.wheel.AddPeriodic(a.cfg.LSPRetryInterval, a.retryJob)
	}

	if a.onUp != nil {
		a.onUp()
	}
}

// Down cancels every periodic timer and decrements the shared counter by
// exactly one (spec.md §4.3 "DOWN transition"). Idempotent: calling Down
// twice in a row only decrements once, matching isis_adjacency_down's
// early return and g_ctx->routing_sessions floor-at-zero guard (the floor
// itself lives in the shared counter, not here).
func (a *Adjacency) Down(reason string) {
	if a.state == StateDown {
		return
	}
	a.state = StateDown
	a.logger.Info("adjacency down", slog.String("reason", reason))

	a.timerTx.Cancel()
	a.timerRetry.Cancel()
	a.timerCSNP.Cancel()
	a.timerCSNPNext.Cancel()

	if a.onDown != nil {
		a.onDown()
	}
}

// csnpJob re-reads state on entry so a stale timer firing after Down
// cannot resurrect any work (spec.md §4.3 "No state is resurrected by a
// stale timer because each job re-reads state on entry").
func (a *Adjacency) csnpJob() {
	if a.state != StateUp {
		return
	}
	// CSNP synchronisation payload construction is out of scope (spec.md
	// §1 non-goal: IS-IS SPF/LSDB computation); this job only represents
	// the scheduling slot the source's isis_csnp_job occupies.
}

func (a *Adjacency) retryJob() {
	if a.state != StateUp {
		return
	}
}

// drainFloodTree pops up to WindowSize LSP-ids per tick (spec.md §4.3
// "the LSP transmit job drains up to window-size entries per tick").
func (a *Adjacency) drainFloodTree() {
	if a.state != StateUp {
		return
	}
	a.FloodTree.Drain(int(a.WindowSize))
}
