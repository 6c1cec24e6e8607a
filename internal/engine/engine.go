// Package engine provides the explicit run-context value that owns the
// timer wheel, the three protocol engine managers, and the routing-session
// counter they share (SPEC_FULL.md §2 "Added: a internal/engine
// run-context"). cmd/ridgebreaker/main.go constructs one RunContext at
// startup and wires it into the control API and metrics collector.
package engine

import (
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/ridgebreaker/ridgebreaker/internal/bgp"
	"github.com/ridgebreaker/ridgebreaker/internal/config"
	"github.com/ridgebreaker/ridgebreaker/internal/counter"
	"github.com/ridgebreaker/ridgebreaker/internal/isis"
	"github.com/ridgebreaker/ridgebreaker/internal/ldp"
	"github.com/ridgebreaker/ridgebreaker/internal/metrics"
	"github.com/ridgebreaker/ridgebreaker/internal/rawupdate"
	"github.com/ridgebreaker/ridgebreaker/internal/timing"
)

// RunContext bundles the three per-protocol managers with the single
// timer wheel and routing-session counter they all share.
type RunContext struct {
	Wheel   *timing.Wheel
	Counter *counter.RoutingSessions
	BGP     *bgp.Manager
	LDP     *ldp.Manager
	ISIS    *isis.Manager

	logger *slog.Logger
}

// New constructs a RunContext with a fresh timer wheel and routing-session
// counter, and a Manager for each engine wired onto them.
func New(logger *slog.Logger) *RunContext {
	wheel := timing.New()
	sessionCounter := &counter.RoutingSessions{}

	return &RunContext{
		Wheel:   wheel,
		Counter: sessionCounter,
		BGP:     bgp.NewManager(wheel, logger),
		LDP:     ldp.NewManager(wheel, logger, sessionCounter),
		ISIS:    isis.NewManager(wheel, logger, sessionCounter),
		logger:  logger,
	}
}

// WireMetrics subscribes collector to the BGP and LDP state-change feeds
// and records every transition in its state-transition counter. IS-IS
// adjacencies have no feed here, and no session gauge is updated.
func (rc *RunContext) WireMetrics(collector *metrics.Collector) {
	go func() {
		for sc := range rc.BGP.StateChanges() {
			peer, local := rc.bgpSessionAddrs(sc.SessionID)
			collector.RecordStateTransition(peer, local, "bgp", sc.Old.String(), sc.New.String())
		}
	}()
	go func() {
		for sc := range rc.LDP.StateChanges() {
			peer, local := rc.ldpSessionAddrs(sc.SessionID)
			collector.RecordStateTransition(peer, local, "ldp", sc.Old.String(), sc.New.String())
		}
	}()
}

func (rc *RunContext) bgpSessionAddrs(id uint64) (peer, local netip.Addr) {
	for _, snap := range rc.BGP.Sessions() {
		if snap.ID == id {
			return snap.PeerAddress, snap.LocalAddress
		}
	}
	return netip.Addr{}, netip.Addr{}
}

func (rc *RunContext) ldpSessionAddrs(id uint64) (peer, local netip.Addr) {
	for _, snap := range rc.LDP.Sessions() {
		if snap.ID == id {
			return snap.PeerAddress, snap.LocalAddress
		}
	}
	return netip.Addr{}, netip.Addr{}
}

// Reconcile creates every BGP session, LDP session, and IS-IS interface
// named in cfg. Errors for one peer are logged and skipped so a single bad
// entry cannot prevent the rest of the fleet from coming up.
func (rc *RunContext) Reconcile(cfg *config.Config) {
	for _, pc := range cfg.BGP {
		if err := rc.addBGPPeer(pc); err != nil {
			rc.logger.Error("skipping bgp peer", slog.String("peer", pc.Peer), slog.String("error", err.Error()))
		}
	}
	for _, pc := range cfg.LDP {
		if err := rc.addLDPPeer(pc); err != nil {
			rc.logger.Error("skipping ldp peer", slog.String("peer", pc.Peer), slog.String("error", err.Error()))
		}
	}
	for _, ic := range cfg.ISIS {
		rc.addISISInterface(ic)
	}
}

func (rc *RunContext) addBGPPeer(pc config.BGPPeerConfig) error {
	peerAddr, err := pc.PeerAddr()
	if err != nil {
		return err
	}
	localAddr, err := pc.LocalAddr()
	if err != nil {
		return err
	}

	bc := bgp.Config{
		LocalAddress:  localAddr,
		PeerAddress:   peerAddr,
		LocalAS:       pc.LocalAS,
		HoldTime:      pc.HoldTime,
		StartTraffic:  pc.StartTraffic,
		RawUpdateFile: pc.RawUpdateFile,
	}
	if pc.RouterID != "" {
		if addr, err := parseIPv4AsUint32(pc.RouterID); err == nil {
			bc.RouterID = addr
		}
	}

	sess, err := rc.BGP.CreateSession(bc)
	if err != nil {
		return err
	}
	rc.attachRawUpdateIfConfigured(sess, pc.RawUpdateFile)
	return nil
}

func (rc *RunContext) addLDPPeer(pc config.LDPPeerConfig) error {
	peerAddr, err := pc.PeerAddr()
	if err != nil {
		return err
	}
	localAddr, err := pc.LocalAddr()
	if err != nil {
		return err
	}

	lc := ldp.Config{
		LocalAddress:  localAddr,
		PeerAddress:   peerAddr,
		KeepaliveTime: pc.KeepaliveTime,
		MaxPDULen:     pc.MaxPDULen,
		StartTraffic:  pc.StartTraffic,
		Reconnect:     pc.Reconnect,
		RawUpdateFile: pc.RawUpdateFile,
	}

	sess, err := rc.LDP.CreateSession(lc)
	if err != nil {
		return err
	}
	rc.attachRawUpdateIfConfigured(sess, pc.RawUpdateFile)
	return nil
}

// rawUpdateAttacher is satisfied by both bgp.Session and ldp.Session.
type rawUpdateAttacher interface {
	AttachRawUpdates(*rawupdate.Chain)
}

// attachRawUpdateIfConfigured loads path (if non-empty) and attaches it to
// sess, logging rather than failing session creation if the file can't be
// read (spec §7 tier 3: resource errors at init degrade gracefully).
func (rc *RunContext) attachRawUpdateIfConfigured(sess rawUpdateAttacher, path string) {
	if path == "" {
		return
	}
	desc, err := rawupdate.LoadFile(path, 0, 0)
	if err != nil {
		rc.logger.Warn("failed to load raw-update file", slog.String("file", path), slog.String("error", err.Error()))
		return
	}
	sess.AttachRawUpdates(rawupdate.NewChain(desc))
}

func (rc *RunContext) addISISInterface(ic config.ISISIfaceConfig) {
	isisCfg := isis.Config{
		Interface:    ic.Interface,
		P2P:          !ic.Broadcast,
		Levels:       ic.LevelMask,
		AdjacencySID: ic.AdjacencySID,
		WindowSize:   ic.LSPTxWindow,
	}
	isisCfg.L1.Priority = ic.L1Priority
	isisCfg.L1.Metric = ic.L1Metric
	isisCfg.L2.Priority = ic.L2Priority
	isisCfg.L2.Metric = ic.L2Metric

	adjs := rc.ISIS.AddInterface(isisCfg)
	rc.logger.Info("isis interface configured",
		slog.String("interface", ic.Interface),
		slog.Int("adjacencies", len(adjs)),
	)
}

// parseIPv4AsUint32 parses a dotted-quad string into the big-endian uint32
// router-id representation the bgp package stores (spec §3 "router-id").
func parseIPv4AsUint32(s string) (uint32, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return 0, fmt.Errorf("parse router-id %q: %w", s, err)
	}
	if !addr.Is4() {
		return 0, fmt.Errorf("parse router-id %q: not an IPv4 address", s)
	}
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// Close tears down every BGP and LDP session. IS-IS has no persistent
// transport to release — adjacencies simply stop being serviced once the
// timer wheel is no longer run.
func (rc *RunContext) Close() {
	rc.BGP.Close()
	rc.LDP.Close()
}
