package ldp

import (
	"errors"
	"log/slog"
	"time"

	"github.com/ridgebreaker/ridgebreaker/internal/rawupdate"
	"github.com/ridgebreaker/ridgebreaker/internal/timing"
	"github.com/ridgebreaker/ridgebreaker/internal/transport"
	"github.com/ridgebreaker/ridgebreaker/internal/wire"
)

// ErrUnknownSession is returned by Manager lookups for an unrecognized id.
var ErrUnknownSession = errors.New("ldp: unknown session")

// Stats holds the monotonic counters of spec §3.
type Stats struct {
	MessageRx   uint64
	MessageTx   uint64
	InitRx      uint64
	KeepaliveRx uint64
	UpdateTx    uint64
}

// StateChange is delivered to Manager subscribers on every FSM transition.
type StateChange struct {
	SessionID uint64
	Old       State
	New       State
}

// Option configures a Session at construction.
type Option func(*Session)

// WithTransport overrides the session's transport.StreamTransport.
func WithTransport(t transport.StreamTransport) Option {
	return func(s *Session) { s.transport = t }
}

// WithOnStateChange registers a callback invoked on every FSM transition.
func WithOnStateChange(fn func(StateChange)) Option {
	return func(s *Session) { s.onStateChange = fn }
}

// writeBufSize bounds the session's coalescing write buffer. LDP messages
// are small (INIT/KEEPALIVE/NOTIFICATION); raw-update label-mapping blobs
// bypass this buffer and post straight to the transport.
const writeBufSize = 64 * 1024

// Session is one configured or discovered LDP peer (spec §3).
type Session struct {
	id     uint64
	cfg    Config
	logger *slog.Logger
	wheel  *timing.Wheel

	transport transport.StreamTransport

	active bool

	readBuf  *wire.Buffer
	writeBuf *wire.Buffer

	state State
	stats Stats

	peerKeepaliveTime uint16
	peerMaxPDULen     uint16
	negotiatedKA      uint16

	statusCode uint32
	teardown   bool

	nextMessageID uint32

	connectTimer         *timing.Handle
	keepaliveTxTimer     *timing.Handle
	keepaliveTimeoutTime *timing.Handle
	closeTimer           *timing.Handle
	sendRetryTimer       *timing.Handle

	sentUpTo int

	rawUpdates       *rawupdate.Chain
	rawUpdateSending bool
	updateStart      time.Time
	updateStop       time.Time

	sendBusy    bool
	sendPending bool

	onStateChange func(StateChange)
}

// NewSession constructs a Session in StateClosed, not yet started. active
// is the role-election outcome (IsActive(cfg.LocalAddress, cfg.PeerAddress)
// for a pre-configured peer; Manager computes this at CreateSession time).
func NewSession(id uint64, cfg Config, active bool, wheel *timing.Wheel, logger *slog.Logger, opts ...Option) *Session {
	cfg = cfg.WithDefaults()
	s := &Session{
		id:       id,
		cfg:      cfg,
		active:   active,
		wheel:    wheel,
		readBuf:  wire.NewBuffer(int(cfg.MaxPDULen) * 4),
		writeBuf: wire.NewBuffer(writeBufSize),
		state:    StateClosed,
	}
	s.logger = logger.With(
		slog.Uint64("session_id", id),
		slog.String("component", "ldp.session"),
		slog.String("peer", cfg.PeerAddress.String()),
		slog.Bool("active", active),
	)
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = transport.NewTCPTransport()
	}
	return s
}

func (s *Session) ID() uint64     { return s.id }
func (s *Session) State() State   { return s.state }
func (s *Session) Stats() Stats   { return s.stats }
func (s *Session) Active() bool   { return s.active }

// Start begins the session, cascading through no-op/armed transitions
// until the FSM settles, mirroring the bgp.Session.Start pattern.
func (s *Session) Start() {
	for {
		result := s.applyEvent(EventStart)
		if !result.Changed {
			return
		}
	}
}

// Teardown initiates a graceful close (spec §4.2 "Close").
func (s *Session) Teardown() {
	s.teardown = true
	if s.statusCode == 0 {
		s.statusCode = StatusShutdown | FatalErrorBit
	}
	s.applyEvent(EventTeardown)
}

func (s *Session) applyEvent(ev Event) FSMResult {
	result := Apply(s.state, ev)
	if ev == EventStart && result.NewState == StateConnect && !s.active {
		// A passive session listens for the peer instead of connecting.
		result.NewState = StateListen
		result.Actions = []Action{ActionListen}
	}
	if !result.Changed && len(result.Actions) == 0 {
		return result
	}
	old := s.state
	s.state = result.NewState
	for _, action := range result.Actions {
		s.executeAction(action)
	}
	if old != s.state {
		s.logger.Info("state changed", slog.String("from", old.String()), slog.String("to", s.state.String()))
		if s.onStateChange != nil {
			s.onStateChange(StateChange{SessionID: s.id, Old: old, New: s.state})
		}
	}
	return result
}

func (s *Session) executeAction(action Action) {
	switch action {
	case ActionArmConnect:
		if s.active {
			s.armConnectTimer(5 * time.Second)
		} else {
			s.doListen()
		}
	case ActionListen:
		s.doListen()
	case ActionSendInit:
		s.sendInit()
	case ActionSendKeepalive:
		s.sendKeepalive()
	case ActionSendInitAndKeepalive:
		s.sendInit()
		s.sendKeepalive()
	case ActionSelfMessage:
		s.stats.MessageRx++ // the self-message is a notional internal event, not wire traffic
	case ActionNegotiateAndPump:
		s.negotiateAndArm()
		s.startUpdatePump()
	case ActionSendNotification:
		s.sendNotification()
	case ActionArmCloseTimer:
		s.armCloseTimer()
	case ActionCancelAllTimers:
		s.cancelAllTimers()
	}
}

func (s *Session) doConnect() {
	cb := transport.Callbacks{
		Connected: s.onTransportConnected,
		Receive:   s.onReceive,
		Idle:      s.onIdle,
		Error:     s.onTransportError,
	}
	if err := s.transport.Connect(s.cfg.LocalAddress, s.cfg.PeerAddress, LDPPort, s.cfg.TOS, cb); err != nil {
		s.logger.Warn("connect failed", slog.String("error", err.Error()))
		s.armConnectTimer(5 * time.Second)
	}
}

func (s *Session) doListen() {
	cb := transport.Callbacks{
		Accepted: s.onTransportConnected,
		Receive:  s.onReceive,
		Idle:     s.onIdle,
		Error:    s.onTransportError,
	}
	if err := s.transport.Listen(s.cfg.LocalAddress, LDPPort, s.cfg.TOS, cb); err != nil {
		s.logger.Warn("listen failed", slog.String("error", err.Error()))
	}
}

func (s *Session) onTransportConnected() {
	s.applyEvent(EventTransportUp)
	if s.state == StateInitialized {
		s.armEstablishmentDeadline()
	}
	if s.active && s.state == StateInitialized {
		s.Start() // self-posted START, per the table's "INITIALIZED (active)+START"
	}
}

func (s *Session) onTransportError(err error) {
	s.logger.Warn("transport error", slog.String("error", err.Error()))
	s.applyEvent(EventTransportDown)
}

// armConnectTimer implements the connect supervisor (spec §4.2): a fixed
// period here models the "5-second default" tier; the 1-second
// init-phase and 60-second establishment-deadline tiers are the caller's
// responsibility to request via the explicit duration parameter.
func (s *Session) armConnectTimer(period time.Duration) {
	s.connectTimer.Cancel()
	s.connectTimer = s.wheel.Add(period, s.doConnect)
}

// armEstablishmentDeadline arms the 60-second session-establishment
// deadline when the transport comes up and the session reaches
// INITIALIZED, replacing the connect-retry timer. While the session is
// still in CONNECT only the 5-second connect-retry timer is armed.
func (s *Session) armEstablishmentDeadline() {
	s.connectTimer.Cancel()
	s.connectTimer = s.wheel.Add(60*time.Second, func() {
		s.applyEvent(EventConnectTimeout)
	})
}

func (s *Session) armCloseTimer() {
	s.closeTimer.Cancel()
	drain := 0 * time.Second
	if s.statusCode != 0 {
		drain = 3 * time.Second
	}
	s.closeTimer = s.wheel.Add(drain, s.finishClose)
}

func (s *Session) cancelAllTimers() {
	s.connectTimer.Cancel()
	s.keepaliveTxTimer.Cancel()
	s.keepaliveTimeoutTime.Cancel()
	s.closeTimer.Cancel()
	s.sendRetryTimer.Cancel()
}

func (s *Session) finishClose() {
	_ = s.transport.Close()
	s.state = StateClosed
	s.readBuf.Reset()
	s.writeBuf.Reset()
	if !s.teardown && s.cfg.Reconnect {
		s.wheel.Add(5*time.Second, s.Start)
	}
}

func (s *Session) nextMsgID() uint32 {
	s.nextMessageID++
	return s.nextMessageID
}

func (s *Session) sendInit() {
	buf := EncodeInit(s.cfg.LSRID, s.cfg.LabelSpace, s.nextMsgID(), s.cfg.KeepaliveTime, s.cfg.MaxPDULen)
	s.queueSend(buf)
}

func (s *Session) sendKeepalive() {
	buf := EncodeKeepalive(s.cfg.LSRID, s.cfg.LabelSpace, s.nextMsgID())
	s.queueSend(buf)
}

func (s *Session) sendNotification() {
	buf := EncodeNotification(s.cfg.LSRID, s.cfg.LabelSpace, s.nextMsgID(), s.statusCode)
	s.queueSend(buf)
}

// queueSend and trySend implement spec §4.2's send-coalescing invariant
// (testable property 6): bytes appended while a previous post has not
// drained accumulate in the same write buffer and go out in a single
// transport.Send call once the retry fires, rather than as two separate
// writes.
func (s *Session) queueSend(buf []byte) {
	if err := s.writeBuf.Append(buf); err != nil {
		s.logger.Error("write buffer exhausted", slog.String("error", err.Error()))
		return
	}
	s.trySend()
}

// trySend is not reentrant-safe by itself: both TCPTransport.Send and the
// transporttest.Mock invoke Callbacks.Idle (= onIdle, which calls back into
// trySend) synchronously before Send returns. sendBusy/sendPending turn
// that reentrant call into a deferred retry instead of unbounded recursion:
// the nested call finds sendBusy set, records sendPending, and returns; the
// outer call loops once more after finishing its own Send to pick it up.
func (s *Session) trySend() {
	if s.sendBusy {
		s.sendPending = true
		return
	}
	s.sendBusy = true
	defer func() { s.sendBusy = false }()

	for {
		tail := s.writeBuf.Tail()
		if len(tail) == 0 {
			return
		}
		s.sendPending = false
		if s.transport.Send(tail) {
			s.stats.MessageTx++
			s.writeBuf.Reset()
			s.sendRetryTimer.Cancel()
		} else {
			if !s.sendRetryTimer.IsArmed() {
				s.sendRetryTimer = s.wheel.Add(time.Second, s.trySend)
			}
			return
		}
		if !s.sendPending {
			return
		}
	}
}

func (s *Session) negotiateAndArm() {
	s.connectTimer.Cancel() // self-cancels upon reaching OPERATIONAL (spec §4.2)
	s.negotiatedKA = NegotiateKeepaliveTime(s.cfg.KeepaliveTime, s.peerKeepaliveTime)
	interval := KeepaliveInterval(s.negotiatedKA)

	s.keepaliveTxTimer.Cancel()
	s.keepaliveTxTimer = s.wheel.AddPeriodic(interval, s.sendKeepalive)

	s.restartKeepaliveTimeout()
}

func (s *Session) restartKeepaliveTimeout() {
	s.keepaliveTimeoutTime.Cancel()
	if s.negotiatedKA == 0 {
		return
	}
	s.keepaliveTimeoutTime = s.wheel.Add(time.Duration(s.negotiatedKA)*time.Second, func() {
		s.applyEvent(EventKeepaliveTimeout)
	})
}

// onReceive accumulates inbound bytes and runs the PDU decode loop.
func (s *Session) onReceive(buf []byte) {
	if buf != nil {
		if err := s.readBuf.Append(buf); err != nil {
			s.logger.Error("receive error", slog.String("error", err.Error()))
			s.statusCode = StatusInternalError | FatalErrorBit
			s.applyEvent(EventDecodeError)
			return
		}
	}
	s.readLoop()
}

func (s *Session) readLoop() {
	for {
		tail := s.readBuf.Tail()
		if len(tail) < PDUHeaderSize {
			break
		}
		hdr, err := DecodePDUHeader(tail)
		if err != nil {
			break
		}
		pduTotal := int(hdr.Length) + 4 // length excludes version+length fields
		if pduTotal > len(tail) {
			break
		}
		s.processMessages(tail[PDUHeaderSize:pduTotal], hdr)
		s.readBuf.Advance(pduTotal)
	}
	s.readBuf.Rebase()
}

func (s *Session) processMessages(buf []byte, pduHdr PDUHeader) {
	for len(buf) >= MessageHeaderSize {
		mh, err := DecodeMessageHeader(buf)
		if err != nil {
			return
		}
		msgTotal := int(mh.Length) + 4
		if msgTotal > len(buf) {
			return
		}
		value := buf[MessageHeaderSize:msgTotal]
		s.stats.MessageRx++

		switch mh.Type {
		case MsgInitialization:
			s.stats.InitRx++
			if params, err := DecodeInitParams(value); err == nil {
				s.peerKeepaliveTime = params.KeepaliveTime
				s.peerMaxPDULen = params.MaxPDULen
			}
			if res := Apply(s.state, EventRxInit); res.NewState == StateClosing && s.statusCode == 0 {
				s.statusCode = StatusInternalError | FatalErrorBit
			}
			s.applyEvent(EventRxInit)
		case MsgKeepalive:
			s.stats.KeepaliveRx++
			s.restartKeepaliveTimeout()
			s.applyEvent(EventRxKeepalive)
		case MsgNotification:
			s.applyEvent(EventRxNotification)
		default:
			// ADDRESS/label-mapping and other TLV-bearing messages are
			// opaque to this engine (spec §1 non-goal: label database).
		}
		buf = buf[msgTotal:]
	}
}

// AttachRawUpdates installs a raw-update chain, pumped once OPERATIONAL.
func (s *Session) AttachRawUpdates(chain *rawupdate.Chain) {
	s.rawUpdates = chain
	if s.state == StateOperational {
		s.startUpdatePump()
	}
}

func (s *Session) startUpdatePump() {
	if s.rawUpdates == nil || s.rawUpdateSending {
		return
	}
	d := s.rawUpdates.Current()
	if d == nil {
		return
	}
	// The flag is set before Send because the transport may call Idle
	// (onIdle) before Send returns.
	s.rawUpdateSending = true
	s.updateStart = time.Now()
	if !s.transport.Send(d.Buf) {
		s.rawUpdateSending = false
	}
}

func (s *Session) onIdle() {
	if !s.rawUpdateSending {
		s.trySend()
		return
	}
	d := s.rawUpdates.Current()
	s.updateStop = time.Now()
	s.rawUpdateSending = false
	if d != nil {
		s.stats.MessageTx += uint64(d.Messages)
		s.stats.UpdateTx += uint64(d.Messages)
	}
	s.rawUpdates.Advance()
	if s.state == StateOperational {
		s.startUpdatePump()
	}
}

// UpdateElapsed returns the duration the most recently drained raw-update
// blob took to send (ldp_raw_update_stop_cb's timestamp-delta pattern).
func (s *Session) UpdateElapsed() time.Duration {
	if s.updateStart.IsZero() || s.updateStop.Before(s.updateStart) {
		return 0
	}
	return s.updateStop.Sub(s.updateStart)
}

// NegotiatedKeepalive returns the negotiated keepalive time, valid once
// OPERATIONAL has been reached.
func (s *Session) NegotiatedKeepalive() uint16 { return s.negotiatedKA }

// PeerParams returns the peer's advertised keepalive time and max PDU
// length, as learned from its INIT message.
func (s *Session) PeerParams() (keepaliveTime, maxPDULen uint16) {
	return s.peerKeepaliveTime, s.peerMaxPDULen
}
