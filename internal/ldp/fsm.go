// Package ldp implements the LDP peering engine (spec §4.2): a discovered,
// active-or-passive TCP session with role election by transport address,
// keepalive maintenance, and raw-update injection.
//
// Grounded on original_source/code/bngblaster/src/ldp/ldp_session.c and,
// structurally, on the teacher's internal/bfd FSM-table pattern adapted to
// single-threaded cooperative scheduling (see internal/bgp for the same
// adaptation applied to BGP).
package ldp

// State is an LDP session state, ordered by monotonically increasing
// "liveness" exactly as spec §4.2 specifies: CLOSED < IDLE < LISTEN <
// CONNECT < INITIALIZED < OPENSENT < OPENREC < OPERATIONAL < CLOSING <
// ERROR. Whether a close sends a NOTIFICATION is fixed per row of fsmTable,
// not computed from this ordering at close time: a teardown or a local
// decode error sends one from INITIALIZED through OPERATIONAL, a keepalive
// timeout sends one from OPERATIONAL, and an unexpected INIT sends one;
// closes caused by the connect deadline or by a received NOTIFICATION send
// none.
type State uint8

const (
	StateClosed State = iota
	StateIdle
	StateListen
	StateConnect
	StateInitialized
	StateOpenSent
	StateOpenRec
	StateOperational
	StateClosing
	StateError
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateIdle:
		return "idle"
	case StateListen:
		return "listen"
	case StateConnect:
		return "connect"
	case StateInitialized:
		return "initialized"
	case StateOpenSent:
		return "opensent"
	case StateOpenRec:
		return "openrec"
	case StateOperational:
		return "operational"
	case StateClosing:
		return "closing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Event drives LDP FSM transitions.
type Event uint8

const (
	// EventStart is the operator-initiated start, also self-posted once an
	// active session's transport connects (table row "INITIALIZED
	// (active)+START->OPENSENT").
	EventStart Event = iota
	// EventTransportUp fires once the transport connects (active) or
	// accepts a peer (passive).
	EventTransportUp
	// EventTransportDown fires on a transport-level error.
	EventTransportDown
	// EventRxInit fires on an inbound INIT message.
	EventRxInit
	// EventRxKeepalive fires on an inbound KEEPALIVE message.
	EventRxKeepalive
	// EventRxNotification fires on an inbound NOTIFICATION message.
	EventRxNotification
	// EventKeepaliveTimeout fires when the keepalive-timeout supervision
	// expires without any inbound PDU.
	EventKeepaliveTimeout
	// EventConnectTimeout fires when the connect supervisor's deadline
	// elapses without reaching OPERATIONAL.
	EventConnectTimeout
	// EventDecodeError fires on a local resource or framing error (read
	// buffer exhaustion, malformed PDU/message header); unlike
	// EventRxNotification this is locally detected, so a NOTIFICATION is
	// owed to the peer before closing.
	EventDecodeError
	// EventTeardown is the operator-initiated graceful close.
	EventTeardown
)

// Action is a side effect the caller executes after a transition.
type Action uint8

const (
	// ActionArmConnect starts the active-role connect supervisor.
	ActionArmConnect Action = iota + 1
	// ActionListen starts the passive-role listen/accept.
	ActionListen
	// ActionSendInit transmits this session's INIT message.
	ActionSendInit
	// ActionSendKeepalive transmits a KEEPALIVE message.
	ActionSendKeepalive
	// ActionSendInitAndKeepalive transmits INIT followed by KEEPALIVE (the
	// table's "INITIALIZED+RX INIT->OPENREC" row, which emits both).
	ActionSendInitAndKeepalive
	// ActionSelfMessage emits the notional self-message that marks
	// reaching OPERATIONAL (spec §4.2 table).
	ActionSelfMessage
	// ActionNegotiateAndPump negotiates max-PDU/keepalive parameters,
	// arms keepalive transmit/timeout, and starts the raw-update pump.
	ActionNegotiateAndPump
	// ActionSendNotification emits a NOTIFICATION carrying the session's
	// current status code before closing.
	ActionSendNotification
	// ActionArmCloseTimer schedules the deferred close job.
	ActionArmCloseTimer
	// ActionCancelAllTimers cancels every timer the session may have
	// armed.
	ActionCancelAllTimers
)

type stateEvent struct {
	state State
	event Event
}

type transition struct {
	next    State
	actions []Action
}

//nolint:gochecknoglobals // package-level transition table, as in bgp.fsmTable.
var fsmTable = map[stateEvent]transition{
	{StateClosed, EventStart}: {StateIdle, nil},

	// Role election has already happened by the time Idle+Start fires.
	// An active session takes this row as written; Session.applyEvent
	// turns it into Idle+Start->Listen [ActionListen] for a passive one.
	{StateIdle, EventStart}: {StateConnect, []Action{ActionArmConnect}},

	{StateConnect, EventTransportUp}: {StateInitialized, nil},
	{StateListen, EventTransportUp}:  {StateInitialized, nil},

	{StateConnect, EventTransportDown}: {StateIdle, []Action{ActionArmConnect}},

	// "INITIALIZED (active)+START->OPENSENT emit INIT": the active side
	// self-posts EventStart immediately after EventTransportUp lands it in
	// INITIALIZED, per spec §4.2's table.
	{StateInitialized, EventStart}: {StateOpenSent, []Action{ActionSendInit}},

	// "INITIALIZED+RX INIT->OPENREC emit INIT+KEEPALIVE": the passive side
	// (still INITIALIZED, having never self-posted START) replies to the
	// peer's INIT with its own INIT plus a KEEPALIVE.
	{StateInitialized, EventRxInit}: {StateOpenRec, []Action{ActionSendInitAndKeepalive}},

	// "OPENSENT+RX INIT->OPENREC emit KEEPALIVE": the active side, having
	// already sent its INIT, only needs to acknowledge with KEEPALIVE.
	{StateOpenSent, EventRxInit}: {StateOpenRec, []Action{ActionSendKeepalive}},

	// "OPENREC+RX KEEPALIVE->OPERATIONAL emit self-message".
	{StateOpenRec, EventRxKeepalive}: {StateOperational, []Action{ActionSelfMessage, ActionNegotiateAndPump}},

	{StateOperational, EventKeepaliveTimeout}: {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},
	{StateOpenSent, EventConnectTimeout}:      {StateClosing, []Action{ActionArmCloseTimer}},
	{StateOpenRec, EventConnectTimeout}:       {StateClosing, []Action{ActionArmCloseTimer}},
	{StateConnect, EventConnectTimeout}:       {StateClosing, []Action{ActionArmCloseTimer}},

	{StateOperational, EventRxNotification}: {StateClosing, []Action{ActionArmCloseTimer}},
	{StateOpenSent, EventRxNotification}:     {StateClosing, []Action{ActionArmCloseTimer}},
	{StateOpenRec, EventRxNotification}:      {StateClosing, []Action{ActionArmCloseTimer}},

	{StateConnect, EventDecodeError}:      {StateClosing, []Action{ActionArmCloseTimer}},
	{StateListen, EventDecodeError}:       {StateClosing, []Action{ActionArmCloseTimer}},
	{StateInitialized, EventDecodeError}:  {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},
	{StateOpenSent, EventDecodeError}:     {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},
	{StateOpenRec, EventDecodeError}:      {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},
	{StateOperational, EventDecodeError}:  {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},

	{StateConnect, EventTeardown}:      {StateClosing, []Action{ActionCancelAllTimers, ActionArmCloseTimer}},
	{StateListen, EventTeardown}:       {StateClosing, []Action{ActionCancelAllTimers, ActionArmCloseTimer}},
	{StateInitialized, EventTeardown}:  {StateClosing, []Action{ActionSendNotification, ActionCancelAllTimers, ActionArmCloseTimer}},
	{StateOpenSent, EventTeardown}:     {StateClosing, []Action{ActionSendNotification, ActionCancelAllTimers, ActionArmCloseTimer}},
	{StateOpenRec, EventTeardown}:      {StateClosing, []Action{ActionSendNotification, ActionCancelAllTimers, ActionArmCloseTimer}},
	{StateOperational, EventTeardown}:  {StateClosing, []Action{ActionSendNotification, ActionCancelAllTimers, ActionArmCloseTimer}},

	{StateClosing, EventStart}: {StateIdle, []Action{ActionCancelAllTimers}},
}

// FSMResult is the outcome of applying an event.
type FSMResult struct {
	OldState State
	NewState State
	Actions  []Action
	Changed  bool
}

// Apply is a pure function over (state, event). An EventRxInit pair not
// present in the table closes the session with a NOTIFICATION, from any
// state other than Closed, Closing and Error (Session sets the
// INTERNAL_ERROR|FATAL_ERROR status before applying it); every other
// unlisted pair is a silent no-op.
func Apply(current State, event Event) FSMResult {
	tr, ok := fsmTable[stateEvent{current, event}]
	if !ok {
		if event == EventRxInit && current != StateClosed && current != StateClosing && current != StateError {
			return FSMResult{
				OldState: current,
				NewState: StateClosing,
				Actions:  []Action{ActionSendNotification, ActionArmCloseTimer},
				Changed:  current != StateClosing,
			}
		}
		return FSMResult{OldState: current, NewState: current}
	}
	return FSMResult{
		OldState: current,
		NewState: tr.next,
		Actions:  tr.actions,
		Changed:  current != tr.next,
	}
}
