package bgp

// This file implements the BGP session FSM (spec §4.1) as a pure function
// over a transition table, in the style of the teacher's internal/bfd/fsm.go
// (itself grounded on RFC 5880's FSM pseudocode table). The states and
// driving events are grounded on
// original_source/code/bngblaster/src/bgp/bgp_receive.c and bgp_def.h's
// bgp_state_t enum.

// State is a BGP session state (spec §4.1, bgp_def.h bgp_state_t).
type State uint8

const (
	StateClosed State = iota
	StateIdle
	StateConnect
	StateActive
	StateOpenSent
	StateOpenConfirm
	StateEstablished
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateIdle:
		return "idle"
	case StateConnect:
		return "connect"
	case StateActive:
		return "active"
	case StateOpenSent:
		return "opensent"
	case StateOpenConfirm:
		return "openconfirm"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Event drives BGP FSM transitions.
type Event uint8

const (
	// EventStart is the operator-initiated start (spec §4.1).
	EventStart Event = iota
	// EventTransportUp fires when the underlying transport connects.
	EventTransportUp
	// EventTransportDown fires on a transport-level error (spec §7 tier 2).
	EventTransportDown
	// EventOpenValid fires when a well-formed OPEN has been decoded
	// (bgp_open returning true unconditionally moves to OPENCONFIRM in the
	// original source, regardless of the state it was called from).
	EventOpenValid
	// EventKeepaliveInOpenConfirm fires on an inbound KEEPALIVE while in
	// OPENCONFIRM (bgp_read: "if(session->state == BGP_OPENCONFIRM)").
	EventKeepaliveInOpenConfirm
	// EventNotification fires on any inbound NOTIFICATION.
	EventNotification
	// EventHoldExpired fires when the hold timer expires (spec §4.1).
	EventHoldExpired
	// EventDecodeError fires on any framing/OPEN/capability decode failure.
	EventDecodeError
	// EventTeardown is the operator-initiated graceful close.
	EventTeardown
)

// Action is a side effect the caller executes after a transition.
type Action uint8

const (
	// ActionArmConnect starts the transport connect attempt.
	ActionArmConnect Action = iota + 1
	// ActionSendOpen transmits this session's own OPEN message.
	ActionSendOpen
	// ActionRestartHold restarts the hold timer from the configured value
	// (spec §4.1 "After any successful message the hold timer is
	// restarted").
	ActionRestartHold
	// ActionStartKeepaliveHold starts both the keepalive and hold timers,
	// entered once OPENCONFIRM is reached.
	ActionStartKeepaliveHold
	// ActionStartUpdatePump enqueues the first raw-update descriptor, if any
	// (spec §4.1 "Raw-update pump").
	ActionStartUpdatePump
	// ActionSendNotification emits a NOTIFICATION with the session's current
	// error_code/error_subcode before closing (spec §4.1 "Close").
	ActionSendNotification
	// ActionArmCloseTimer arms the teardown_time drain/close timer.
	ActionArmCloseTimer
	// ActionCancelAllTimers cancels every timer the session may have armed.
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

//nolint:gochecknoglobals // transition table is intentionally package-level, as in the teacher's bfd.fsmTable.
var fsmTable = map[stateEvent]transition{
	{StateClosed, EventStart}: {StateIdle, nil},
	{StateIdle, EventStart}:   {StateConnect, []Action{ActionArmConnect}},

	{StateConnect, EventTransportUp}:   {StateOpenSent, []Action{ActionSendOpen, ActionRestartHold}},
	{StateConnect, EventTransportDown}: {StateActive, []Action{ActionArmConnect}},
	{StateActive, EventTransportUp}:    {StateOpenSent, []Action{ActionSendOpen, ActionRestartHold}},
	{StateActive, EventStart}:          {StateConnect, []Action{ActionArmConnect}},

	// bgp_open forces OPENCONFIRM unconditionally on success, from whatever
	// state the OPEN arrived in (bgp_receive.c: no state guard before
	// bgp_session_state_change). We model that as explicit entries for
	// every state from which a wire OPEN can plausibly arrive.
	{StateConnect, EventOpenValid}:   {StateOpenConfirm, []Action{ActionStartKeepaliveHold}},
	{StateActive, EventOpenValid}:    {StateOpenConfirm, []Action{ActionStartKeepaliveHold}},
	{StateOpenSent, EventOpenValid}:  {StateOpenConfirm, []Action{ActionStartKeepaliveHold}},
	{StateIdle, EventOpenValid}:      {StateOpenConfirm, []Action{ActionStartKeepaliveHold}},

	{StateOpenConfirm, EventKeepaliveInOpenConfirm}: {StateEstablished, []Action{ActionRestartHold, ActionStartUpdatePump}},

	{StateOpenSent, EventHoldExpired}:     {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},
	{StateOpenConfirm, EventHoldExpired}:  {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},
	{StateEstablished, EventHoldExpired}:  {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},

	{StateOpenSent, EventDecodeError}:    {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},
	{StateOpenConfirm, EventDecodeError}: {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},
	{StateEstablished, EventDecodeError}: {StateClosing, []Action{ActionSendNotification, ActionArmCloseTimer}},

	{StateOpenSent, EventNotification}:    {StateClosing, []Action{ActionArmCloseTimer}},
	{StateOpenConfirm, EventNotification}: {StateClosing, []Action{ActionArmCloseTimer}},
	{StateEstablished, EventNotification}: {StateClosing, []Action{ActionArmCloseTimer}},

	{StateConnect, EventTeardown}:     {StateClosing, []Action{ActionCancelAllTimers, ActionArmCloseTimer}},
	{StateActive, EventTeardown}:      {StateClosing, []Action{ActionCancelAllTimers, ActionArmCloseTimer}},
	{StateOpenSent, EventTeardown}:    {StateClosing, []Action{ActionSendNotification, ActionCancelAllTimers, ActionArmCloseTimer}},
	{StateOpenConfirm, EventTeardown}: {StateClosing, []Action{ActionSendNotification, ActionCancelAllTimers, ActionArmCloseTimer}},
	{StateEstablished, EventTeardown}: {StateClosing, []Action{ActionSendNotification, ActionCancelAllTimers, ActionArmCloseTimer}},

	{StateClosing, EventStart}: {StateIdle, []Action{ActionCancelAllTimers}},
}

// FSMResult is the outcome of applying an event.
type FSMResult struct {
	OldState State
	NewState State
	Actions  []Action
	Changed  bool
}

// Apply is a pure function: given (state, event), returns at most one next
// state and emission sequence (spec §4 invariants: "deterministic").
// Unlisted pairs are no-ops, matching the BFD FSM's "silently ignored"
// convention.
func Apply(current State, event Event) FSMResult {
	tr, ok := fsmTable[stateEvent{current, event}]
	if !ok {
		return FSMResult{OldState: current, NewState: current}
	}
	return FSMResult{
		OldState: current,
		NewState: tr.next,
		Actions:  tr.actions,
		Changed:  current != tr.next,
	}
}
