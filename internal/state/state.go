// Package state implements the two PeSIT-E peer state machines
// (demander and server) as explicit transition tables: transition is
// a pure function (State, Event) -> (State, error), never arithmetic
// on FPDU type codes.
package state

import (
	"fmt"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// State is one node of a peer's state machine.
type State string

// Role distinguishes which of the two transition tables a Machine
// uses.
type Role int

const (
	Demander Role = iota
	Server
)

// ERROR is shared by both roles: any state reaches it on RCONNECT,
// ABORT, or a codec failure, and it always resets to the idle state
//.
const ERROR State = "ERROR"

// Direction distinguishes whether an Event models this peer sending
// or receiving an FPDU.
type Direction int

const (
	Send Direction = iota
	Recv
)

// Event is one transition trigger: either this peer sending, or
// receiving, a given FPDU type. A small set of internal pseudo-events
// (CodecFailure, Reset) round out the table for cases not tied to a
// specific FPDU.
type Event struct {
	Dir  Direction
	Type wire.Type
}

// Sent builds the "I am about to send this FPDU type" event.
func Sent(t wire.Type) Event { return Event{Dir: Send, Type: t} }

// Received builds the "I just received this FPDU type" event.
func Received(t wire.Type) Event { return Event{Dir: Recv, Type: t} }

// pseudo-event type codes, never valid on the wire (wire.Type is a
// byte; these are out of the byte range only conceptually — they're
// never serialized, only used as Machine.Transition input), so we
// reserve them via distinct sentinel wire.Type values that do not
// collide with any entry in wire.knownFpdus.
const (
	codecFailureType wire.Type = 0xF0
	resetType        wire.Type = 0xF1
)

// CodecFailure is the event for "the wire codec rejected an incoming
// frame" — always fatal, from any state.
var CodecFailure = Event{Dir: Recv, Type: codecFailureType}

// Reset is the internal event the driver emits once it has finished
// handling ERROR (sent ABORT, closed transfer context) to return the
// machine to its idle state.
var Reset = Event{Dir: Send, Type: resetType}

type transitionKey struct {
	from State
	on   Event
}

// table is a transition table: (state, event) -> next state.
type table map[transitionKey]State

// TransitionError is returned when an FPDU is sent or received in a
// state that does not permit it.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	dir := "send"
	if e.Event.Dir == Recv {
		dir = "recv"
	}
	return fmt.Sprintf("state violation: cannot %s %s in state %s", dir, wire.Name(wire.PhaseFile, e.Event.Type), e.From)
}

// AsDiagnostics converts a TransitionError into the typed core error
// used by the session driver to decide on ABORT + diagnostic code.
func (e *TransitionError) AsDiagnostics() *diagnostics.Error {
	return diagnostics.StateViolationf("%v", e)
}

// Machine drives one peer's state machine. It is single-consumer: the
// session layer that owns it must never call Transition concurrently
//.
type Machine struct {
	role  Role
	state State
	idle  State
	table table
}

func newMachine(role Role, idle State, t table) *Machine {
	return &Machine{role: role, state: idle, idle: idle, table: t}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Role returns which table this machine uses.
func (m *Machine) Role() Role { return m.role }

// Transition applies event to the machine's current state. On
// success it mutates m.state and returns the new state. On failure it
// leaves m.state untouched (except for the universal error-events
// below) and returns a *TransitionError.
//
// Universal transitions not listed per-state in the table: receiving
// RCONNECT or ABORT, or a CodecFailure event, moves any state to
// ERROR; the Reset pseudo-event moves ERROR back to the idle state.
func (m *Machine) Transition(event Event) (State, error) {
	if event == Reset {
		if m.state != ERROR {
			return m.state, &TransitionError{From: m.state, Event: event}
		}
		m.state = m.idle
		return m.state, nil
	}

	if event == CodecFailure || event == Received(wire.RCONNECT) || event == Received(wire.ABORT) || event == Sent(wire.ABORT) {
		m.state = ERROR
		return m.state, nil
	}

	next, ok := m.table[transitionKey{from: m.state, on: event}]
	if !ok {
		return m.state, &TransitionError{From: m.state, Event: event}
	}
	m.state = next
	return m.state, nil
}
