// Package core provides the engine primitives of the qhsm library: signals,
// immutable events, state identities, the hierarchical dispatch and
// transition algorithm, and the transition-chain cache.
package core

import "strconv"

// Signal identifies the kind of an event independently of its payload
type Signal int

const (
	// Empty is used internally to query the hierarchy and never reaches handlers
	Empty Signal = iota
	// Init asks a state to select its initial child
	Init
	// Entry is delivered when a state is entered
	Entry
	// Exit is delivered when a state is exited
	Exit
	// UserSignal is the first signal code available to machine types
	UserSignal
)

// IsReserved reports whether the signal is one of the engine's own signals
func (s Signal) IsReserved() bool {
	return s < UserSignal
}

// String returns the reserved signal name or a generic label
func (s Signal) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Init:
		return "Init"
	case Entry:
		return "Entry"
	case Exit:
		return "Exit"
	default:
		return "Signal" + strconv.Itoa(int(s))
	}
}

// Event is an immutable signal with an optional payload
type Event struct {
	signal  Signal
	payload any
}

// NewEvent creates an event carrying only a signal
func NewEvent(signal Signal) Event {
	return Event{signal: signal}
}

// NewMessageEvent creates an event carrying a signal and a message payload
func NewMessageEvent(signal Signal, payload any) Event {
	return Event{signal: signal, payload: payload}
}

// Signal returns the event signal
func (e Event) Signal() Signal {
	return e.signal
}

// Payload returns the event payload, nil for plain signals
func (e Event) Payload() any {
	return e.payload
}

// String returns the signal label
func (e Event) String() string {
	return e.signal.String()
}

// reserved events are shared by every engine
var reservedEvents = [UserSignal]Event{
	Empty: {signal: Empty},
	Init:  {signal: Init},
	Entry: {signal: Entry},
	Exit:  {signal: Exit},
}

// ReservedEvent returns the shared event for a reserved signal
func ReservedEvent(signal Signal) Event {
	if !signal.IsReserved() || signal < 0 {
		return NewEvent(signal)
	}
	return reservedEvents[signal]
}
