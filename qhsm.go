// Package qhsm provides a hierarchical state machine engine for Go following
// UML statechart semantics: nested states, entry, exit and initial
// transitions, least-common-ancestor transitions and memoized static
// transition chains, driven by a concurrent FIFO event queue.
//
// A machine type is defined once with Define and shared by all instances:
//
//	typ := qhsm.Define[*Person]("Person").
//		State(Awake, "Awake", qhsm.Top, (*Person).awake).
//		State(Asleep, "Asleep", qhsm.Top, (*Person).asleep).
//		Initial(Awake).
//		MustBuild()
//
// Each instance is a Machine bound to an owner value and a caller-owned memento.
package qhsm

import (
	"github.com/anggasct/qhsm/pkg/core"
)

// Core types
type (
	// Signal identifies the kind of an event
	Signal = core.Signal

	// Event is an immutable signal with an optional payload
	Event = core.Event

	// StateID is the identity of a state within a machine type
	StateID = core.StateID

	// Result is what a state handler reports for an event
	Result = core.Result

	// Slot indexes a memoized static transition
	Slot = core.Slot

	// StateInfo describes a registered state
	StateInfo = core.StateInfo

	// Transitioner is the part of a machine that state handlers drive
	Transitioner = core.Transitioner

	// SignalMapper resolves message values to events
	SignalMapper = core.SignalMapper

	// Trace is one record passed to a trace hook
	Trace = core.Trace

	// TraceKind classifies trace records
	TraceKind = core.TraceKind

	// TraceFunc receives trace records
	TraceFunc = core.TraceFunc

	// Step is one recorded action of a transition chain
	Step = core.Step

	// Chain is a recorded static transition
	Chain = core.Chain
)

// Reserved states and signals
const (
	Top        = core.Top
	Empty      = core.Empty
	Init       = core.Init
	Entry      = core.Entry
	Exit       = core.Exit
	UserSignal = core.UserSignal
)

// Trace kinds
const (
	TraceDispatch        = core.TraceDispatch
	TraceEntry           = core.TraceEntry
	TraceExit            = core.TraceExit
	TraceInit            = core.TraceInit
	TraceTransitionBegin = core.TraceTransitionBegin
	TraceTransitionEnd   = core.TraceTransitionEnd
	TraceDropped         = core.TraceDropped
)

// Engine level errors
var (
	ErrMalformedHierarchy = core.ErrMalformedHierarchy
	ErrUnmappedMessage    = core.ErrUnmappedMessage
	ErrInvalidDefinition  = core.ErrInvalidDefinition
	ErrUnknownState       = core.ErrUnknownState
)

// Define starts the definition of a machine type for owners of type T
func Define[T any](name string) *core.TypeBuilder[T] {
	return core.NewType[T](name)
}

// Handled reports that the state consumed the event
func Handled() Result {
	return core.Handled()
}

// Delegate passes the event on to the given parent state
func Delegate(parent StateID) Result {
	return core.Delegate(parent)
}

// Unhandled passes the event on to the registered parent state
func Unhandled() Result {
	return core.Unhandled()
}

// NewEvent creates an event carrying only a signal
func NewEvent(signal Signal) Event {
	return core.NewEvent(signal)
}

// NewMessageEvent creates an event carrying a signal and a payload
func NewMessageEvent(signal Signal, payload any) Event {
	return core.NewMessageEvent(signal, payload)
}
