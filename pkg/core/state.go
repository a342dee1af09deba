package core

import "strconv"

// StateID is the stable identity of one state within a machine type
type StateID int

const (
	// Top is the root of every hierarchy. It has no handler.
	Top StateID = 0

	// none marks the missing parent of Top
	none StateID = -1
)

// String returns a generic label for the state id
func (id StateID) String() string {
	if id == Top {
		return "Top"
	}
	return "State" + strconv.Itoa(int(id))
}

type resultKind uint8

const (
	resultUnhandled resultKind = iota
	resultHandled
	resultDelegate
)

// Result is what a state handler reports for an event
type Result struct {
	kind   resultKind
	parent StateID
}

// Handled reports that the state consumed the event
func Handled() Result {
	return Result{kind: resultHandled}
}

// Delegate passes the event on to the given parent state.
// Top-level states delegate to Top.
func Delegate(parent StateID) Result {
	return Result{kind: resultDelegate, parent: parent}
}

// Unhandled passes the event on to the parent registered for the state
func Unhandled() Result {
	return Result{}
}

// IsHandled reports whether the result stops bubbling
func (r Result) IsHandled() bool {
	return r.kind == resultHandled
}

// Parent returns the delegation target and whether one was named explicitly
func (r Result) Parent() (StateID, bool) {
	return r.parent, r.kind == resultDelegate
}

// HandlerFunc is the behavior of one state. Method expressions such as
// (*Person).Awake satisfy it for owner type *Person.
type HandlerFunc[T any] func(owner T, e Event) Result

// StateInfo describes a registered state
type StateInfo struct {
	ID     StateID
	Name   string
	Parent StateID
}
