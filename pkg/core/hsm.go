package core

import (
	"fmt"
	"sync/atomic"
)

// Transitioner is the part of an engine that state handlers drive
type Transitioner interface {
	// TransitionTo performs a dynamic transition from the state whose
	// handler is running. Dynamic transitions are never memoized.
	TransitionTo(target StateID)
	// TransitionToSlot performs a static transition memoized in the slot
	TransitionToSlot(target StateID, slot Slot)
	// InitTo selects the initial child from an Init handler
	InitTo(child StateID)
}

// Hsm executes one instance of a machine type. It is not safe for
// concurrent use; the only concurrent reads allowed are State, StateName
// and IsInState.
type Hsm[T any] struct {
	typ         *Type[T]
	owner       T
	trace       TraceFunc
	state       atomic.Int64
	source      StateID
	active      StateID
	event       Event
	initialized bool
}

var _ Transitioner = (*Hsm[struct{}])(nil)

// New creates an engine for owner. The engine starts in Top.
func New[T any](typ *Type[T], owner T, opts ...Option) *Hsm[T] {
	var cfg engineConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Hsm[T]{
		typ:    typ,
		owner:  owner,
		trace:  cfg.trace,
		source: Top,
	}
}

// Type returns the machine type
func (h *Hsm[T]) Type() *Type[T] {
	return h.typ
}

// Owner returns the value handlers are invoked on
func (h *Hsm[T]) Owner() T {
	return h.owner
}

// State returns the current leaf state
func (h *Hsm[T]) State() StateID {
	return StateID(h.state.Load())
}

func (h *Hsm[T]) setState(id StateID) {
	h.state.Store(int64(id))
}

// StateName returns the name of the current leaf state
func (h *Hsm[T]) StateName() string {
	return h.typ.StateName(h.State())
}

// Active returns the state whose handler was invoked most recently
func (h *Hsm[T]) Active() StateID {
	return h.active
}

// Initialized reports whether Init has run
func (h *Hsm[T]) Initialized() bool {
	return h.initialized
}

// SetState seeds the current state before Init. The seeded state and its
// ancestors are considered entered; Init then descends from it.
func (h *Hsm[T]) SetState(id StateID) error {
	if h.initialized {
		return ErrAlreadyInitialized
	}
	if !h.typ.Contains(id) {
		return fmt.Errorf("%w: %d in type %q", ErrUnknownState, id, h.typ.name)
	}
	h.setState(id)
	return nil
}

// IsInState reports whether s is the current leaf or one of its ancestors.
// Top is always an ancestor.
func (h *Hsm[T]) IsInState(s StateID) bool {
	for id := h.State(); id != none; id = h.typ.Parent(id) {
		if id == s {
			return true
		}
	}
	return false
}

// Init enters the initial configuration. It must run exactly once.
func (h *Hsm[T]) Init() {
	if h.initialized {
		panic(ErrAlreadyInitialized)
	}
	h.initialized = true
	h.event = ReservedEvent(Init)

	if h.State() == Top {
		initial := h.typ.initial
		if h.typ.Parent(initial) != Top {
			panic(&HierarchyError{Source: Top, Target: initial, Reason: "initial state must be a direct child of Top"})
		}
		h.setState(initial)
		h.trigger(initial, Entry, nil)
	}
	h.descend(h.State(), nil)
}

// Dispatch delivers a user event to the current leaf and bubbles it up the
// hierarchy until a handler consumes it. Events reaching Top are dropped.
func (h *Hsm[T]) Dispatch(e Event) {
	if !h.initialized {
		panic(ErrNotInitialized)
	}
	h.event = e
	leaf := h.State()
	h.source = leaf
	for h.source != Top {
		s := h.source
		h.active = s
		result := h.typ.handler(s)(h.owner, e)
		handled := result.IsHandled()
		h.emit(Trace{Kind: TraceDispatch, State: s, Event: e, Handled: handled})
		if handled {
			return
		}
		if parent, ok := result.Parent(); ok {
			if parent == s || !h.typ.Contains(parent) || !h.typ.IsAncestor(parent, s) {
				panic(&HierarchyError{Source: s, Target: parent, Reason: "delegation target is not an ancestor"})
			}
			h.source = parent
		} else {
			h.source = h.typ.Parent(s)
		}
	}
	h.emit(Trace{Kind: TraceDropped, State: leaf, Event: e})
}

// TransitionTo performs a dynamic transition to target
func (h *Hsm[T]) TransitionTo(target StateID) {
	h.checkTarget(target)
	h.emit(Trace{Kind: TraceTransitionBegin, State: h.source, Target: target, Event: h.event})
	h.exitUpToSource()
	leaf := h.transition(target, nil)
	h.emit(Trace{Kind: TraceTransitionEnd, State: leaf, Target: target, Event: h.event})
}

// TransitionToSlot performs a static transition to target. The first
// execution records its steps in the slot; later executions replay them.
func (h *Hsm[T]) TransitionToSlot(target StateID, slot Slot) {
	h.checkTarget(target)
	h.emit(Trace{Kind: TraceTransitionBegin, State: h.source, Target: target, Event: h.event})
	h.exitUpToSource()

	chains := h.typ.chains
	chain := chains.Load(slot)
	if chain == nil {
		// handlers run outside any store lock; they may drive peer
		// instances of the same type through this slot
		var executed bool
		chain, _ = chains.Populate(slot, func() *Chain {
			executed = true
			rec := &recorder{}
			h.transition(target, rec)
			return rec.chain()
		})
		if executed {
			h.emit(Trace{Kind: TraceTransitionEnd, State: h.State(), Target: target, Event: h.event})
			return
		}
	}
	leaf := h.replay(chain)
	h.emit(Trace{Kind: TraceTransitionEnd, State: leaf, Target: target, Event: h.event, Cached: true})
}

// InitTo moves the current state to child. It is only meaningful inside an
// Init handler, and child must be a direct child of the initialized state.
func (h *Hsm[T]) InitTo(child StateID) {
	if child == Top || !h.typ.Contains(child) {
		panic(&HierarchyError{Source: h.State(), Target: child, Reason: "invalid initial transition target"})
	}
	h.setState(child)
}

func (h *Hsm[T]) checkTarget(target StateID) {
	if target == Top {
		panic(&HierarchyError{Source: h.source, Target: target, Reason: "cannot transition to Top"})
	}
	if !h.typ.Contains(target) {
		panic(&HierarchyError{Source: h.source, Target: target, Reason: "unknown target state"})
	}
}

func (h *Hsm[T]) emit(t Trace) {
	if h.trace != nil {
		h.trace(t)
	}
}

// trigger sends a reserved signal to a state and reports whether it was handled
func (h *Hsm[T]) trigger(state StateID, sig Signal, rec *recorder) bool {
	if state == Top {
		return false
	}
	e := ReservedEvent(sig)
	h.active = state
	if !h.typ.handler(state)(h.owner, e).IsHandled() {
		return false
	}
	if rec != nil {
		rec.record(state, sig)
	}
	switch sig {
	case Entry:
		h.emit(Trace{Kind: TraceEntry, State: state, Event: e, Handled: true})
	case Exit:
		h.emit(Trace{Kind: TraceExit, State: state, Event: e, Handled: true})
	case Init:
		h.emit(Trace{Kind: TraceInit, State: state, Event: e, Handled: true})
	}
	return true
}

// exitUpToSource exits the current leaf and its ancestors below the source
func (h *Hsm[T]) exitUpToSource() {
	for s := h.State(); s != h.source; s = h.typ.Parent(s) {
		if s == Top || s == none {
			panic(&HierarchyError{Source: h.source, Target: h.State(), Reason: "source state is not an ancestor of the current state"})
		}
		h.trigger(s, Exit, nil)
	}
}

// transition runs the exit, entry and init steps from the source to target
// and returns the settled leaf. With a recorder it guarantees the recorded
// chain ends with the entry into the leaf, or with an Empty marker for the
// leaf when the leaf was not entered.
func (h *Hsm[T]) transition(target StateID, rec *recorder) StateID {
	path, enter := h.exitUpToLCA(target, rec)
	for i := enter; i >= 0; i-- {
		h.trigger(path[i], Entry, rec)
	}
	h.setState(target)

	entered := enter >= 0
	leaf, descended := h.descend(target, rec)
	entered = entered || descended

	if rec != nil {
		last, ok := rec.last()
		if !ok || last.State != leaf || last.Phase != Entry {
			if entered {
				rec.record(leaf, Entry)
			} else {
				rec.record(leaf, Empty)
			}
		}
	}
	return leaf
}

// descend triggers Init on state until it is no longer handled, entering
// each selected child. Every initial transition must go one level deep.
func (h *Hsm[T]) descend(state StateID, rec *recorder) (StateID, bool) {
	descended := false
	for h.trigger(state, Init, rec) {
		next := h.State()
		if h.typ.Parent(next) != state {
			panic(&HierarchyError{Source: state, Target: next, Reason: "initial transition must go exactly one level deeper"})
		}
		state = next
		h.trigger(state, Entry, rec)
		descended = true
	}
	return state, descended
}

// exitUpToLCA exits from the source up to the least common ancestor of the
// source and target. It returns the target and its ancestors in upward order
// and the index of the first of them to enter; -1 means nothing is entered.
func (h *Hsm[T]) exitUpToLCA(target StateID, rec *recorder) ([]StateID, int) {
	src := h.source
	path := []StateID{target}
	enter := 0

	// (a) transition to self
	if src == target {
		h.trigger(src, Exit, rec)
		return path, enter
	}

	// (b) source is the parent of target
	targetParent := h.typ.Parent(target)
	if src == targetParent {
		return path, enter
	}

	// (c) siblings
	srcParent := h.typ.Parent(src)
	if srcParent == targetParent {
		h.trigger(src, Exit, rec)
		return path, enter
	}

	// (d) target is the parent of source; it is not re-entered
	if srcParent == target {
		h.trigger(src, Exit, rec)
		return path, -1
	}

	// (e) source is an ancestor of target
	path = append(path, targetParent)
	enter++
	for s := h.typ.Parent(targetParent); s != none; s = h.typ.Parent(s) {
		if src == s {
			return path, enter
		}
		path = append(path, s)
		enter++
	}

	h.trigger(src, Exit, rec)

	// (f) parent of source is an ancestor of target
	for i := enter; i >= 0; i-- {
		if path[i] == srcParent {
			return path, i - 1
		}
	}

	// (g) walk up from the parent of source until an ancestor of target is met
	for s := srcParent; s != none; s = h.typ.Parent(s) {
		for i := enter; i >= 0; i-- {
			if path[i] == s {
				return path, i - 1
			}
		}
		h.trigger(s, Exit, rec)
	}

	panic(&HierarchyError{Source: src, Target: target, Reason: "no least common ancestor"})
}

// replay executes a memoized chain and moves to its final state
func (h *Hsm[T]) replay(chain *Chain) StateID {
	last, ok := chain.Last()
	if !ok {
		panic(&HierarchyError{Source: h.source, Reason: "empty transition chain"})
	}
	for _, step := range chain.steps {
		if step.Phase == Empty {
			continue
		}
		h.trigger(step.State, step.Phase, nil)
	}
	h.setState(last.State)
	return last.State
}
