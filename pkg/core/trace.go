package core

import "fmt"

// TraceKind classifies trace records
type TraceKind uint8

const (
	// TraceDispatch reports a user event delivered to one state handler
	TraceDispatch TraceKind = iota
	// TraceEntry reports a handled Entry
	TraceEntry
	// TraceExit reports a handled Exit
	TraceExit
	// TraceInit reports a handled Init
	TraceInit
	// TraceTransitionBegin is emitted before the first exit of a transition
	TraceTransitionBegin
	// TraceTransitionEnd is emitted once the transition settled in its leaf
	TraceTransitionEnd
	// TraceDropped reports an event that bubbled up to Top unhandled
	TraceDropped
)

func (k TraceKind) String() string {
	switch k {
	case TraceDispatch:
		return "dispatch"
	case TraceEntry:
		return "entry"
	case TraceExit:
		return "exit"
	case TraceInit:
		return "init"
	case TraceTransitionBegin:
		return "transition-begin"
	case TraceTransitionEnd:
		return "transition-end"
	case TraceDropped:
		return "dropped"
	default:
		return fmt.Sprintf("TraceKind(%d)", uint8(k))
	}
}

// Trace is one record passed to a trace hook.
//
// For transition records State is the source and Target the requested
// target; TraceTransitionEnd carries the settled leaf in State. Cached is set
// when the transition replayed a memoized chain.
type Trace struct {
	Kind    TraceKind
	State   StateID
	Target  StateID
	Event   Event
	Handled bool
	Cached  bool
}

// TraceFunc receives trace records on the goroutine running the engine
type TraceFunc func(Trace)

// Option configures an engine
type Option func(*engineConfig)

type engineConfig struct {
	trace TraceFunc
}

// WithTraceHook installs a trace hook on the engine
func WithTraceHook(fn TraceFunc) Option {
	return func(c *engineConfig) {
		c.trace = fn
	}
}
