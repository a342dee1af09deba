package qhsm

import (
	"sync"
	"testing"
	"time"

	"github.com/anggasct/qhsm/pkg/core"
)

// TestObserver is a mock observer for testing that captures all observer events
type TestObserver struct {
	mutex       sync.RWMutex
	Transitions []TransitionEvent
	StateEnters []string
	StateExits  []string
	StateInits  []string
	Dispatched  []DispatchEvent
	Dropped     []core.Event
	Errors      []error
	Started     []MachineInfo
	Stopped     []MachineInfo
	Halted      []error
}

type TransitionEvent struct {
	From  string
	To    string
	Event core.Event
}

type DispatchEvent struct {
	State   string
	Event   core.Event
	Handled bool
}

// NewTestObserver creates a new test observer
func NewTestObserver() *TestObserver {
	return &TestObserver{}
}

var _ ExtendedObserver = (*TestObserver)(nil)

func (o *TestObserver) OnTransition(from string, to string, event core.Event, info MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Transitions = append(o.Transitions, TransitionEvent{From: from, To: to, Event: event})
}

func (o *TestObserver) OnStateEnter(state string, info MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.StateEnters = append(o.StateEnters, state)
}

func (o *TestObserver) OnStateExit(state string, info MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.StateExits = append(o.StateExits, state)
}

func (o *TestObserver) OnStateInit(state string, info MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.StateInits = append(o.StateInits, state)
}

func (o *TestObserver) OnEventDispatched(state string, event core.Event, handled bool, info MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Dispatched = append(o.Dispatched, DispatchEvent{State: state, Event: event, Handled: handled})
}

func (o *TestObserver) OnEventDropped(event core.Event, info MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Dropped = append(o.Dropped, event)
}

func (o *TestObserver) OnError(err error, info MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Errors = append(o.Errors, err)
}

func (o *TestObserver) OnMachineStarted(info MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Started = append(o.Started, info)
}

func (o *TestObserver) OnMachineStopped(info MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Stopped = append(o.Stopped, info)
}

func (o *TestObserver) OnMachineHalted(err error, info MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Halted = append(o.Halted, err)
}

// Reset clears everything recorded so far
func (o *TestObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Transitions = nil
	o.StateEnters = nil
	o.StateExits = nil
	o.StateInits = nil
	o.Dispatched = nil
	o.Dropped = nil
	o.Errors = nil
	o.Started = nil
	o.Stopped = nil
	o.Halted = nil
}

func (o *TestObserver) TransitionCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Transitions)
}

func (o *TestObserver) StoppedCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Stopped)
}

func (o *TestObserver) LastTransition() *TransitionEvent {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	if len(o.Transitions) == 0 {
		return nil
	}
	t := o.Transitions[len(o.Transitions)-1]
	return &t
}

func (o *TestObserver) Entered() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return append([]string(nil), o.StateEnters...)
}

func (o *TestObserver) Exited() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return append([]string(nil), o.StateExits...)
}

// AssertState checks the current leaf state of a machine
func AssertState[T any, M Memento](t *testing.T, machine *Machine[T, M], expected string) {
	t.Helper()
	if current := machine.CurrentStateName(); current != expected {
		t.Errorf("Expected state %s, got %s", expected, current)
	}
}

// AssertMachineState checks the lifecycle state of a machine
func AssertMachineState[T any, M Memento](t *testing.T, machine *Machine[T, M], expected MachineState) {
	t.Helper()
	if current := machine.MachineState(); current != expected {
		t.Errorf("Expected machine state %s, got %s", expected, current)
	}
}

// AssertStrings compares two string sequences
func AssertStrings(t *testing.T, expected, actual []string) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Errorf("Expected %v, got %v", expected, actual)
		return
	}
	for i := range expected {
		if expected[i] != actual[i] {
			t.Errorf("Expected %v, got %v", expected, actual)
			return
		}
	}
}

// waitFor polls cond until it holds or the timeout expires
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
