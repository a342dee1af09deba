package observers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/anggasct/qhsm"
)

// ValidationObserver checks a running machine against expected states and
// allowed transitions and collects the violations it sees
type ValidationObserver struct {
	qhsm.BaseObserver

	expectedStates     map[string]bool
	visitedStates      map[string]bool
	allowedTransitions map[string]map[string]bool
	violations         []string
	mutex              sync.RWMutex
}

var _ qhsm.ExtendedObserver = (*ValidationObserver)(nil)

// NewValidationObserver creates a new validation observer
func NewValidationObserver() *ValidationObserver {
	return &ValidationObserver{
		expectedStates:     make(map[string]bool),
		visitedStates:      make(map[string]bool),
		allowedTransitions: make(map[string]map[string]bool),
		violations:         make([]string, 0),
	}
}

// AddExpectedState adds a state that should be entered at some point
func (o *ValidationObserver) AddExpectedState(stateName string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedStates[stateName] = true
}

// AddAllowedTransition allows from -> to. Once a source has an allowed
// transition, every other transition out of it is a violation.
func (o *ValidationObserver) AddAllowedTransition(from, to string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[string]bool)
	}
	o.allowedTransitions[from][to] = true
}

func (o *ValidationObserver) addViolation(message string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, message)
}

// OnStateEnter marks the state as visited
func (o *ValidationObserver) OnStateEnter(state string, info qhsm.MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates[state] = true
}

// OnTransition validates transitions
func (o *ValidationObserver) OnTransition(from string, to string, event qhsm.Event, info qhsm.MachineInfo) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if allowed, exists := o.allowedTransitions[from]; exists && !allowed[to] {
		o.violations = append(o.violations, fmt.Sprintf(
			"invalid transition from '%s' to '%s' on %s",
			from, to, info.SignalName(event.Signal())))
	}
}

// OnError records the error as a violation
func (o *ValidationObserver) OnError(err error, info qhsm.MachineInfo) {
	o.addViolation(fmt.Sprintf("error in state '%s': %v", info.State, err))
}

// GetViolations returns all validation violations
func (o *ValidationObserver) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedStates returns the sorted states that were expected but not visited
func (o *ValidationObserver) GetUnvisitedStates() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []string
	for state := range o.expectedStates {
		if !o.visitedStates[state] {
			unvisited = append(unvisited, state)
		}
	}
	sort.Strings(unvisited)
	return unvisited
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset resets the validation state
func (o *ValidationObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.visitedStates = make(map[string]bool)
	o.violations = make([]string, 0)
}
