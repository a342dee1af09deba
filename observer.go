package qhsm

import (
	"fmt"
	"sync"

	"github.com/anggasct/qhsm/pkg/core"
)

// MachineInfo identifies the machine an observer notification comes from
type MachineInfo struct {
	// ID is the machine instance id
	ID string
	// Type is the machine type name
	Type string
	// State is the current leaf state when the notification fired
	State string

	signals *core.SignalMapper
}

// NewMachineInfo creates the info passed to observers; signals may be nil
func NewMachineInfo(id, typeName, state string, signals *core.SignalMapper) MachineInfo {
	return MachineInfo{ID: id, Type: typeName, State: state, signals: signals}
}

// SignalName returns the human readable name of a signal of this machine
func (i MachineInfo) SignalName(sig core.Signal) string {
	if i.signals == nil {
		return sig.String()
	}
	return i.signals.Name(sig)
}

// Observer represents an entity that observes a machine
type Observer interface {
	// OnTransition is called once a transition settled in its leaf state
	OnTransition(from string, to string, event core.Event, info MachineInfo)

	// OnStateEnter is called when a state handled its Entry
	OnStateEnter(state string, info MachineInfo)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	// OnStateExit is called when a state handled its Exit
	OnStateExit(state string, info MachineInfo)

	// OnStateInit is called when a state handled its Init
	OnStateInit(state string, info MachineInfo)

	// OnEventDispatched is called for every delivery of a user event to a state
	OnEventDispatched(state string, event core.Event, handled bool, info MachineInfo)

	// OnEventDropped is called when an event bubbled up to Top unhandled
	OnEventDropped(event core.Event, info MachineInfo)

	// OnError is called when an error occurs during processing
	OnError(err error, info MachineInfo)

	// OnMachineStarted is called when the machine goes online
	OnMachineStarted(info MachineInfo)

	// OnMachineStopped is called when the machine went offline
	OnMachineStopped(info MachineInfo)

	// OnMachineHalted is called when the machine halted on an unrecoverable fault
	OnMachineHalted(err error, info MachineInfo)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

// OnTransition implements the required Observer method
func (o *BaseObserver) OnTransition(from string, to string, event core.Event, info MachineInfo) {}

// OnStateEnter implements the required Observer method
func (o *BaseObserver) OnStateEnter(state string, info MachineInfo) {}

// OnStateExit implements the optional ExtendedObserver method
func (o *BaseObserver) OnStateExit(state string, info MachineInfo) {}

// OnStateInit implements the optional ExtendedObserver method
func (o *BaseObserver) OnStateInit(state string, info MachineInfo) {}

// OnEventDispatched implements the optional ExtendedObserver method
func (o *BaseObserver) OnEventDispatched(state string, event core.Event, handled bool, info MachineInfo) {
}

// OnEventDropped implements the optional ExtendedObserver method
func (o *BaseObserver) OnEventDropped(event core.Event, info MachineInfo) {}

// OnError implements the optional ExtendedObserver method
func (o *BaseObserver) OnError(err error, info MachineInfo) {}

// OnMachineStarted implements the optional ExtendedObserver method
func (o *BaseObserver) OnMachineStarted(info MachineInfo) {}

// OnMachineStopped implements the optional ExtendedObserver method
func (o *BaseObserver) OnMachineStopped(info MachineInfo) {}

// OnMachineHalted implements the optional ExtendedObserver method
func (o *BaseObserver) OnMachineHalted(err error, info MachineInfo) {}

// ObserverManager manages a collection of observers. Notifications are
// delivered in registration order; a panicking observer is reported to its
// own OnError and never reaches the machine.
type ObserverManager struct {
	mutex     sync.RWMutex
	observers []Observer
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{
		observers: make([]Observer, 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager) AddObserver(observer Observer) {
	if observer == nil {
		return
	}
	om.mutex.Lock()
	defer om.mutex.Unlock()
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager) RemoveObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i:i], om.observers[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered observers
func (om *ObserverManager) Len() int {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	return len(om.observers)
}

func (om *ObserverManager) snapshot() []Observer {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	if len(om.observers) == 0 {
		return nil
	}
	observers := make([]Observer, len(om.observers))
	copy(observers, om.observers)
	return observers
}

// call runs fn against one observer and contains its panics
func call(observer Observer, method string, info MachineInfo, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if extObs, ok := observer.(ExtendedObserver); ok {
				func() {
					defer func() { _ = recover() }()
					extObs.OnError(fmt.Errorf("observer panic in %s: %v", method, r), info)
				}()
			}
		}
	}()
	fn()
}

func (om *ObserverManager) notifyExtended(method string, info MachineInfo, fn func(ExtendedObserver)) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			call(observer, method, info, func() { fn(extObs) })
		}
	}
}

// NotifyTransition notifies all observers of a settled transition
func (om *ObserverManager) NotifyTransition(from string, to string, event core.Event, info MachineInfo) {
	for _, observer := range om.snapshot() {
		observer := observer
		call(observer, "OnTransition", info, func() { observer.OnTransition(from, to, event, info) })
	}
}

// NotifyStateEnter notifies all observers of state entry
func (om *ObserverManager) NotifyStateEnter(state string, info MachineInfo) {
	for _, observer := range om.snapshot() {
		observer := observer
		call(observer, "OnStateEnter", info, func() { observer.OnStateEnter(state, info) })
	}
}

// NotifyStateExit notifies all observers of state exit
func (om *ObserverManager) NotifyStateExit(state string, info MachineInfo) {
	om.notifyExtended("OnStateExit", info, func(o ExtendedObserver) { o.OnStateExit(state, info) })
}

// NotifyStateInit notifies all observers of a handled initial transition
func (om *ObserverManager) NotifyStateInit(state string, info MachineInfo) {
	om.notifyExtended("OnStateInit", info, func(o ExtendedObserver) { o.OnStateInit(state, info) })
}

// NotifyEventDispatched notifies all observers of an event delivery
func (om *ObserverManager) NotifyEventDispatched(state string, event core.Event, handled bool, info MachineInfo) {
	om.notifyExtended("OnEventDispatched", info, func(o ExtendedObserver) {
		o.OnEventDispatched(state, event, handled, info)
	})
}

// NotifyEventDropped notifies all observers of a dropped event
func (om *ObserverManager) NotifyEventDropped(event core.Event, info MachineInfo) {
	om.notifyExtended("OnEventDropped", info, func(o ExtendedObserver) { o.OnEventDropped(event, info) })
}

// NotifyError notifies all observers of errors
func (om *ObserverManager) NotifyError(err error, info MachineInfo) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			func() {
				defer func() { _ = recover() }()
				extObs.OnError(err, info)
			}()
		}
	}
}

// NotifyMachineStarted notifies all observers that the machine has started
func (om *ObserverManager) NotifyMachineStarted(info MachineInfo) {
	om.notifyExtended("OnMachineStarted", info, func(o ExtendedObserver) { o.OnMachineStarted(info) })
}

// NotifyMachineStopped notifies all observers that the machine has stopped
func (om *ObserverManager) NotifyMachineStopped(info MachineInfo) {
	om.notifyExtended("OnMachineStopped", info, func(o ExtendedObserver) { o.OnMachineStopped(info) })
}

// NotifyMachineHalted notifies all observers that the machine has halted
func (om *ObserverManager) NotifyMachineHalted(err error, info MachineInfo) {
	om.notifyExtended("OnMachineHalted", info, func(o ExtendedObserver) { o.OnMachineHalted(err, info) })
}
