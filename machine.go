package qhsm

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/anggasct/qhsm/pkg/core"
)

// MachineState represents the lifecycle state of a machine
type MachineState int

const (
	// Machine is not processing events; Start brings it online
	MachineStateOffline MachineState = iota
	// Machine is accepting and processing events
	MachineStateOnline
	// Machine finishes queued work and then goes offline
	MachineStateExiting
	// Machine stopped on an unrecoverable fault and rejects every operation
	MachineStateHalted
)

func (s MachineState) String() string {
	switch s {
	case MachineStateOffline:
		return "Offline"
	case MachineStateOnline:
		return "Online"
	case MachineStateExiting:
		return "Exiting"
	case MachineStateHalted:
		return "Halted"
	default:
		return fmt.Sprintf("MachineState(%d)", int(s))
	}
}

// Machine runs one instance of a machine type for an owner. Events can be
// posted from any goroutine, state handlers included; they are processed in
// FIFO order by whichever caller finds the machine idle.
type Machine[T any, M Memento] struct {
	typ       *core.Type[T]
	owner     T
	id        string
	logger    *slog.Logger
	trace     core.TraceFunc
	observers *ObserverManager
	onStopped func(MachineInfo)
	onHalted  func(error)

	mutex        sync.Mutex
	queue        []core.Event
	draining     bool
	machineState MachineState

	engine atomic.Pointer[core.Hsm[T]]

	mementoMutex sync.RWMutex
	memento      M

	// drain goroutine only
	transitionFrom string
}

var _ core.Transitioner = (*Machine[struct{}, *BaseMemento])(nil)

// NewMachine creates an offline machine of the given type for owner.
// The memento is owned by the caller and must not be nil.
func NewMachine[T any, M Memento](typ *core.Type[T], owner T, memento M, opts ...Option) (*Machine[T, M], error) {
	if typ == nil {
		return nil, NewConfigurationError("Machine", "machine type is nil")
	}
	if isNil(memento) {
		return nil, NewConfigurationError("Machine", "memento is nil")
	}

	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	m := &Machine[T, M]{
		typ:          typ,
		owner:        owner,
		id:           cfg.id,
		logger:       cfg.logger.With("machine", cfg.id, "type", typ.Name()),
		trace:        cfg.trace,
		observers:    NewObserverManager(),
		onStopped:    cfg.onStopped,
		onHalted:     cfg.onHalted,
		machineState: MachineStateOffline,
		memento:      memento,
	}
	for _, observer := range cfg.observers {
		m.observers.AddObserver(observer)
	}
	return m, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// ID returns the instance id
func (m *Machine[T, M]) ID() string {
	return m.id
}

// Type returns the machine type
func (m *Machine[T, M]) Type() *core.Type[T] {
	return m.typ
}

// Owner returns the value state handlers run on
func (m *Machine[T, M]) Owner() T {
	return m.owner
}

// MachineState returns the lifecycle state
func (m *Machine[T, M]) MachineState() MachineState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.machineState
}

// AddObserver adds an observer to the machine
func (m *Machine[T, M]) AddObserver(observer Observer) {
	m.observers.AddObserver(observer)
}

// RemoveObserver removes an observer from the machine
func (m *Machine[T, M]) RemoveObserver(observer Observer) {
	m.observers.RemoveObserver(observer)
}

// CurrentState returns the memento. Its workflow is recorded when the machine stops.
func (m *Machine[T, M]) CurrentState() M {
	m.mementoMutex.RLock()
	defer m.mementoMutex.RUnlock()
	return m.memento
}

// SetCurrentState replaces the memento. Only allowed while offline.
func (m *Machine[T, M]) SetCurrentState(memento M) error {
	if isNil(memento) {
		return NewConfigurationError("Machine", "memento is nil")
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.machineState != MachineStateOffline {
		return NewMachineError(ErrCodeMachineNotOffline, "SetCurrentState", ErrNotOffline)
	}
	m.setMemento(memento)
	return nil
}

func (m *Machine[T, M]) setMemento(memento M) {
	m.mementoMutex.Lock()
	defer m.mementoMutex.Unlock()
	m.memento = memento
}

// State returns the current leaf state, Top before the first start
func (m *Machine[T, M]) State() core.StateID {
	engine := m.engine.Load()
	if engine == nil {
		return core.Top
	}
	return engine.State()
}

// CurrentStateName returns the name of the current leaf state
func (m *Machine[T, M]) CurrentStateName() string {
	engine := m.engine.Load()
	if engine == nil {
		return ""
	}
	return engine.StateName()
}

// IsInState reports whether id is the current leaf state or one of its ancestors
func (m *Machine[T, M]) IsInState(id core.StateID) bool {
	engine := m.engine.Load()
	if engine == nil {
		return id == core.Top
	}
	return engine.IsInState(id)
}

// TransitionTo performs a dynamic transition. Only valid inside a state handler.
func (m *Machine[T, M]) TransitionTo(target core.StateID) {
	m.engine.Load().TransitionTo(target)
}

// TransitionToSlot performs a memoized static transition. Only valid inside a state handler.
func (m *Machine[T, M]) TransitionToSlot(target core.StateID, slot core.Slot) {
	m.engine.Load().TransitionToSlot(target, slot)
}

// InitTo selects the initial child. Only valid inside an Init handler.
func (m *Machine[T, M]) InitTo(child core.StateID) {
	m.engine.Load().InitTo(child)
}

// Start brings an offline machine online, seeded from the current memento
func (m *Machine[T, M]) Start() error {
	return m.start("Start", nil)
}

// StartFrom replaces the memento and brings the machine online from it
func (m *Machine[T, M]) StartFrom(memento M) error {
	if isNil(memento) {
		return NewConfigurationError("Machine", "memento is nil")
	}
	return m.start("StartFrom", &memento)
}

func (m *Machine[T, M]) start(operation string, memento *M) error {
	m.mutex.Lock()
	switch m.machineState {
	case MachineStateHalted:
		m.mutex.Unlock()
		return newHaltedError(operation)
	case MachineStateOnline, MachineStateExiting:
		m.mutex.Unlock()
		return NewMachineError(ErrCodeMachineAlreadyStarted, operation, ErrAlreadyStarted)
	}

	if memento != nil {
		m.setMemento(*memento)
	}

	engine := core.New(m.typ, m.owner, core.WithTraceHook(m.onTrace))
	if workflow := m.CurrentState().Workflow(); workflow != "" {
		id, ok := m.typ.Lookup(workflow)
		if !ok {
			m.mutex.Unlock()
			return NewStateNotFoundError(workflow)
		}
		if err := engine.SetState(id); err != nil {
			m.mutex.Unlock()
			return err
		}
	}

	m.engine.Store(engine)
	m.queue = nil
	m.machineState = MachineStateOnline
	m.draining = true
	m.mutex.Unlock()

	m.logger.Info("machine started", "workflow", m.CurrentState().Workflow())
	m.observers.NotifyMachineStarted(m.info())

	return m.drain(engine, engine.Init)
}

// Stop takes the machine offline. Called while events are being processed,
// including from a state handler, it lets the queued events finish first:
// the machine is Exiting when Stop returns and goes Offline once the drain
// ends. Use WithOnStopped to learn when that happens.
func (m *Machine[T, M]) Stop() error {
	m.mutex.Lock()
	switch m.machineState {
	case MachineStateOffline:
		m.mutex.Unlock()
		return newNotStartedError("Stop")
	case MachineStateHalted:
		m.mutex.Unlock()
		return newHaltedError("Stop")
	case MachineStateExiting:
		m.mutex.Unlock()
		return nil
	}

	if m.draining {
		m.machineState = MachineStateExiting
		m.mutex.Unlock()
		return nil
	}

	engine := m.engine.Load()
	m.shutdown(engine)
	m.mutex.Unlock()

	m.stopped(engine)
	return nil
}

// shutdown records the workflow and goes offline. Callers hold m.mutex.
func (m *Machine[T, M]) shutdown(engine *core.Hsm[T]) {
	m.mementoMutex.Lock()
	m.memento.SetWorkflow(engine.StateName())
	m.mementoMutex.Unlock()

	m.queue = nil
	m.draining = false
	m.machineState = MachineStateOffline
}

func (m *Machine[T, M]) stopped(engine *core.Hsm[T]) {
	m.logger.Info("machine stopped", "workflow", engine.StateName())
	info := m.info()
	m.observers.NotifyMachineStopped(info)
	if m.onStopped != nil {
		m.onStopped(info)
	}
}

// Dispatch maps a message to its signal and posts it. A core.Event is posted as is.
func (m *Machine[T, M]) Dispatch(message any) error {
	if e, ok := message.(core.Event); ok {
		return m.DispatchEvent(e)
	}
	e, err := m.typ.Signals().Resolve(message)
	if err != nil {
		return err
	}
	return m.enqueue("Dispatch", e)
}

// DispatchSignal posts an event carrying only a signal
func (m *Machine[T, M]) DispatchSignal(sig core.Signal) error {
	return m.DispatchEvent(core.NewEvent(sig))
}

// DispatchEvent posts an event without message mapping
func (m *Machine[T, M]) DispatchEvent(e core.Event) error {
	if e.Signal().IsReserved() {
		return NewMachineError(ErrCodeInvalidEvent, "Dispatch",
			fmt.Errorf("reserved signal %s cannot be dispatched", e.Signal()))
	}
	return m.enqueue("Dispatch", e)
}

func (m *Machine[T, M]) enqueue(operation string, e core.Event) error {
	m.mutex.Lock()
	switch m.machineState {
	case MachineStateOffline:
		m.mutex.Unlock()
		return newNeedsRestartError(operation)
	case MachineStateHalted:
		m.mutex.Unlock()
		return newHaltedError(operation)
	}

	m.queue = append(m.queue, e)
	if m.draining {
		m.mutex.Unlock()
		return nil
	}
	m.draining = true
	engine := m.engine.Load()
	m.mutex.Unlock()

	return m.drain(engine, nil)
}

// drain runs first, if any, then processes the queue until it is empty.
// Only one drain is active per machine.
func (m *Machine[T, M]) drain(engine *core.Hsm[T], first func()) error {
	if first != nil {
		if err := m.safely(engine, core.ReservedEvent(core.Init), first); err != nil {
			return err
		}
	}

	for {
		m.mutex.Lock()
		if len(m.queue) == 0 {
			if m.machineState == MachineStateExiting {
				m.shutdown(engine)
				m.mutex.Unlock()
				m.stopped(engine)
				return nil
			}
			m.draining = false
			m.mutex.Unlock()
			return nil
		}
		e := m.queue[0]
		m.queue[0] = core.Event{}
		m.queue = m.queue[1:]
		m.mutex.Unlock()

		if err := m.safely(engine, e, func() { engine.Dispatch(e) }); err != nil {
			return err
		}
	}
}

// safely runs fn and halts the machine if it panics
func (m *Machine[T, M]) safely(engine *core.Hsm[T], e core.Event, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = m.halt(engine, e, r)
		}
	}()
	fn()
	return nil
}

func (m *Machine[T, M]) halt(engine *core.Hsm[T], e core.Event, value any) error {
	err := &HandlerPanicError{
		State: m.typ.StateName(engine.Active()),
		Event: m.typ.Signals().Name(e.Signal()),
		Value: value,
	}

	m.mutex.Lock()
	m.machineState = MachineStateHalted
	m.queue = nil
	m.draining = false
	m.mutex.Unlock()

	m.logger.Error("machine halted", "state", err.State, "signal", err.Event, "error", err)
	info := m.info()
	m.observers.NotifyError(err, info)
	m.observers.NotifyMachineHalted(err, info)
	if m.onHalted != nil {
		m.onHalted(err)
	}
	return err
}

func (m *Machine[T, M]) info() MachineInfo {
	return NewMachineInfo(m.id, m.typ.Name(), m.CurrentStateName(), m.typ.Signals())
}

// onTrace forwards engine trace records to the trace hook and the observers
func (m *Machine[T, M]) onTrace(t core.Trace) {
	if m.trace != nil {
		m.trace(t)
	}

	name := m.typ.StateName(t.State)
	if t.Kind == core.TraceDropped {
		m.logger.Debug("event dropped", "signal", m.typ.Signals().Name(t.Event.Signal()), "state", name)
	}
	if m.observers.Len() == 0 {
		return
	}

	info := m.info()
	switch t.Kind {
	case core.TraceEntry:
		m.observers.NotifyStateEnter(name, info)
	case core.TraceExit:
		m.observers.NotifyStateExit(name, info)
	case core.TraceInit:
		m.observers.NotifyStateInit(name, info)
	case core.TraceDispatch:
		m.observers.NotifyEventDispatched(name, t.Event, t.Handled, info)
	case core.TraceTransitionBegin:
		m.transitionFrom = name
	case core.TraceTransitionEnd:
		m.observers.NotifyTransition(m.transitionFrom, name, t.Event, info)
	case core.TraceDropped:
		m.observers.NotifyEventDropped(t.Event, info)
	}
}
