package qhsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/qhsm/pkg/core"
)

const (
	personAwake StateID = iota + 1
	personHappy
	personElated
	personSad
	personAsleep
)

const (
	sigPoke Signal = iota + UserSignal
	sigTired
	sigNoise
	sigPunch
)

type PokeMessage struct{}

type TiredMessage struct{}

type NoiseMessage struct{}

type PunchMessage struct{}

type personState struct {
	BaseMemento
	DB int `json:"db" yaml:"db"`
}

type person struct {
	machine *Machine[*person, *personState]
	actions []string
}

var personSlots struct {
	awakeToElated Slot
	awakeToAsleep Slot
	happyToSad    Slot
	elatedToSad   Slot
	asleepToSad   Slot
}

var personType = newPersonType()

func newPersonType() *core.Type[*person] {
	b := Define[*person]("Person").
		State(personAwake, "Awake", Top, (*person).awake).
		State(personHappy, "Happy", personAwake, (*person).happy).
		State(personElated, "Elated", personHappy, (*person).elated).
		State(personSad, "Sad", personAwake, (*person).sad).
		State(personAsleep, "Asleep", Top, (*person).asleep).
		Initial(personAwake).
		Signal(sigPoke, "Poke").
		Signal(sigTired, "Tired").
		Signal(sigNoise, "Noise").
		Signal(sigPunch, "Punch").
		Message(PokeMessage{}, sigPoke).
		Message(TiredMessage{}, sigTired).
		Message(NoiseMessage{}, sigNoise).
		Message(PunchMessage{}, sigPunch)

	personSlots.awakeToElated = b.StaticTransition()
	personSlots.awakeToAsleep = b.StaticTransition()
	personSlots.happyToSad = b.StaticTransition()
	personSlots.elatedToSad = b.StaticTransition()
	personSlots.asleepToSad = b.StaticTransition()
	return b.MustBuild()
}

func newPerson(t *testing.T, opts ...Option) *person {
	t.Helper()
	p := &person{}
	machine, err := NewMachine(personType, p, &personState{}, opts...)
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}
	p.machine = machine
	return p
}

func (p *person) do(action string) {
	p.actions = append(p.actions, action)
}

func (p *person) takeActions() []string {
	actions := p.actions
	p.actions = nil
	return actions
}

func (p *person) state() *personState {
	return p.machine.CurrentState()
}

func (p *person) awake(e Event) Result {
	switch e.Signal() {
	case Entry:
		p.do("Stretch")
		p.state().DB = 0
		return Handled()
	case Exit:
		p.do("Yawn")
		return Handled()
	case Init:
		p.machine.InitTo(personHappy)
		return Handled()
	case sigNoise:
		p.machine.TransitionToSlot(personElated, personSlots.awakeToElated)
		return Handled()
	case sigTired:
		p.machine.TransitionToSlot(personAsleep, personSlots.awakeToAsleep)
		return Handled()
	}
	return Delegate(Top)
}

func (p *person) happy(e Event) Result {
	switch e.Signal() {
	case Entry:
		p.do("Smile")
		return Handled()
	case sigPoke:
		p.do("Laugh")
		return Handled()
	case sigPunch:
		p.do("Scream")
		p.machine.TransitionToSlot(personSad, personSlots.happyToSad)
		return Handled()
	}
	return Unhandled()
}

func (p *person) elated(e Event) Result {
	switch e.Signal() {
	case Entry:
		p.do("Laugh")
		return Handled()
	case Exit:
		p.do("Stretch")
		return Handled()
	case sigPunch:
		p.do("Sigh")
		p.machine.TransitionToSlot(personSad, personSlots.elatedToSad)
		return Handled()
	}
	return Delegate(personHappy)
}

func (p *person) sad(e Event) Result {
	switch e.Signal() {
	case Entry:
		p.do("Frown")
		return Handled()
	case Exit:
		p.do("Sigh")
		return Handled()
	case sigPoke:
		p.do("Scream")
		return Handled()
	}
	return Unhandled()
}

func (p *person) asleep(e Event) Result {
	switch e.Signal() {
	case Entry:
		p.do("Snore")
		p.state().DB = 0
		return Handled()
	case sigPoke:
		p.machine.TransitionTo(personAsleep)
		return Handled()
	case sigPunch:
		p.do("Scream")
		p.machine.TransitionToSlot(personSad, personSlots.asleepToSad)
		return Handled()
	case sigTired:
		if err := p.machine.Stop(); err != nil {
			panic(err)
		}
		return Handled()
	case sigNoise:
		p.state().DB += 20
		if p.state().DB >= 40 {
			p.machine.TransitionTo(personAwake)
		}
		return Handled()
	}
	return Delegate(Top)
}

func TestMoodyPersonScenario(t *testing.T) {
	p := newPerson(t)
	require.NoError(t, p.machine.Start())

	AssertState(t, p.machine, "Happy")
	AssertMachineState(t, p.machine, MachineStateOnline)
	if !p.machine.IsInState(personAwake) || !p.machine.IsInState(Top) {
		t.Error("Expected Happy to be nested in Awake under Top")
	}
	AssertStrings(t, []string{"Stretch", "Smile"}, p.takeActions())

	steps := []struct {
		message any
		state   string
		actions []string
		db      int
	}{
		{NoiseMessage{}, "Elated", []string{"Smile", "Laugh"}, 0},
		{PunchMessage{}, "Sad", []string{"Sigh", "Stretch", "Frown"}, 0},
		{PokeMessage{}, "Sad", []string{"Scream"}, 0},
		{TiredMessage{}, "Asleep", []string{"Sigh", "Yawn", "Snore"}, 0},
		{NoiseMessage{}, "Asleep", nil, 20},
		{NoiseMessage{}, "Happy", []string{"Stretch", "Smile"}, 0},
		{&NoiseMessage{}, "Elated", []string{"Smile", "Laugh"}, 0},
	}

	for i, step := range steps {
		if err := p.machine.Dispatch(step.message); err != nil {
			t.Fatalf("step %d: dispatch %T failed: %v", i, step.message, err)
		}
		AssertState(t, p.machine, step.state)
		AssertStrings(t, step.actions, p.takeActions())
		if p.state().DB != step.db {
			t.Errorf("step %d: expected DB %d, got %d", i, step.db, p.state().DB)
		}
	}
}

func TestMoodyPersonReplayMatchesFirstRun(t *testing.T) {
	script := []any{
		NoiseMessage{}, PunchMessage{}, PokeMessage{}, TiredMessage{},
		PokeMessage{}, PunchMessage{}, TiredMessage{}, NoiseMessage{}, NoiseMessage{},
	}

	run := func() ([]string, []Trace) {
		var traces []Trace
		p := newPerson(t, WithTrace(func(tr Trace) {
			switch tr.Kind {
			case TraceEntry, TraceExit, TraceInit:
				traces = append(traces, tr)
			}
		}))
		require.NoError(t, p.machine.Start())
		for _, msg := range script {
			require.NoError(t, p.machine.Dispatch(msg))
		}
		return p.actions, traces
	}

	firstActions, firstTraces := run()
	secondActions, secondTraces := run()

	assert.Equal(t, firstActions, secondActions)
	assert.Equal(t, firstTraces, secondTraces)
	for _, slot := range []Slot{personSlots.awakeToElated, personSlots.awakeToAsleep, personSlots.elatedToSad, personSlots.asleepToSad} {
		assert.NotNil(t, personType.Chains().Load(slot))
	}
}

func TestMoodyPersonSelfTransition(t *testing.T) {
	p := newPerson(t)
	require.NoError(t, p.machine.Start())
	require.NoError(t, p.machine.Dispatch(TiredMessage{}))
	p.takeActions()

	require.NoError(t, p.machine.Dispatch(PokeMessage{}))
	AssertState(t, p.machine, "Asleep")
	// Asleep has no exit action; the entry action runs again
	AssertStrings(t, []string{"Snore"}, p.takeActions())
}

func TestMoodyPersonStopFromHandler(t *testing.T) {
	var stopped []MachineInfo
	observer := NewTestObserver()
	p := newPerson(t, WithObserver(observer), WithOnStopped(func(info MachineInfo) {
		stopped = append(stopped, info)
	}))
	require.NoError(t, p.machine.Start())
	require.NoError(t, p.machine.Dispatch(TiredMessage{}))

	require.NoError(t, p.machine.Dispatch(TiredMessage{}))

	AssertMachineState(t, p.machine, MachineStateOffline)
	if len(stopped) != 1 {
		t.Fatalf("Expected stopped to fire once, got %d", len(stopped))
	}
	if observer.StoppedCount() != 1 {
		t.Errorf("Expected observer stopped once, got %d", observer.StoppedCount())
	}
	if got := p.state().Workflow(); got != "Asleep" {
		t.Errorf("Expected workflow Asleep, got %s", got)
	}

	err := p.machine.Dispatch(PokeMessage{})
	if !errors.Is(err, ErrNeedsRestart) {
		t.Errorf("Expected ErrNeedsRestart, got %v", err)
	}

	// restart resumes in the recorded state without re-entering it
	p.takeActions()
	require.NoError(t, p.machine.Start())
	AssertState(t, p.machine, "Asleep")
	AssertStrings(t, nil, p.takeActions())

	require.NoError(t, p.machine.Dispatch(PunchMessage{}))
	AssertState(t, p.machine, "Sad")
	AssertStrings(t, []string{"Scream", "Stretch", "Frown"}, p.takeActions())
}

func TestMoodyPersonUnmappedMessage(t *testing.T) {
	p := newPerson(t)
	require.NoError(t, p.machine.Start())
	p.takeActions()

	err := p.machine.Dispatch("shout")
	if !errors.Is(err, ErrUnmappedMessage) {
		t.Fatalf("Expected ErrUnmappedMessage, got %v", err)
	}
	if GetErrorCode(err) != ErrCodeUnmappedMessage {
		t.Errorf("Expected code %d, got %d", ErrCodeUnmappedMessage, GetErrorCode(err))
	}
	AssertState(t, p.machine, "Happy")
	AssertStrings(t, nil, p.takeActions())
}

func TestMoodyPersonStartFromMemento(t *testing.T) {
	p := newPerson(t)
	require.NoError(t, p.machine.StartFrom(&personState{BaseMemento: BaseMemento{WorkflowName: "Sad"}, DB: 7}))

	AssertState(t, p.machine, "Sad")
	AssertStrings(t, nil, p.takeActions())
	assert.Equal(t, 7, p.state().DB)

	require.NoError(t, p.machine.Dispatch(TiredMessage{}))
	AssertState(t, p.machine, "Asleep")
	AssertStrings(t, []string{"Sigh", "Yawn", "Snore"}, p.takeActions())
}

func TestMoodyPersonStartFromComposite(t *testing.T) {
	p := newPerson(t)
	require.NoError(t, p.machine.StartFrom(&personState{BaseMemento: BaseMemento{WorkflowName: "Awake"}}))

	// seeding does not enter Awake, its initial transition still runs
	AssertState(t, p.machine, "Happy")
	AssertStrings(t, []string{"Smile"}, p.takeActions())
}

func TestMoodyPersonStartFromUnknownWorkflow(t *testing.T) {
	p := newPerson(t)
	err := p.machine.StartFrom(&personState{BaseMemento: BaseMemento{WorkflowName: "Grumpy"}})

	if !IsStateError(err) {
		t.Fatalf("Expected StateError, got %v", err)
	}
	if GetErrorCode(err) != ErrCodeStateNotFound {
		t.Errorf("Expected code %d, got %d", ErrCodeStateNotFound, GetErrorCode(err))
	}
	AssertMachineState(t, p.machine, MachineStateOffline)
}
