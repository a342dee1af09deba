package observers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anggasct/qhsm"
)

const (
	lampOff qhsm.StateID = iota + 1
	lampOn
	lampDim
	lampBright
)

const (
	sigToggle qhsm.Signal = iota + qhsm.UserSignal
	sigBrighten
	sigUnknown
)

type lamp struct {
	machine *qhsm.Machine[*lamp, *qhsm.BaseMemento]
}

var lampType = qhsm.Define[*lamp]("Lamp").
	State(lampOff, "Off", qhsm.Top, (*lamp).off).
	State(lampOn, "On", qhsm.Top, (*lamp).on).
	State(lampDim, "Dim", lampOn, (*lamp).dim).
	State(lampBright, "Bright", lampOn, (*lamp).bright).
	Initial(lampOff).
	Signal(sigToggle, "Toggle").
	Signal(sigBrighten, "Brighten").
	Signal(sigUnknown, "Unknown").
	MustBuild()

func (l *lamp) off(e qhsm.Event) qhsm.Result {
	switch e.Signal() {
	case qhsm.Entry, qhsm.Exit:
		return qhsm.Handled()
	case sigToggle:
		l.machine.TransitionTo(lampOn)
		return qhsm.Handled()
	}
	return qhsm.Delegate(qhsm.Top)
}

func (l *lamp) on(e qhsm.Event) qhsm.Result {
	switch e.Signal() {
	case qhsm.Entry, qhsm.Exit:
		return qhsm.Handled()
	case qhsm.Init:
		l.machine.InitTo(lampDim)
		return qhsm.Handled()
	case sigToggle:
		l.machine.TransitionTo(lampOff)
		return qhsm.Handled()
	}
	return qhsm.Unhandled()
}

func (l *lamp) dim(e qhsm.Event) qhsm.Result {
	switch e.Signal() {
	case qhsm.Entry, qhsm.Exit:
		return qhsm.Handled()
	case sigBrighten:
		l.machine.TransitionTo(lampBright)
		return qhsm.Handled()
	}
	return qhsm.Unhandled()
}

func (l *lamp) bright(e qhsm.Event) qhsm.Result {
	switch e.Signal() {
	case qhsm.Entry, qhsm.Exit:
		return qhsm.Handled()
	}
	return qhsm.Unhandled()
}

// runLamp starts a lamp and drives it Off -> Dim -> Bright -> Off, then
// posts a signal nobody handles
func runLamp(t *testing.T, observers ...qhsm.Observer) *lamp {
	t.Helper()
	l := &lamp{}
	opts := []qhsm.Option{qhsm.WithID("lamp-1")}
	for _, o := range observers {
		opts = append(opts, qhsm.WithObserver(o))
	}
	machine, err := qhsm.NewMachine(lampType, l, &qhsm.BaseMemento{}, opts...)
	require.NoError(t, err)
	l.machine = machine

	require.NoError(t, machine.Start())
	for _, sig := range []qhsm.Signal{sigToggle, sigBrighten, sigToggle, sigUnknown} {
		require.NoError(t, machine.DispatchSignal(sig))
	}
	return l
}
