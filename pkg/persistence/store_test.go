package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/qhsm"
)

type doorState struct {
	qhsm.BaseMemento `yaml:",inline"`
	Openings         int `json:"openings" yaml:"openings"`
}

const (
	doorClosed qhsm.StateID = iota + 1
	doorOpen
)

const sigPush = qhsm.UserSignal

type door struct {
	machine *qhsm.Machine[*door, *doorState]
}

var doorType = qhsm.Define[*door]("Door").
	State(doorClosed, "Closed", qhsm.Top, (*door).closed).
	State(doorOpen, "Open", qhsm.Top, (*door).open).
	Initial(doorClosed).
	Signal(sigPush, "Push").
	MustBuild()

func (d *door) closed(e qhsm.Event) qhsm.Result {
	if e.Signal() == sigPush {
		d.machine.TransitionTo(doorOpen)
		return qhsm.Handled()
	}
	return qhsm.Delegate(qhsm.Top)
}

func (d *door) open(e qhsm.Event) qhsm.Result {
	switch e.Signal() {
	case qhsm.Entry:
		d.machine.CurrentState().Openings++
		return qhsm.Handled()
	case sigPush:
		d.machine.TransitionTo(doorClosed)
		return qhsm.Handled()
	}
	return qhsm.Delegate(qhsm.Top)
}

func newDoor(t *testing.T, id string) *door {
	t.Helper()
	d := &door{}
	machine, err := qhsm.NewMachine(doorType, d, &doorState{}, qhsm.WithID(id))
	require.NoError(t, err)
	d.machine = machine
	return d
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	jsonStore, err := NewJSONStore(filepath.Join(t.TempDir(), "json"))
	require.NoError(t, err)
	yamlStore, err := NewYAMLStore(filepath.Join(t.TempDir(), "yaml"))
	require.NoError(t, err)

	return map[string]Store{
		"json":   jsonStore,
		"yaml":   yamlStore,
		"memory": NewMemoryStore(),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			saved := &doorState{BaseMemento: qhsm.BaseMemento{WorkflowName: "Open"}, Openings: 3}
			require.NoError(t, store.Save(ctx, "door-1", saved))

			saved.Openings = 99

			loaded := &doorState{}
			require.NoError(t, store.Load(ctx, "door-1", loaded))
			assert.Equal(t, "Open", loaded.Workflow())
			assert.Equal(t, 3, loaded.Openings)

			require.NoError(t, store.Delete(ctx, "door-1"))
			require.NoError(t, store.Delete(ctx, "door-1"))
			err := store.Load(ctx, "door-1", loaded)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_InvalidIDAndCancelledContext(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Save(context.Background(), "../escape", &doorState{})
			assert.ErrorIs(t, err, ErrInvalidID)
			err = store.Save(context.Background(), "", &doorState{})
			assert.ErrorIs(t, err, ErrInvalidID)

			err = store.Save(cancelled, "door-1", &doorState{})
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestFileStores_Format(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	jsonStore, err := NewJSONStore(dir)
	require.NoError(t, err)
	yamlStore, err := NewYAMLStore(dir)
	require.NoError(t, err)

	memento := &doorState{BaseMemento: qhsm.BaseMemento{WorkflowName: "Closed"}, Openings: 1}
	require.NoError(t, jsonStore.Save(ctx, "door", memento))
	require.NoError(t, yamlStore.Save(ctx, "door", memento))

	data, err := os.ReadFile(filepath.Join(dir, "door.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"workflow": "Closed"`)

	data, err = os.ReadFile(filepath.Join(dir, "door.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "workflow: Closed")
	assert.Contains(t, string(data), "openings: 1")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"), "leftover %s", entry.Name())
	}
}

func TestYAMLStore_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := NewYAMLStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "door.yaml"), []byte("workflow: [unterminated"), 0o644))

	err = store.Load(context.Background(), "door", &doorState{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestCheckpointAndRestore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	d := newDoor(t, "door-7")
	require.NoError(t, d.machine.Start())
	require.NoError(t, d.machine.DispatchSignal(sigPush))
	require.NoError(t, d.machine.Stop())
	require.NoError(t, Checkpoint(ctx, store, d.machine))
	assert.Equal(t, []string{"door-7"}, store.IDs())

	restored := newDoor(t, "door-7b")
	require.NoError(t, Restore(ctx, store, "door-7", restored.machine, &doorState{}))
	require.NoError(t, restored.machine.Start())

	assert.Equal(t, "Open", restored.machine.CurrentStateName())
	// resuming does not re-enter the recorded state
	assert.Equal(t, 1, restored.machine.CurrentState().Openings)

	err := Restore(ctx, store, "door-7", restored.machine, &doorState{})
	assert.ErrorIs(t, err, qhsm.ErrNotOffline)

	err = Restore(ctx, store, "missing", newDoor(t, "x").machine, &doorState{})
	assert.ErrorIs(t, err, ErrNotFound)
}
