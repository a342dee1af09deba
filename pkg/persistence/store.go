// Package persistence provides stores for machine mementos. Stores are
// explicit: nothing is saved unless the caller saves it.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anggasct/qhsm"
)

var (
	// ErrNotFound is returned when no memento is stored under an id
	ErrNotFound = errors.New("memento not found")

	// ErrInvalidID is returned for ids that cannot name a record
	ErrInvalidID = errors.New("invalid memento id")
)

// Store saves and loads memento records by id
type Store interface {
	// Save stores memento under id, replacing any previous record
	Save(ctx context.Context, id string, memento any) error

	// Load decodes the record stored under id into the value into points to
	Load(ctx context.Context, id string, into any) error

	// Delete removes the record; deleting a missing id is not an error
	Delete(ctx context.Context, id string) error
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Checkpoint saves the memento of machine under its instance id. The
// workflow of a running machine is the one recorded at its last stop.
func Checkpoint[T any, M qhsm.Memento](ctx context.Context, store Store, machine *qhsm.Machine[T, M]) error {
	return store.Save(ctx, machine.ID(), machine.CurrentState())
}

// Restore loads the record stored under id into memento and installs it
// on the offline machine, ready for Start
func Restore[T any, M qhsm.Memento](ctx context.Context, store Store, id string, machine *qhsm.Machine[T, M], memento M) error {
	if err := store.Load(ctx, id, memento); err != nil {
		return err
	}
	return machine.SetCurrentState(memento)
}
