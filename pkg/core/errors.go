package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedHierarchy signals a programming defect in a machine type:
	// no least common ancestor exists or an initial transition skipped a level.
	ErrMalformedHierarchy = errors.New("malformed state hierarchy")

	// ErrAlreadyInitialized is raised when Init runs twice on one engine
	ErrAlreadyInitialized = errors.New("hsm already initialized")

	// ErrNotInitialized is raised when an engine is dispatched to before Init
	ErrNotInitialized = errors.New("hsm not initialized")

	// ErrUnmappedMessage is returned when a message type has no signal
	ErrUnmappedMessage = errors.New("unmapped message type")

	// ErrInvalidDefinition is returned by the type builder
	ErrInvalidDefinition = errors.New("invalid machine type definition")

	// ErrStoreSealed is returned when a slot is requested after construction
	ErrStoreSealed = errors.New("transition chain store is sealed")

	// ErrUnknownState is returned for state ids or names not in the type
	ErrUnknownState = errors.New("unknown state")
)

// HierarchyError describes where a malformed hierarchy was detected
type HierarchyError struct {
	Source StateID
	Target StateID
	Reason string
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("%v [%s->%s]: %s", ErrMalformedHierarchy, e.Source, e.Target, e.Reason)
}

func (e *HierarchyError) Unwrap() error {
	return ErrMalformedHierarchy
}

// UnmappedMessageError names the message type that could not be resolved
type UnmappedMessageError struct {
	Type string
}

func (e *UnmappedMessageError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnmappedMessage, e.Type)
}

func (e *UnmappedMessageError) Unwrap() error {
	return ErrUnmappedMessage
}

// DefinitionError reports a builder misuse
type DefinitionError struct {
	Type  string
	Issue string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%v %q: %s", ErrInvalidDefinition, e.Type, e.Issue)
}

func (e *DefinitionError) Unwrap() error {
	return ErrInvalidDefinition
}

// IsHierarchyError checks if an error is a HierarchyError
func IsHierarchyError(err error) bool {
	var target *HierarchyError
	return errors.As(err, &target)
}
