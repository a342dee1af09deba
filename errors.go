package qhsm

import (
	"errors"
	"fmt"

	"github.com/anggasct/qhsm/pkg/core"
)

// ErrorCode represents specific error conditions of a machine
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// State was not found in the machine type
	ErrCodeStateNotFound
	// Message type has no signal mapping
	ErrCodeUnmappedMessage
	// Event is invalid for the machine
	ErrCodeInvalidEvent
	// Machine is not online
	ErrCodeMachineNotStarted
	// Machine is already started
	ErrCodeMachineAlreadyStarted
	// Machine halted after an unrecoverable fault
	ErrCodeMachineHalted
	// Operation requires an offline machine
	ErrCodeMachineNotOffline
	// A state handler panicked
	ErrCodeHandlerPanic
	// Machine configuration is invalid
	ErrCodeInvalidConfiguration
)

var (
	// ErrNeedsRestart is returned when events are posted to an offline machine
	ErrNeedsRestart = errors.New("machine is offline and needs a restart")

	// ErrNotStarted is returned when stopping a machine that is not running
	ErrNotStarted = errors.New("machine is not started")

	// ErrHalted is returned by every operation on a halted machine
	ErrHalted = errors.New("machine is halted")

	// ErrAlreadyStarted is returned when starting a machine that is not offline
	ErrAlreadyStarted = errors.New("machine is already started")

	// ErrNotOffline is returned when seeding a machine that is not offline
	ErrNotOffline = errors.New("machine is not offline")
)

// StateError represents state-related errors
type StateError struct {
	Code    ErrorCode
	State   string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error [%s]: %s", e.State, e.Message)
}

// NewStateNotFoundError creates a new state not found error
func NewStateNotFoundError(state string) *StateError {
	return &StateError{
		Code:    ErrCodeStateNotFound,
		State:   state,
		Message: fmt.Sprintf("state '%s' not found", state),
	}
}

// ConfigurationError represents machine configuration issues
type ConfigurationError struct {
	Component string
	Issue     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Issue)
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(component, issue string) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Issue:     issue,
	}
}

// MachineError represents machine lifecycle errors
type MachineError struct {
	Code      ErrorCode
	Operation string
	Err       error
}

func (e *MachineError) Error() string {
	return fmt.Sprintf("machine error during %s: %v", e.Operation, e.Err)
}

func (e *MachineError) Unwrap() error {
	return e.Err
}

// NewMachineError creates a new machine error
func NewMachineError(code ErrorCode, operation string, err error) *MachineError {
	return &MachineError{
		Code:      code,
		Operation: operation,
		Err:       err,
	}
}

func newNeedsRestartError(operation string) *MachineError {
	return NewMachineError(ErrCodeMachineNotStarted, operation, ErrNeedsRestart)
}

func newNotStartedError(operation string) *MachineError {
	return NewMachineError(ErrCodeMachineNotStarted, operation, ErrNotStarted)
}

func newHaltedError(operation string) *MachineError {
	return NewMachineError(ErrCodeMachineHalted, operation, ErrHalted)
}

// HandlerPanicError reports a panic that escaped a state handler and halted the machine
type HandlerPanicError struct {
	// State names the state whose handler was running, which may be an
	// ancestor of the current leaf or a state entered mid-transition
	State string
	Event string
	Value any
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("handler panic in state '%s' on %s: %v", e.State, e.Event, e.Value)
}

// Unwrap returns the panic value when it is an error
func (e *HandlerPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsStateError checks if an error is a StateError
func IsStateError(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}

// IsMachineError checks if an error is a MachineError
func IsMachineError(err error) bool {
	var target *MachineError
	return errors.As(err, &target)
}

// IsConfigurationError checks if an error is a ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsHandlerPanicError checks if an error is a HandlerPanicError
func IsHandlerPanicError(err error) bool {
	var target *HandlerPanicError
	return errors.As(err, &target)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var (
		stateErr   *StateError
		machineErr *MachineError
		panicErr   *HandlerPanicError
		configErr  *ConfigurationError
	)
	switch {
	case err == nil:
		return ErrCodeNone
	case errors.As(err, &stateErr):
		return stateErr.Code
	case errors.As(err, &machineErr):
		return machineErr.Code
	case errors.As(err, &panicErr):
		return ErrCodeHandlerPanic
	case errors.As(err, &configErr):
		return ErrCodeInvalidConfiguration
	case errors.Is(err, core.ErrUnmappedMessage):
		return ErrCodeUnmappedMessage
	default:
		return ErrCodeNone
	}
}
