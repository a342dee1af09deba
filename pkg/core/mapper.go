package core

import (
	"fmt"
	"reflect"
	"sort"
)

// SignalMapper resolves message values to events and names signals.
// It is built once per machine type and read concurrently afterwards.
type SignalMapper struct {
	names    map[Signal]string
	messages map[reflect.Type]Signal
}

func newSignalMapper() *SignalMapper {
	return &SignalMapper{
		names:    make(map[Signal]string),
		messages: make(map[reflect.Type]Signal),
	}
}

func (m *SignalMapper) clone() *SignalMapper {
	c := newSignalMapper()
	for sig, name := range m.names {
		c.names[sig] = name
	}
	for typ, sig := range m.messages {
		c.messages[typ] = sig
	}
	return c
}

func (m *SignalMapper) name(sig Signal, name string) error {
	if sig < UserSignal {
		return fmt.Errorf("signal %d is reserved", sig)
	}
	if existing, ok := m.names[sig]; ok && existing != name {
		return fmt.Errorf("signal %d already named %q", sig, existing)
	}
	m.names[sig] = name
	return nil
}

func (m *SignalMapper) message(sample any, sig Signal) error {
	if sample == nil {
		return fmt.Errorf("nil message sample for signal %s", m.Name(sig))
	}
	if sig < UserSignal {
		return fmt.Errorf("message %T cannot map to reserved signal %s", sample, sig)
	}
	typ := reflect.TypeOf(sample)
	if existing, ok := m.messages[typ]; ok && existing != sig {
		return fmt.Errorf("message %s already mapped to %s", typ, m.Name(existing))
	}
	m.messages[typ] = sig
	return nil
}

// Resolve builds the event for a message value
func (m *SignalMapper) Resolve(message any) (Event, error) {
	if message == nil {
		return Event{}, &UnmappedMessageError{Type: "<nil>"}
	}
	typ := reflect.TypeOf(message)
	if sig, ok := m.messages[typ]; ok {
		return NewMessageEvent(sig, message), nil
	}
	if typ.Kind() == reflect.Pointer {
		if sig, ok := m.messages[typ.Elem()]; ok {
			return NewMessageEvent(sig, message), nil
		}
	}
	return Event{}, &UnmappedMessageError{Type: typ.String()}
}

// Lookup returns the signal registered for the message type
func (m *SignalMapper) Lookup(message any) (Signal, bool) {
	e, err := m.Resolve(message)
	if err != nil {
		return 0, false
	}
	return e.Signal(), true
}

// Name returns the human readable name of a signal
func (m *SignalMapper) Name(sig Signal) string {
	if sig.IsReserved() {
		return sig.String()
	}
	if name, ok := m.names[sig]; ok {
		return name
	}
	return sig.String()
}

// Signals returns the named user signals in ascending order
func (m *SignalMapper) Signals() []Signal {
	result := make([]Signal, 0, len(m.names))
	for sig := range m.names {
		result = append(result, sig)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
