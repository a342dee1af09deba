package core

import (
	"fmt"
	"sort"
)

// TypeBuilder assembles a machine type. Misuse is collected and reported by Build.
type TypeBuilder[T any] struct {
	name    string
	states  map[StateID]stateDef[T]
	byName  map[string]StateID
	initial StateID
	mapper  *SignalMapper
	base    *Type[T]
	chains  *ChainStore
	issues  []string
	built   bool
}

// NewType starts the definition of a machine type for owners of type T
func NewType[T any](name string) *TypeBuilder[T] {
	return &TypeBuilder[T]{
		name:    name,
		states:  make(map[StateID]stateDef[T]),
		byName:  make(map[string]StateID),
		initial: none,
		mapper:  newSignalMapper(),
	}
}

func (b *TypeBuilder[T]) fail(format string, args ...any) {
	b.issues = append(b.issues, fmt.Sprintf(format, args...))
}

func (b *TypeBuilder[T]) usable(operation string) bool {
	if b.built {
		b.fail("%s after Build", operation)
		return false
	}
	return true
}

// Extend copies the states, signals and initial state of a base type.
// Static transition slots continue after the slots reserved by the base.
func (b *TypeBuilder[T]) Extend(base *Type[T]) *TypeBuilder[T] {
	if !b.usable("Extend") {
		return b
	}
	if base == nil {
		b.fail("nil base type")
		return b
	}
	if b.base != nil || len(b.states) > 0 || b.chains != nil {
		b.fail("Extend must be the first call on the builder")
		return b
	}

	b.base = base
	for _, def := range base.states[1:] {
		b.states[def.info.ID] = def
		b.byName[def.info.Name] = def.info.ID
	}
	b.initial = base.initial
	b.mapper = base.mapper.clone()
	return b
}

// State registers a state. The parent must be Top or an already registered state.
func (b *TypeBuilder[T]) State(id StateID, name string, parent StateID, handler HandlerFunc[T]) *TypeBuilder[T] {
	if !b.usable("State") {
		return b
	}
	switch {
	case id <= Top:
		b.fail("state id %d must be positive", id)
		return b
	case name == "":
		b.fail("state %d has no name", id)
		return b
	case handler == nil:
		b.fail("state %q has no handler", name)
		return b
	}
	if existing, ok := b.states[id]; ok {
		b.fail("state id %d already registered as %q", id, existing.info.Name)
		return b
	}
	if existing, ok := b.byName[name]; ok {
		b.fail("state name %q already registered with id %d", name, existing)
		return b
	}
	if _, ok := b.states[parent]; parent != Top && !ok {
		b.fail("parent %d of state %q is not registered", parent, name)
		return b
	}

	b.states[id] = stateDef[T]{
		info:    StateInfo{ID: id, Name: name, Parent: parent},
		handler: handler,
	}
	b.byName[name] = id
	return b
}

// Override replaces the handler of a registered state
func (b *TypeBuilder[T]) Override(id StateID, handler HandlerFunc[T]) *TypeBuilder[T] {
	if !b.usable("Override") {
		return b
	}
	def, ok := b.states[id]
	if !ok {
		b.fail("cannot override unknown state %d", id)
		return b
	}
	if handler == nil {
		b.fail("state %q override has no handler", def.info.Name)
		return b
	}
	def.handler = handler
	b.states[id] = def
	return b
}

// Initial selects the initial state, which must be a direct child of Top
func (b *TypeBuilder[T]) Initial(id StateID) *TypeBuilder[T] {
	if b.usable("Initial") {
		b.initial = id
	}
	return b
}

// Signal names a user signal
func (b *TypeBuilder[T]) Signal(sig Signal, name string) *TypeBuilder[T] {
	if !b.usable("Signal") {
		return b
	}
	if err := b.mapper.name(sig, name); err != nil {
		b.fail("%v", err)
	}
	return b
}

// Message maps the Go type of sample to a signal
func (b *TypeBuilder[T]) Message(sample any, sig Signal) *TypeBuilder[T] {
	if !b.usable("Message") {
		return b
	}
	if err := b.mapper.message(sample, sig); err != nil {
		b.fail("%v", err)
	}
	return b
}

// StaticTransition reserves a chain slot for one static transition
func (b *TypeBuilder[T]) StaticTransition() Slot {
	if !b.usable("StaticTransition") {
		return -1
	}
	if b.chains == nil {
		if b.base != nil {
			b.chains = NewChainStore(b.base.chains)
		} else {
			b.chains = NewChainStore()
		}
	}
	slot, err := b.chains.OpenSlot()
	if err != nil {
		b.fail("%v", err)
		return -1
	}
	return slot
}

// Build validates the definition and returns the immutable type
func (b *TypeBuilder[T]) Build() (*Type[T], error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	ids := make([]StateID, 0, len(b.states))
	for id := range b.states {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	states := make([]stateDef[T], len(ids)+1)
	states[Top] = stateDef[T]{info: StateInfo{ID: Top, Name: "Top", Parent: none}}
	byName := make(map[string]StateID, len(ids))
	for _, id := range ids {
		states[id] = b.states[id]
		byName[b.states[id].info.Name] = id
	}

	chains := b.chains
	if chains == nil {
		if b.base != nil {
			chains = NewChainStore(b.base.chains)
		} else {
			chains = NewChainStore()
		}
	}
	chains.ShrinkToActualSize()

	b.built = true
	return &Type[T]{
		name:    b.name,
		states:  states,
		byName:  byName,
		initial: b.initial,
		mapper:  b.mapper,
		chains:  chains,
	}, nil
}

// MustBuild is Build for package level type definitions; it panics on error
func (b *TypeBuilder[T]) MustBuild() *Type[T] {
	typ, err := b.Build()
	if err != nil {
		panic(err)
	}
	return typ
}

// validate checks the type configuration
func (b *TypeBuilder[T]) validate() error {
	if b.built {
		return &DefinitionError{Type: b.name, Issue: "type already built"}
	}
	if len(b.issues) > 0 {
		return &DefinitionError{Type: b.name, Issue: b.issues[0]}
	}
	if b.name == "" {
		return &DefinitionError{Type: b.name, Issue: "type has no name"}
	}
	if len(b.states) == 0 {
		return &DefinitionError{Type: b.name, Issue: "no states defined"}
	}
	for i := 1; i <= len(b.states); i++ {
		if _, ok := b.states[StateID(i)]; !ok {
			return &DefinitionError{Type: b.name, Issue: fmt.Sprintf("state ids are not dense: %d missing", i)}
		}
	}
	if b.initial == none {
		return &DefinitionError{Type: b.name, Issue: "no initial state defined"}
	}
	def, ok := b.states[b.initial]
	if !ok {
		return &DefinitionError{Type: b.name, Issue: fmt.Sprintf("initial state %d does not exist", b.initial)}
	}
	if def.info.Parent != Top {
		return &DefinitionError{Type: b.name, Issue: fmt.Sprintf("initial state %q is not a direct child of Top", def.info.Name)}
	}
	return nil
}
