package core

type stateDef[T any] struct {
	info    StateInfo
	handler HandlerFunc[T]
}

// Type is an immutable machine type: the state registry, the parent table,
// the initial state, the signal mapper and the transition chain store shared
// by all instances.
type Type[T any] struct {
	name    string
	states  []stateDef[T]
	byName  map[string]StateID
	initial StateID
	mapper  *SignalMapper
	chains  *ChainStore
}

// Name returns the type name
func (t *Type[T]) Name() string {
	return t.name
}

// Initial returns the initial state, always a direct child of Top
func (t *Type[T]) Initial() StateID {
	return t.initial
}

// Signals returns the signal mapper of the type
func (t *Type[T]) Signals() *SignalMapper {
	return t.mapper
}

// Chains returns the transition chain store of the type
func (t *Type[T]) Chains() *ChainStore {
	return t.chains
}

// Contains reports whether id names a state of the type, Top included
func (t *Type[T]) Contains(id StateID) bool {
	return id >= Top && int(id) < len(t.states)
}

// Len returns the number of states, Top excluded
func (t *Type[T]) Len() int {
	return len(t.states) - 1
}

// States returns the registered states in id order, Top excluded
func (t *Type[T]) States() []StateInfo {
	result := make([]StateInfo, 0, len(t.states)-1)
	for _, def := range t.states[1:] {
		result = append(result, def.info)
	}
	return result
}

// StateName returns the registered name of a state
func (t *Type[T]) StateName(id StateID) string {
	if !t.Contains(id) {
		return id.String()
	}
	return t.states[id].info.Name
}

// Lookup finds a state by name
func (t *Type[T]) Lookup(name string) (StateID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Parent returns the parent of a state. Top has no parent.
func (t *Type[T]) Parent(id StateID) StateID {
	if id == Top || !t.Contains(id) {
		return none
	}
	return t.states[id].info.Parent
}

// Children returns the direct children of a state in id order
func (t *Type[T]) Children(id StateID) []StateID {
	var result []StateID
	for _, def := range t.states[1:] {
		if def.info.Parent == id {
			result = append(result, def.info.ID)
		}
	}
	return result
}

// Depth returns the number of ancestors between the state and Top
func (t *Type[T]) Depth(id StateID) int {
	depth := 0
	for s := t.Parent(id); s != Top && s != none; s = t.Parent(s) {
		depth++
	}
	return depth
}

// IsAncestor reports whether ancestor lies on the parent chain of id, id included
func (t *Type[T]) IsAncestor(ancestor, id StateID) bool {
	for s := id; s != none; s = t.Parent(s) {
		if s == ancestor {
			return true
		}
	}
	return false
}

func (t *Type[T]) handler(id StateID) HandlerFunc[T] {
	return t.states[id].handler
}
