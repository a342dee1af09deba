package observers

import (
	"errors"
	"fmt"

	"github.com/anggasct/qhsm"
)

// StateLookup resolves state names of a machine type. *core.Type satisfies it.
type StateLookup interface {
	Name() string
	Lookup(name string) (qhsm.StateID, bool)
}

// ValidationBuilder builds a ValidationObserver whose rules are checked
// against the states of a machine type
type ValidationBuilder struct {
	observer *ValidationObserver
	typ      StateLookup
	errs     []error
}

// NewValidationBuilder creates a new validation builder for typ
func NewValidationBuilder(typ StateLookup) *ValidationBuilder {
	return &ValidationBuilder{
		observer: NewValidationObserver(),
		typ:      typ,
	}
}

func (v *ValidationBuilder) check(name string) bool {
	if _, ok := v.typ.Lookup(name); !ok {
		v.errs = append(v.errs, fmt.Errorf("state '%s' is not defined in '%s'", name, v.typ.Name()))
		return false
	}
	return true
}

// ExpectState adds an expected state to validation
func (v *ValidationBuilder) ExpectState(stateName string) *ValidationBuilder {
	if v.check(stateName) {
		v.observer.AddExpectedState(stateName)
	}
	return v
}

// AllowTransition adds an allowed transition to validation
func (v *ValidationBuilder) AllowTransition(from, to string) *ValidationBuilder {
	fromOK := v.check(from)
	toOK := v.check(to)
	if fromOK && toOK {
		v.observer.AddAllowedTransition(from, to)
	}
	return v
}

// Validate returns every rule that names an unknown state
func (v *ValidationBuilder) Validate() error {
	return errors.Join(v.errs...)
}

// Build returns the validation observer, or the rule errors
func (v *ValidationBuilder) Build() (*ValidationObserver, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v.observer, nil
}
