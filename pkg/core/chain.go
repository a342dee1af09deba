package core

import (
	"fmt"
	"strings"
)

// Step is one recorded action of a transition
type Step struct {
	State StateID
	Phase Signal
}

// String renders the step as Phase(State)
func (s Step) String() string {
	return fmt.Sprintf("%s(%s)", s.Phase, s.State)
}

// Chain is an immutable recorded sequence of transition steps
type Chain struct {
	steps []Step
}

// NewChain creates a chain from the given steps
func NewChain(steps ...Step) *Chain {
	copied := make([]Step, len(steps))
	copy(copied, steps)
	return &Chain{steps: copied}
}

// Len returns the number of steps
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.steps)
}

// At returns the step at index i
func (c *Chain) At(i int) Step {
	return c.steps[i]
}

// Last returns the final step of the chain
func (c *Chain) Last() (Step, bool) {
	if c.Len() == 0 {
		return Step{}, false
	}
	return c.steps[len(c.steps)-1], true
}

// Steps returns a copy of the recorded steps
func (c *Chain) Steps() []Step {
	if c == nil {
		return nil
	}
	result := make([]Step, len(c.steps))
	copy(result, c.steps)
	return result
}

// String renders the chain as a comma separated list of steps
func (c *Chain) String() string {
	parts := make([]string, 0, c.Len())
	for _, step := range c.Steps() {
		parts = append(parts, step.String())
	}
	return strings.Join(parts, ", ")
}

// recorder collects the steps of a transition executed for the first time
type recorder struct {
	steps []Step
}

func (r *recorder) record(state StateID, phase Signal) {
	r.steps = append(r.steps, Step{State: state, Phase: phase})
}

func (r *recorder) last() (Step, bool) {
	if len(r.steps) == 0 {
		return Step{}, false
	}
	return r.steps[len(r.steps)-1], true
}

func (r *recorder) chain() *Chain {
	return &Chain{steps: r.steps}
}
