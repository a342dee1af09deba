package qhsm

// Memento is the caller-owned record of a machine's persistent state.
// Workflow holds the name of the current leaf state; an empty workflow
// means the machine type's initial state.
type Memento interface {
	Workflow() string
	SetWorkflow(name string)
}

// BaseMemento is an embeddable Memento implementation
type BaseMemento struct {
	WorkflowName string `json:"workflow" yaml:"workflow"`
}

var _ Memento = (*BaseMemento)(nil)

// Workflow returns the recorded state name
func (m *BaseMemento) Workflow() string {
	return m.WorkflowName
}

// SetWorkflow records the state name
func (m *BaseMemento) SetWorkflow(name string) {
	m.WorkflowName = name
}
