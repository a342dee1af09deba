package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/anggasct/qhsm"
)

// Hierarchy is the part of a machine type a diagram is drawn from.
// *core.Type satisfies it for every owner type.
type Hierarchy interface {
	Name() string
	Initial() qhsm.StateID
	States() []qhsm.StateInfo
}

// Transition is one edge of a diagram
type Transition struct {
	From  string
	To    string
	Label string
}

// DOTGenerator generates Graphviz DOT format representations of machine types.
// Transitions live in handler code, so edges come from AddTransition or from
// a TransitionRecorder attached to running machines.
type DOTGenerator struct {
	hierarchy   Hierarchy
	options     DOTOptions
	transitions []Transition
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowLabels          bool
	RankDirection       string // "TB", "LR", "BT", "RL"
	NodeShape           string
	CompositeStateStyle string
	// HighlightState marks a state, typically the current one
	HighlightState string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowLabels:          true,
		RankDirection:       "TB",
		NodeShape:           "box",
		CompositeStateStyle: "rounded,filled",
	}
}

// NewDOTGenerator creates a new DOT generator for the given machine type
func NewDOTGenerator(hierarchy Hierarchy, options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator{
		hierarchy: hierarchy,
		options:   opts,
	}
}

// AddTransition adds an edge between two states
func (g *DOTGenerator) AddTransition(from, to, label string) *DOTGenerator {
	g.transitions = append(g.transitions, Transition{From: from, To: to, Label: label})
	return g
}

// AddRecorded adds every transition a recorder has observed
func (g *DOTGenerator) AddRecorded(recorder *TransitionRecorder) *DOTGenerator {
	g.transitions = append(g.transitions, recorder.Transitions()...)
	return g
}

// Generate creates a DOT representation of the machine type
func (g *DOTGenerator) Generate() (string, error) {
	if g.hierarchy == nil {
		return "", fmt.Errorf("no machine type to draw")
	}
	states := g.hierarchy.States()
	if len(states) == 0 {
		return "", fmt.Errorf("machine type %q has no states", g.hierarchy.Name())
	}

	names := make(map[string]bool, len(states))
	children := make(map[qhsm.StateID][]qhsm.StateInfo)
	for _, state := range states {
		names[state.Name] = true
		children[state.Parent] = append(children[state.Parent], state)
	}

	var dot strings.Builder

	dot.WriteString("digraph StateMachine {\n")
	fmt.Fprintf(&dot, "  label=%q;\n", g.hierarchy.Name())
	fmt.Fprintf(&dot, "  rankdir=%s;\n", g.options.RankDirection)
	dot.WriteString("  compound=true;\n")
	fmt.Fprintf(&dot, "  node [shape=%s];\n", g.options.NodeShape)
	dot.WriteString("  edge [fontsize=10];\n\n")

	dot.WriteString("  // States\n")
	g.generateStates(&dot, children, qhsm.Top, "  ")

	dot.WriteString("\n  // Transitions\n")
	dot.WriteString("  \"__initial\" [shape=point];\n")
	fmt.Fprintf(&dot, "  \"__initial\" -> %q;\n", g.stateName(g.hierarchy.Initial(), states))
	if err := g.generateTransitions(&dot, names); err != nil {
		return "", fmt.Errorf("failed to generate transitions: %w", err)
	}

	dot.WriteString("}\n")

	return dot.String(), nil
}

func (g *DOTGenerator) stateName(id qhsm.StateID, states []qhsm.StateInfo) string {
	for _, state := range states {
		if state.ID == id {
			return state.Name
		}
	}
	return id.String()
}

// generateStates writes the children of parent, composites as clusters
func (g *DOTGenerator) generateStates(dot *strings.Builder, children map[qhsm.StateID][]qhsm.StateInfo, parent qhsm.StateID, indent string) {
	for _, state := range children[parent] {
		nested := children[state.ID]
		if len(nested) == 0 {
			g.generateStateNode(dot, state, indent, false)
			continue
		}

		fmt.Fprintf(dot, "%ssubgraph %q {\n", indent, "cluster_"+state.Name)
		fmt.Fprintf(dot, "%s  label=%q;\n", indent, state.Name)
		fmt.Fprintf(dot, "%s  style=%q;\n", indent, g.options.CompositeStateStyle)
		fmt.Fprintf(dot, "%s  fillcolor=lightcyan;\n", indent)
		g.generateStateNode(dot, state, indent+"  ", true)
		g.generateStates(dot, children, state.ID, indent+"  ")
		fmt.Fprintf(dot, "%s}\n", indent)
	}
}

// generateStateNode generates a DOT node for a single state
func (g *DOTGenerator) generateStateNode(dot *strings.Builder, state qhsm.StateInfo, indent string, composite bool) {
	shape := g.options.NodeShape
	fillColor := "lightblue"
	label := state.Name

	if composite {
		shape = "plaintext"
		fillColor = "lightcyan"
	}
	if state.ID == g.hierarchy.Initial() {
		fillColor = "lightgreen"
		label += "\\n(initial)"
	}

	extra := ""
	if g.options.HighlightState != "" && state.Name == g.options.HighlightState {
		fillColor = "gold"
		extra = " penwidth=2"
	}

	fmt.Fprintf(dot, "%s%q [shape=%s style=\"filled\" fillcolor=%s label=\"%s\"%s];\n",
		indent, state.Name, shape, fillColor, label, extra)
}

// generateTransitions generates DOT edges in a stable order
func (g *DOTGenerator) generateTransitions(dot *strings.Builder, names map[string]bool) error {
	transitions := append([]Transition(nil), g.transitions...)
	sort.SliceStable(transitions, func(i, j int) bool {
		if transitions[i].From != transitions[j].From {
			return transitions[i].From < transitions[j].From
		}
		return transitions[i].To < transitions[j].To
	})

	for _, t := range transitions {
		if !names[t.From] || !names[t.To] {
			return fmt.Errorf("transition %s -> %s references an unknown state", t.From, t.To)
		}
		if g.options.ShowLabels && t.Label != "" {
			fmt.Fprintf(dot, "  %q -> %q [label=%q];\n", t.From, t.To, t.Label)
		} else {
			fmt.Fprintf(dot, "  %q -> %q;\n", t.From, t.To)
		}
	}
	return nil
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// GenerateSVG renders the diagram by calling the Graphviz dot command
func (g *DOTGenerator) GenerateSVG() (string, error) {
	dotContent, err := g.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}

// TransitionRecorder is an observer that collects the distinct transitions
// of the machines it is attached to
type TransitionRecorder struct {
	qhsm.BaseObserver

	mutex sync.Mutex
	seen  map[Transition]bool
	order []Transition
}

var _ qhsm.Observer = (*TransitionRecorder)(nil)

// NewTransitionRecorder creates an empty recorder
func NewTransitionRecorder() *TransitionRecorder {
	return &TransitionRecorder{seen: make(map[Transition]bool)}
}

// OnTransition records the transition labelled with its signal name
func (r *TransitionRecorder) OnTransition(from string, to string, event qhsm.Event, info qhsm.MachineInfo) {
	t := Transition{From: from, To: to, Label: info.SignalName(event.Signal())}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.seen[t] {
		return
	}
	r.seen[t] = true
	r.order = append(r.order, t)
}

// Transitions returns the recorded transitions in first-seen order
func (r *TransitionRecorder) Transitions() []Transition {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]Transition(nil), r.order...)
}
