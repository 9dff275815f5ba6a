// Package hfsm implements the hierarchical state machine engine. A Machine
// is an immutable, shared asset: states live in a flat arena and refer to
// each other (parents, transition targets) by integer index, never by
// pointer, so the parent/child back-references cannot form ownership
// cycles. Per-agent runtime state is just the current state index and the
// tick it was entered.
package hfsm

import (
	"fmt"

	"tickmind.ai/internal/node"
)

// None marks the absence of a state: a transition branch that does not
// fire, or a state without a parent.
const None = -1

// Transition gates a state change on a Decision. The taken branch is
// TrueTarget when the decision holds, FalseTarget otherwise; a branch of
// None means "no transition, keep evaluating".
type Transition struct {
	Decision    node.Decision
	TrueTarget  int
	FalseTarget int
}

// StateDef is the authoring shape of one state.
type StateDef struct {
	Name   string
	Parent int // None for a top-level state

	Entry  []node.Action
	During []node.Action
	Exit   []node.Action

	Transitions []Transition
}

// MachineDef is the authoring shape of a machine.
type MachineDef struct {
	States  []StateDef
	Initial int
}

type state struct {
	name   string
	parent int
	depth  int

	entry  []node.Action
	during []node.Action
	exit   []node.Action

	transitions []Transition
}

// Machine is the compiled, immutable asset.
type Machine struct {
	states  []state
	initial int
}

// Compile validates the definition and freezes it. Dangling transition
// targets, bad parent references and parent cycles are configuration
// errors rejected here, never at tick time.
func Compile(def MachineDef) (*Machine, error) {
	if len(def.States) == 0 {
		return nil, fmt.Errorf("hfsm: machine has no states")
	}
	if def.Initial < 0 || def.Initial >= len(def.States) {
		return nil, fmt.Errorf("hfsm: initial state %d out of range", def.Initial)
	}
	m := &Machine{states: make([]state, len(def.States)), initial: def.Initial}
	for i, sd := range def.States {
		if sd.Parent != None && (sd.Parent < 0 || sd.Parent >= len(def.States)) {
			return nil, fmt.Errorf("hfsm state %q: parent %d out of range", sd.Name, sd.Parent)
		}
		if sd.Parent == i {
			return nil, fmt.Errorf("hfsm state %q: state is its own parent", sd.Name)
		}
		for ti, tr := range sd.Transitions {
			if tr.Decision == nil {
				return nil, fmt.Errorf("hfsm state %q: transition %d has no decision", sd.Name, ti)
			}
			for _, target := range [2]int{tr.TrueTarget, tr.FalseTarget} {
				if target != None && (target < 0 || target >= len(def.States)) {
					return nil, fmt.Errorf("hfsm state %q: transition %d targets missing state %d", sd.Name, ti, target)
				}
			}
		}
		m.states[i] = state{
			name:        sd.Name,
			parent:      sd.Parent,
			entry:       sd.Entry,
			during:      sd.During,
			exit:        sd.Exit,
			transitions: sd.Transitions,
		}
	}
	// Depth assignment doubles as parent-cycle detection: a chain longer
	// than the state count must loop.
	for i := range m.states {
		depth, s := 0, i
		for m.states[s].parent != None {
			s = m.states[s].parent
			depth++
			if depth > len(m.states) {
				return nil, fmt.Errorf("hfsm state %q: parent cycle", m.states[i].name)
			}
		}
		m.states[i].depth = depth
	}
	return m, nil
}

// StateName returns the name of a state index, for debug snapshots.
func (m *Machine) StateName(idx int) string {
	if idx < 0 || idx >= len(m.states) {
		return ""
	}
	return m.states[idx].name
}

// Initial returns the declared initial state index.
func (m *Machine) Initial() int { return m.initial }

// Len returns the number of states.
func (m *Machine) Len() int { return len(m.states) }

// path returns the ancestor chain of idx, root-most first, ending at idx.
func (m *Machine) path(idx int, buf []int) []int {
	buf = buf[:0]
	for s := idx; s != None; s = m.states[s].parent {
		buf = append(buf, s)
	}
	// Reverse in place: collected leaf-first.
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}
