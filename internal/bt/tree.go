// Package bt implements the behavior tree engine: an immutable, shared tree
// of composite/decorator/leaf nodes ticked top-down once per simulation
// tick. The tree keeps no per-agent state across ticks; long-running leaves
// persist whatever they need in the agent's blackboard.
package bt

import (
	"fmt"

	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/node"
)

// Status is the tri-state result of ticking a node. There is no engine
// level error propagation: failure is a value, never an exception.
type Status uint8

const (
	Failure Status = iota
	Running
	Success
)

func (s Status) String() string {
	switch s {
	case Failure:
		return "failure"
	case Running:
		return "running"
	case Success:
		return "success"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Task is a leaf that can span multiple ticks. Implementations stash any
// persistent state in the blackboard.
type Task interface {
	Tick(*node.Context, *node.Agent) Status
}

// TaskFunc adapts a function to Task.
type TaskFunc func(*node.Context, *node.Agent) Status

func (f TaskFunc) Tick(ctx *node.Context, ag *node.Agent) Status { return f(ctx, ag) }

// Kind enumerates node kinds.
type Kind uint8

const (
	// KindAction executes a node.Action and returns Success.
	KindAction Kind = iota
	// KindCondition maps a node.Decision to Success/Failure.
	KindCondition
	// KindTask ticks a Task leaf.
	KindTask
	// KindSequence ticks children left to right, stops on first non-Success.
	KindSequence
	// KindSelector ticks children left to right, stops on first non-Failure.
	KindSelector
	// KindParallel ticks all children every tick, aggregating per Policy.
	KindParallel
	// KindSelectorRandom is a Selector over a deterministic per-tick
	// permutation of its children.
	KindSelectorRandom
	// KindInverter flips Success/Failure, passes Running through.
	KindInverter
	// KindRepeater re-ticks its child per its RepeatMode.
	KindRepeater
	// KindReturnSuccess ticks its child for side effects, then forces
	// Success unless the child is Running.
	KindReturnSuccess
	// KindReturnFailure ticks its child for side effects, then forces
	// Failure unless the child is Running.
	KindReturnFailure
)

// Policy selects the Parallel aggregate rule. It is always explicit in the
// asset; there is no inferred default.
type Policy uint8

const (
	// PolicyRequireAll succeeds only if every child succeeded; fails as
	// soon as any child failed.
	PolicyRequireAll Policy = iota
	// PolicyRequireAny succeeds as soon as any child succeeded; fails only
	// if every child failed.
	PolicyRequireAny
)

// RepeatMode selects how a Repeater spends its repetitions.
type RepeatMode uint8

const (
	// RepeatPerTick re-ticks the child up to Times in the same tick,
	// stopping early if the child reports Running, and returns the last
	// child status.
	RepeatPerTick RepeatMode = iota
	// RepeatAcrossTicks ticks the child once per tick and counts its
	// successes in CounterKey (an int blackboard key): Running until Times
	// successes accumulate, then Success; a child Failure resets the
	// counter and propagates.
	RepeatAcrossTicks
)

// Def is the authoring shape of one node. Compile turns a Def tree into a
// flat arena.
type Def struct {
	Kind     Kind
	Label    string
	Children []Def

	Action   node.Action
	Decision node.Decision
	Task     Task

	Times      int
	Mode       RepeatMode
	CounterKey bb.Key

	Policy Policy
}

// Convenience constructors for tests and programmatic assets.

func ActionLeaf(label string, a node.Action) Def {
	return Def{Kind: KindAction, Label: label, Action: a}
}

func ConditionLeaf(label string, d node.Decision) Def {
	return Def{Kind: KindCondition, Label: label, Decision: d}
}

func TaskLeaf(label string, t Task) Def {
	return Def{Kind: KindTask, Label: label, Task: t}
}

func Sequence(label string, children ...Def) Def {
	return Def{Kind: KindSequence, Label: label, Children: children}
}

func Selector(label string, children ...Def) Def {
	return Def{Kind: KindSelector, Label: label, Children: children}
}

func Parallel(label string, policy Policy, children ...Def) Def {
	return Def{Kind: KindParallel, Label: label, Policy: policy, Children: children}
}

func SelectorRandom(label string, children ...Def) Def {
	return Def{Kind: KindSelectorRandom, Label: label, Children: children}
}

func Inverter(child Def) Def {
	return Def{Kind: KindInverter, Children: []Def{child}}
}

func Repeater(times int, mode RepeatMode, counter bb.Key, child Def) Def {
	return Def{Kind: KindRepeater, Times: times, Mode: mode, CounterKey: counter, Children: []Def{child}}
}

func ReturnSuccess(child Def) Def {
	return Def{Kind: KindReturnSuccess, Children: []Def{child}}
}

func ReturnFailure(child Def) Def {
	return Def{Kind: KindReturnFailure, Children: []Def{child}}
}

// Tree is the compiled, immutable asset. Shared read-only across agents.
type Tree struct {
	nodes []treeNode
	root  int
}

type treeNode struct {
	kind     Kind
	label    string
	children []int

	action   node.Action
	decision node.Decision
	task     Task

	times      int
	mode       RepeatMode
	counterKey bb.Key

	policy Policy
}

// Compile validates the Def tree and flattens it into an arena with integer
// child indices. All shape errors surface here, at asset-build time.
func Compile(root Def) (*Tree, error) {
	t := &Tree{}
	idx, err := t.compile(root, "root")
	if err != nil {
		return nil, err
	}
	t.root = idx
	return t, nil
}

func (t *Tree) compile(d Def, path string) (int, error) {
	if d.Label != "" {
		path = d.Label
	}
	switch d.Kind {
	case KindAction:
		if d.Action == nil {
			return 0, fmt.Errorf("bt node %s: action leaf without action", path)
		}
		if len(d.Children) != 0 {
			return 0, fmt.Errorf("bt node %s: leaf with children", path)
		}
	case KindCondition:
		if d.Decision == nil {
			return 0, fmt.Errorf("bt node %s: condition leaf without decision", path)
		}
		if len(d.Children) != 0 {
			return 0, fmt.Errorf("bt node %s: leaf with children", path)
		}
	case KindTask:
		if d.Task == nil {
			return 0, fmt.Errorf("bt node %s: task leaf without task", path)
		}
		if len(d.Children) != 0 {
			return 0, fmt.Errorf("bt node %s: leaf with children", path)
		}
	case KindSequence, KindSelector, KindParallel, KindSelectorRandom:
		if len(d.Children) == 0 {
			return 0, fmt.Errorf("bt node %s: composite without children", path)
		}
	case KindInverter, KindReturnSuccess, KindReturnFailure:
		if len(d.Children) != 1 {
			return 0, fmt.Errorf("bt node %s: decorator needs exactly one child", path)
		}
	case KindRepeater:
		if len(d.Children) != 1 {
			return 0, fmt.Errorf("bt node %s: decorator needs exactly one child", path)
		}
		if d.Times <= 0 {
			return 0, fmt.Errorf("bt node %s: repeater needs times >= 1", path)
		}
	default:
		return 0, fmt.Errorf("bt node %s: unknown kind %d", path, d.Kind)
	}

	children := make([]int, 0, len(d.Children))
	for i, c := range d.Children {
		ci, err := t.compile(c, fmt.Sprintf("%s/%d", path, i))
		if err != nil {
			return 0, err
		}
		children = append(children, ci)
	}
	t.nodes = append(t.nodes, treeNode{
		kind:       d.Kind,
		label:      d.Label,
		children:   children,
		action:     d.Action,
		decision:   d.Decision,
		task:       d.Task,
		times:      d.Times,
		mode:       d.Mode,
		counterKey: d.CounterKey,
		policy:     d.Policy,
	})
	return len(t.nodes) - 1, nil
}

// Len returns the number of compiled nodes.
func (t *Tree) Len() int { return len(t.nodes) }
