package hfsm

import (
	"testing"

	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/node"
)

func recorder(log *[]string, name string) node.Action {
	return node.ActionFunc(func(*node.Context, *node.Agent) {
		*log = append(*log, name)
	})
}

func always(v bool) node.Decision { return node.Const(v) }

func freshAgent(t *testing.T) *node.Agent {
	t.Helper()
	def, err := bb.NewDefinition([]bb.KeyDecl{{Name: "flag", Type: bb.TypeBool}})
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	return &node.Agent{Entity: 1, Memory: bb.NewMemory(def)}
}

func TestUpdate_NoChainingWithinOneTick(t *testing.T) {
	// A <-> B, both transitions always true. One Update must advance
	// exactly one hop.
	m, err := Compile(MachineDef{
		Initial: 0,
		States: []StateDef{
			{Name: "A", Parent: None, Transitions: []Transition{{Decision: always(true), TrueTarget: 1, FalseTarget: None}}},
			{Name: "B", Parent: None, Transitions: []Transition{{Decision: always(true), TrueTarget: 0, FalseTarget: None}}},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	ag := freshAgent(t)
	var in Instance
	m.Init(&node.Context{Tick: 0}, ag, &in)
	if in.Current != 0 {
		t.Fatalf("initial state = %d, want 0", in.Current)
	}

	m.Update(&node.Context{Tick: 1}, ag, &in)
	if in.Current != 1 {
		t.Fatalf("after first update state = %d, want 1 (B)", in.Current)
	}
	if in.EnteredAtTick != 1 {
		t.Fatalf("EnteredAtTick = %d, want 1", in.EnteredAtTick)
	}

	m.Update(&node.Context{Tick: 2}, ag, &in)
	if in.Current != 0 {
		t.Fatalf("after second update state = %d, want 0 (A)", in.Current)
	}
}

func TestUpdate_ActionOrderStateThenTransition(t *testing.T) {
	var log []string
	m, err := Compile(MachineDef{
		Initial: 0,
		States: []StateDef{
			{
				Name:   "A",
				Parent: None,
				During: []node.Action{recorder(&log, "A.during")},
				Exit:   []node.Action{recorder(&log, "A.exit")},
				Transitions: []Transition{
					{Decision: always(true), TrueTarget: 1, FalseTarget: None},
				},
			},
			{
				Name:   "B",
				Parent: None,
				Entry:  []node.Action{recorder(&log, "B.entry")},
			},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	ag := freshAgent(t)
	var in Instance
	m.Init(&node.Context{Tick: 0}, ag, &in)
	log = log[:0]

	m.Update(&node.Context{Tick: 1}, ag, &in)
	want := []string{"A.during", "A.exit", "B.entry"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

// hierarchyMachine builds:
//
//	Parent (0)
//	  ChildA (1)  -> ChildB when flag set
//	  ChildB (2)
//	Outside (3)
//
// Parent carries the fallback transition to Outside gated on "flag" being
// false... inverted via ChildB having no own transitions.
func hierarchyMachine(t *testing.T, log *[]string, toOutside node.Decision, aToB node.Decision) *Machine {
	t.Helper()
	m, err := Compile(MachineDef{
		Initial: 1,
		States: []StateDef{
			{
				Name:   "Parent",
				Parent: None,
				Entry:  []node.Action{recorder(log, "Parent.entry")},
				Exit:   []node.Action{recorder(log, "Parent.exit")},
				Transitions: []Transition{
					{Decision: toOutside, TrueTarget: 3, FalseTarget: None},
				},
			},
			{
				Name:   "ChildA",
				Parent: 0,
				Entry:  []node.Action{recorder(log, "ChildA.entry")},
				Exit:   []node.Action{recorder(log, "ChildA.exit")},
				Transitions: []Transition{
					{Decision: aToB, TrueTarget: 2, FalseTarget: None},
				},
			},
			{
				Name:   "ChildB",
				Parent: 0,
				Entry:  []node.Action{recorder(log, "ChildB.entry")},
				Exit:   []node.Action{recorder(log, "ChildB.exit")},
			},
			{
				Name:  "Outside",
				Entry: []node.Action{recorder(log, "Outside.entry")},
				Parent: None,
			},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return m
}

func TestHierarchy_IntraParentTransitionSkipsParentBoundary(t *testing.T) {
	var log []string
	m := hierarchyMachine(t, &log, always(false), always(true))

	ag := freshAgent(t)
	var in Instance
	m.Init(&node.Context{Tick: 0}, ag, &in)

	wantInit := []string{"Parent.entry", "ChildA.entry"}
	if len(log) != 2 || log[0] != wantInit[0] || log[1] != wantInit[1] {
		t.Fatalf("init log = %v, want %v", log, wantInit)
	}
	log = log[:0]

	m.Update(&node.Context{Tick: 1}, ag, &in)
	if in.Current != 2 {
		t.Fatalf("state = %d, want ChildB", in.Current)
	}
	want := []string{"ChildA.exit", "ChildB.entry"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v (parent boundary must not be crossed)", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

func TestHierarchy_LeavingParentRunsParentExitOnce(t *testing.T) {
	var log []string
	m := hierarchyMachine(t, &log, always(true), always(false))

	ag := freshAgent(t)
	var in Instance
	m.Init(&node.Context{Tick: 0}, ag, &in)
	log = log[:0]

	// ChildA has no matching transition of its own; the parent's fallback
	// to Outside is inherited.
	m.Update(&node.Context{Tick: 1}, ag, &in)
	if in.Current != 3 {
		t.Fatalf("state = %d, want Outside", in.Current)
	}
	want := []string{"ChildA.exit", "Parent.exit", "Outside.entry"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

func TestUpdate_ChildTransitionsPrecedeInherited(t *testing.T) {
	var log []string
	// Both the child's and the parent's transitions would fire; the
	// child's own must win.
	m := hierarchyMachine(t, &log, always(true), always(true))

	ag := freshAgent(t)
	var in Instance
	m.Init(&node.Context{Tick: 0}, ag, &in)

	m.Update(&node.Context{Tick: 1}, ag, &in)
	if in.Current != 2 {
		t.Fatalf("state = %d, want ChildB (child transition has priority)", in.Current)
	}
}

func TestUpdate_FalseBranchTarget(t *testing.T) {
	m, err := Compile(MachineDef{
		Initial: 0,
		States: []StateDef{
			{Name: "A", Parent: None, Transitions: []Transition{
				{Decision: always(false), TrueTarget: None, FalseTarget: 1},
			}},
			{Name: "B", Parent: None},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ag := freshAgent(t)
	var in Instance
	m.Init(&node.Context{Tick: 0}, ag, &in)
	m.Update(&node.Context{Tick: 1}, ag, &in)
	if in.Current != 1 {
		t.Fatalf("false branch did not fire, state = %d", in.Current)
	}
}

func TestCompile_RejectsBadReferences(t *testing.T) {
	cases := []MachineDef{
		{Initial: 0, States: nil},
		{Initial: 5, States: []StateDef{{Name: "A", Parent: None}}},
		{Initial: 0, States: []StateDef{{Name: "A", Parent: 3}}},
		{Initial: 0, States: []StateDef{
			{Name: "A", Parent: None, Transitions: []Transition{{Decision: always(true), TrueTarget: 9, FalseTarget: None}}},
		}},
		{Initial: 0, States: []StateDef{
			{Name: "A", Parent: 1},
			{Name: "B", Parent: 0},
		}},
	}
	for i, def := range cases {
		if _, err := Compile(def); err == nil {
			t.Fatalf("case %d: malformed machine compiled", i)
		}
	}
}

func TestTimeInState_SeesEnteredAtTick(t *testing.T) {
	m, err := Compile(MachineDef{
		Initial: 0,
		States: []StateDef{
			{Name: "wait", Parent: None, Transitions: []Transition{
				{Decision: node.TimeInState{Ticks: 3}, TrueTarget: 1, FalseTarget: None},
			}},
			{Name: "go", Parent: None},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ag := freshAgent(t)
	var in Instance
	m.Init(&node.Context{Tick: 10}, ag, &in)

	for tick := uint64(11); tick < 13; tick++ {
		m.Update(&node.Context{Tick: tick}, ag, &in)
		if in.Current != 0 {
			t.Fatalf("left wait too early at tick %d", tick)
		}
	}
	m.Update(&node.Context{Tick: 13}, ag, &in)
	if in.Current != 1 {
		t.Fatalf("still waiting at tick 13, EnteredAtTick=%d", in.EnteredAtTick)
	}
}
