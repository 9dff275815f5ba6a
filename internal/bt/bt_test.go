package bt

import (
	"testing"

	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/node"
)

func leafReturning(s Status, ticked *int) Def {
	return TaskLeaf("", TaskFunc(func(*node.Context, *node.Agent) Status {
		if ticked != nil {
			*ticked++
		}
		return s
	}))
}

func emptyAgent(t *testing.T) *node.Agent {
	t.Helper()
	def, err := bb.NewDefinition([]bb.KeyDecl{{Name: "counter", Type: bb.TypeInt}})
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	return &node.Agent{Entity: 1, Memory: bb.NewMemory(def)}
}

func TestSequence_StopsAtFirstFailure(t *testing.T) {
	counts := make([]int, 4)
	tree, err := Compile(Sequence("root",
		leafReturning(Success, &counts[0]),
		leafReturning(Success, &counts[1]),
		leafReturning(Failure, &counts[2]),
		leafReturning(Success, &counts[3]),
	))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if got := tree.Tick(&node.Context{}, emptyAgent(t)); got != Failure {
		t.Fatalf("status = %v, want failure", got)
	}
	want := []int{1, 1, 1, 0}
	for i, w := range want {
		if counts[i] != w {
			t.Fatalf("child %d ticked %d times, want %d", i, counts[i], w)
		}
	}
}

func TestSelector_StopsAtFirstNonFailure(t *testing.T) {
	counts := make([]int, 4)
	tree, err := Compile(Selector("root",
		leafReturning(Failure, &counts[0]),
		leafReturning(Failure, &counts[1]),
		leafReturning(Success, &counts[2]),
		leafReturning(Failure, &counts[3]),
	))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if got := tree.Tick(&node.Context{}, emptyAgent(t)); got != Success {
		t.Fatalf("status = %v, want success", got)
	}
	want := []int{1, 1, 1, 0}
	for i, w := range want {
		if counts[i] != w {
			t.Fatalf("child %d ticked %d times, want %d", i, counts[i], w)
		}
	}
}

func TestSequence_RunningPropagates(t *testing.T) {
	tree, err := Compile(Sequence("root",
		leafReturning(Success, nil),
		leafReturning(Running, nil),
		leafReturning(Success, nil),
	))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := tree.Tick(&node.Context{}, emptyAgent(t)); got != Running {
		t.Fatalf("status = %v, want running", got)
	}
}

func TestInverter_FlipsTerminalOnly(t *testing.T) {
	cases := []struct{ child, want Status }{
		{Success, Failure},
		{Failure, Success},
		{Running, Running},
	}
	for _, tc := range cases {
		tree, err := Compile(Inverter(leafReturning(tc.child, nil)))
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		if got := tree.Tick(&node.Context{}, emptyAgent(t)); got != tc.want {
			t.Fatalf("inverter(%v) = %v, want %v", tc.child, got, tc.want)
		}
	}
}

func TestForceDecorators_StillTickChild(t *testing.T) {
	ticked := 0
	tree, err := Compile(ReturnSuccess(leafReturning(Failure, &ticked)))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := tree.Tick(&node.Context{}, emptyAgent(t)); got != Success {
		t.Fatalf("status = %v, want success", got)
	}
	if ticked != 1 {
		t.Fatalf("child ticked %d times, want 1", ticked)
	}

	tree, err = Compile(ReturnFailure(leafReturning(Running, &ticked)))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := tree.Tick(&node.Context{}, emptyAgent(t)); got != Running {
		t.Fatalf("running must pass through force decorators, got %v", got)
	}
}

func TestParallel_TicksAllChildrenEveryTick(t *testing.T) {
	counts := make([]int, 3)
	tree, err := Compile(Parallel("root", PolicyRequireAll,
		leafReturning(Success, &counts[0]),
		leafReturning(Failure, &counts[1]),
		leafReturning(Success, &counts[2]),
	))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := tree.Tick(&node.Context{}, emptyAgent(t)); got != Failure {
		t.Fatalf("require-all with a failing child = %v, want failure", got)
	}
	for i, c := range counts {
		if c != 1 {
			t.Fatalf("child %d ticked %d times, want 1", i, c)
		}
	}

	anyTree, err := Compile(Parallel("root", PolicyRequireAny,
		leafReturning(Failure, nil),
		leafReturning(Success, nil),
	))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := anyTree.Tick(&node.Context{}, emptyAgent(t)); got != Success {
		t.Fatalf("require-any with a succeeding child = %v, want success", got)
	}
}

func TestRepeater_PerTick(t *testing.T) {
	ticked := 0
	tree, err := Compile(Repeater(3, RepeatPerTick, bb.Key{}, leafReturning(Success, &ticked)))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := tree.Tick(&node.Context{}, emptyAgent(t)); got != Success {
		t.Fatalf("status = %v, want success", got)
	}
	if ticked != 3 {
		t.Fatalf("child ticked %d times, want 3", ticked)
	}
}

func TestRepeater_AcrossTicks(t *testing.T) {
	ag := emptyAgent(t)
	counter, _ := ag.Memory.Definition().Resolve("counter")

	ticked := 0
	tree, err := Compile(Repeater(3, RepeatAcrossTicks, counter, leafReturning(Success, &ticked)))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	ctx := &node.Context{}
	for i := 0; i < 2; i++ {
		if got := tree.Tick(ctx, ag); got != Running {
			t.Fatalf("tick %d = %v, want running", i, got)
		}
	}
	if got := tree.Tick(ctx, ag); got != Success {
		t.Fatalf("third tick = %v, want success", got)
	}
	if ticked != 3 {
		t.Fatalf("child ticked %d times, want 3", ticked)
	}
	if ag.Memory.Int(counter) != 0 {
		t.Fatalf("counter not reset after completion")
	}
}

func TestSelectorRandom_SamePermutationAcrossReplicas(t *testing.T) {
	build := func(order *[]int) *Tree {
		children := make([]Def, 4)
		for i := range children {
			i := i
			children[i] = TaskLeaf("", TaskFunc(func(*node.Context, *node.Agent) Status {
				*order = append(*order, i)
				return Failure
			}))
		}
		tree, err := Compile(SelectorRandom("root", children...))
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		return tree
	}

	var orderA, orderB []int
	treeA := build(&orderA)
	treeB := build(&orderB)

	agA, agB := emptyAgent(t), emptyAgent(t)
	for tick := uint64(0); tick < 20; tick++ {
		ctxA := &node.Context{Tick: tick, Seed: 99}
		ctxB := &node.Context{Tick: tick, Seed: 99}
		if sA, sB := treeA.Tick(ctxA, agA), treeB.Tick(ctxB, agB); sA != sB {
			t.Fatalf("status diverged at tick %d", tick)
		}
	}
	if len(orderA) != len(orderB) {
		t.Fatalf("visit counts differ: %d vs %d", len(orderA), len(orderB))
	}
	for i := range orderA {
		if orderA[i] != orderB[i] {
			t.Fatalf("visit order diverged at %d: %v vs %v", i, orderA, orderB)
		}
	}

	// And the permutation must actually vary across ticks.
	varied := false
	perTick := len(orderA) / 20
	for tick := 1; tick < 20; tick++ {
		for i := 0; i < perTick; i++ {
			if orderA[tick*perTick+i] != orderA[i] {
				varied = true
			}
		}
	}
	if !varied {
		t.Fatalf("selector-random never permuted across 20 ticks")
	}
}

func TestTick_IdempotentWithoutSideEffects(t *testing.T) {
	tree, err := Compile(Selector("root",
		ConditionLeaf("never", node.Const(false)),
		Sequence("walk",
			ConditionLeaf("always", node.Const(true)),
			leafReturning(Running, nil),
		),
	))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ag := emptyAgent(t)
	ctx := &node.Context{Tick: 7, Seed: 1}
	first := tree.Tick(ctx, ag)
	second := tree.Tick(ctx, ag)
	if first != second {
		t.Fatalf("tick not idempotent: %v then %v", first, second)
	}
}

func TestCompile_RejectsMalformedShapes(t *testing.T) {
	cases := []Def{
		{Kind: KindSequence},                              // composite without children
		{Kind: KindInverter},                              // decorator without child
		{Kind: KindAction},                                // action leaf without action
		{Kind: KindCondition},                             // condition leaf without decision
		{Kind: KindRepeater, Children: []Def{leafReturning(Success, nil)}}, // times < 1
	}
	for i, d := range cases {
		if _, err := Compile(d); err == nil {
			t.Fatalf("case %d: malformed def compiled", i)
		}
	}
}
