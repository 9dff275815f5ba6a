package node

import (
	"testing"

	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/det"
	"tickmind.ai/internal/fixmath"
)

func testAgent(t *testing.T) (*bb.Definition, *Agent) {
	t.Helper()
	def, err := bb.NewDefinition([]bb.KeyDecl{
		{Name: "alerted", Type: bb.TypeBool},
		{Name: "deadline", Type: bb.TypeInt},
		{Name: "morale", Type: bb.TypeScalar},
		{Name: "dest", Type: bb.TypeVec2},
		{Name: "target", Type: bb.TypeEntity},
	})
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	return def, &Agent{Entity: 1, Memory: bb.NewMemory(def)}
}

func TestParam_LiteralAndComputed(t *testing.T) {
	_, ag := testAgent(t)
	ctx := &Context{Tick: 5}

	lit := Lit(fixmath.FromInt(3))
	if got := lit.Resolve(ctx, ag); got != fixmath.FromInt(3) {
		t.Fatalf("literal resolved to %d", got)
	}

	comp := Computed[fixmath.Scalar](Fn[fixmath.Scalar](func(c *Context, _ *Agent) fixmath.Scalar {
		return fixmath.FromInt(int64(c.Tick))
	}))
	if got := comp.Resolve(ctx, ag); got != fixmath.FromInt(5) {
		t.Fatalf("computed resolved to %d", got)
	}
}

func TestCurve_Shapes(t *testing.T) {
	half := fixmath.Half
	cases := []struct {
		name  string
		curve Curve
		in    fixmath.Scalar
		want  fixmath.Scalar
	}{
		{"linear identity", Curve{Kind: CurveLinear}, half, half},
		{"linear clamps", Curve{Kind: CurveLinear}, fixmath.FromInt(2), fixmath.One},
		{"inverse", Curve{Kind: CurveInverse}, half, half},
		{"inverse at one", Curve{Kind: CurveInverse}, fixmath.One, 0},
		{"quadratic", Curve{Kind: CurvePolynomial, Exponent: 2}, half, fixmath.FromRatio(1, 4)},
		{"cubic", Curve{Kind: CurvePolynomial, Exponent: 3}, half, fixmath.FromRatio(1, 8)},
		{"inverse quadratic", Curve{Kind: CurveInversePolynomial, Exponent: 2}, half, fixmath.FromRatio(3, 4)},
		{"step below", Curve{Kind: CurveStep, Threshold: half}, fixmath.FromRatio(1, 4), 0},
		{"step at", Curve{Kind: CurveStep, Threshold: half}, half, fixmath.One},
		{"smoothstep midpoint", Curve{Kind: CurveSmoothstep}, half, half},
		{"smoothstep endpoint", Curve{Kind: CurveSmoothstep}, fixmath.One, fixmath.One},
	}
	for _, tc := range cases {
		if got := tc.curve.Eval(tc.in); got != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestConsideration_WeightAndClamp(t *testing.T) {
	_, ag := testAgent(t)
	ctx := &Context{}

	c := Consideration{
		Input:  Const(fixmath.One),
		Curve:  Curve{Kind: CurveLinear},
		Weight: fixmath.Half,
	}
	if got := c.Score(ctx, ag); got != fixmath.Half {
		t.Fatalf("weighted score = %d, want %d", got, fixmath.Half)
	}

	// Zero weight means "unweighted", not "always zero".
	c.Weight = 0
	if got := c.Score(ctx, ag); got != fixmath.One {
		t.Fatalf("unweighted score = %d, want %d", got, fixmath.One)
	}
}

func TestTimer_StartAndExpire(t *testing.T) {
	def, ag := testAgent(t)
	deadline, _ := def.Resolve("deadline")

	start := StartTimer{DeadlineKey: deadline, Duration: Lit[int64](10)}
	expired := TimerExpired{DeadlineKey: deadline}

	ctx := &Context{Tick: 100}
	if expired.Evaluate(ctx, ag) {
		t.Fatalf("unset timer should not fire")
	}
	start.Execute(ctx, ag)
	if expired.Evaluate(&Context{Tick: 109}, ag) {
		t.Fatalf("timer fired early")
	}
	if !expired.Evaluate(&Context{Tick: 110}, ag) {
		t.Fatalf("timer did not fire at deadline")
	}
}

func TestDecisions_DegradeWithoutHost(t *testing.T) {
	def, ag := testAgent(t)
	target, _ := def.Resolve("target")
	ag.Memory.SetEntity(target, 7)

	ctx := &Context{} // no host
	if (TargetWithin{Key: target, RangeSq: Lit(fixmath.FromInt(100))}).Evaluate(ctx, ag) {
		t.Fatalf("TargetWithin should degrade to false without a host")
	}
	if (HasTarget{Key: target}).Evaluate(ctx, ag) {
		t.Fatalf("HasTarget should degrade to false without a host")
	}
	if got := (NormalizedProperty{Prop: "hp", Max: fixmath.One}).Evaluate(ctx, ag); got != 0 {
		t.Fatalf("NormalizedProperty should degrade to 0, got %d", got)
	}
}

func TestPickWanderPoint_Deterministic(t *testing.T) {
	def, ag := testAgent(t)
	dest, _ := def.Resolve("dest")

	host := &stubHost{positions: map[bb.Entity]fixmath.Vec2{1: {}}}
	run := func(seed uint64) fixmath.Vec2 {
		ag.Memory.SetVec2(dest, fixmath.Vec2{})
		ctx := &Context{Tick: 3, Host: host, RNG: det.NewSource(seed)}
		(PickWanderPoint{DestKey: dest, Radius: Lit(fixmath.FromInt(8))}).Execute(ctx, ag)
		return ag.Memory.Vec2(dest)
	}
	if run(9) != run(9) {
		t.Fatalf("wander point not reproducible for identical seeds")
	}
}

type stubHost struct {
	positions map[bb.Entity]fixmath.Vec2
	scalars   map[bb.Entity]map[Property]fixmath.Scalar
}

func (h *stubHost) Exists(e bb.Entity) bool {
	_, ok := h.positions[e]
	return ok
}

func (h *stubHost) Scalar(e bb.Entity, p Property) (fixmath.Scalar, bool) {
	m, ok := h.scalars[e]
	if !ok {
		return 0, false
	}
	v, ok := m[p]
	return v, ok
}

func (h *stubHost) SetScalar(e bb.Entity, p Property, v fixmath.Scalar) bool {
	m, ok := h.scalars[e]
	if !ok {
		return false
	}
	m[p] = v
	return true
}

func (h *stubHost) Position(e bb.Entity) (fixmath.Vec2, bool) {
	v, ok := h.positions[e]
	return v, ok
}

func (h *stubHost) SetPosition(e bb.Entity, v fixmath.Vec2) bool {
	if _, ok := h.positions[e]; !ok {
		return false
	}
	h.positions[e] = v
	return true
}

func (h *stubHost) Spawn(string, fixmath.Vec2) bb.Entity { return 0 }
func (h *stubHost) Despawn(bb.Entity)                    {}

func (h *stubHost) Nearest(from bb.Entity, maxSq fixmath.Scalar) (bb.Entity, bool) {
	fromPos, ok := h.positions[from]
	if !ok {
		return 0, false
	}
	best := bb.Entity(0)
	var bestSq fixmath.Scalar
	for e, pos := range h.positions {
		if e == from {
			continue
		}
		d := pos.Sub(fromPos).LenSq()
		if d > maxSq {
			continue
		}
		if best == 0 || d < bestSq || (d == bestSq && e < best) {
			best, bestSq = e, d
		}
	}
	return best, best != 0
}
