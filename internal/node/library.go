package node

import (
	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/fixmath"
)

// Built-in node catalog. These are the stock actions, functions and
// decisions asset files can reference by kind name; custom hosts register
// additional ones at the asset-compile boundary.
//
// Every node here follows the degradation contract: a missing entity, an
// absent host component or an empty target key yields a safe default
// (false, zero, no-op) instead of aborting the tick.

// SetBool writes a literal-or-computed bool into the blackboard.
type SetBool struct {
	Key   bb.Key
	Value Param[bool]
}

func (a SetBool) Execute(ctx *Context, ag *Agent) {
	ag.Memory.SetBool(a.Key, a.Value.Resolve(ctx, ag))
}

// SetScalar writes a scalar blackboard key.
type SetScalar struct {
	Key   bb.Key
	Value Param[fixmath.Scalar]
}

func (a SetScalar) Execute(ctx *Context, ag *Agent) {
	ag.Memory.SetScalar(a.Key, a.Value.Resolve(ctx, ag))
}

// AddScalar adds a delta to a scalar blackboard key.
type AddScalar struct {
	Key   bb.Key
	Delta Param[fixmath.Scalar]
}

func (a AddScalar) Execute(ctx *Context, ag *Agent) {
	ag.Memory.SetScalar(a.Key, ag.Memory.Scalar(a.Key)+a.Delta.Resolve(ctx, ag))
}

// StartTimer records a deadline (current tick + duration) into an int key.
// TimerExpired reads it back. Durations are tick counts, never wall-clock.
type StartTimer struct {
	DeadlineKey bb.Key
	Duration    Param[int64]
}

func (a StartTimer) Execute(ctx *Context, ag *Agent) {
	d := a.Duration.Resolve(ctx, ag)
	if d < 0 {
		d = 0
	}
	ag.Memory.SetInt(a.DeadlineKey, int64(ctx.Tick)+d)
}

// AcquireTarget scans for the nearest other entity within range and stores
// its handle (or zero) in an entity key.
type AcquireTarget struct {
	TargetKey bb.Key
	RangeSq   Param[fixmath.Scalar]
}

func (a AcquireTarget) Execute(ctx *Context, ag *Agent) {
	if ctx.Host == nil {
		ag.Memory.SetEntity(a.TargetKey, 0)
		return
	}
	found, ok := ctx.Host.Nearest(ag.Entity, a.RangeSq.Resolve(ctx, ag))
	if !ok {
		ag.Memory.SetEntity(a.TargetKey, 0)
		return
	}
	ag.Memory.SetEntity(a.TargetKey, found)
}

// ClearEntity zeroes an entity key.
type ClearEntity struct {
	Key bb.Key
}

func (a ClearEntity) Execute(ctx *Context, ag *Agent) {
	ag.Memory.SetEntity(a.Key, 0)
}

// MoveToward steps the agent's host position toward a blackboard vec2
// destination by Speed per tick, stopping exactly on it.
type MoveToward struct {
	DestKey bb.Key
	Speed   Param[fixmath.Scalar]
}

func (a MoveToward) Execute(ctx *Context, ag *Agent) {
	if ctx.Host == nil {
		return
	}
	pos, ok := ctx.Host.Position(ag.Entity)
	if !ok {
		return
	}
	dest := ag.Memory.Vec2(a.DestKey)
	ctx.Host.SetPosition(ag.Entity, stepToward(pos, dest, a.Speed.Resolve(ctx, ag)))
}

// MoveAwayFrom steps the agent's position directly away from a target
// entity. With no valid target it is a no-op.
type MoveAwayFrom struct {
	TargetKey bb.Key
	Speed     Param[fixmath.Scalar]
}

func (a MoveAwayFrom) Execute(ctx *Context, ag *Agent) {
	if ctx.Host == nil {
		return
	}
	target := ag.Memory.Entity(a.TargetKey)
	if target == 0 {
		return
	}
	pos, ok := ctx.Host.Position(ag.Entity)
	if !ok {
		return
	}
	tpos, ok := ctx.Host.Position(target)
	if !ok {
		return
	}
	away := pos.Add(pos.Sub(tpos))
	ctx.Host.SetPosition(ag.Entity, stepToward(pos, away, a.Speed.Resolve(ctx, ag)))
}

// PickWanderPoint draws a deterministic random destination in the square of
// half-width Radius around the current position and stores it in a vec2
// key. Axis offsets come from the tick context's seeded RNG.
type PickWanderPoint struct {
	DestKey bb.Key
	Radius  Param[fixmath.Scalar]
}

func (a PickWanderPoint) Execute(ctx *Context, ag *Agent) {
	if ctx.Host == nil || ctx.RNG == nil {
		return
	}
	pos, ok := ctx.Host.Position(ag.Entity)
	if !ok {
		return
	}
	r := a.Radius.Resolve(ctx, ag)
	if r <= 0 {
		ag.Memory.SetVec2(a.DestKey, pos)
		return
	}
	dx := fixmath.Scalar(ctx.RNG.NextInRange(int64(-r), int64(r)+1))
	dy := fixmath.Scalar(ctx.RNG.NextInRange(int64(-r), int64(r)+1))
	ag.Memory.SetVec2(a.DestKey, fixmath.Vec2{X: pos.X + dx, Y: pos.Y + dy})
}

// AddHostScalar adjusts a numeric component on the agent's own entity.
type AddHostScalar struct {
	Prop  Property
	Delta Param[fixmath.Scalar]
}

func (a AddHostScalar) Execute(ctx *Context, ag *Agent) {
	if ctx.Host == nil {
		return
	}
	v, ok := ctx.Host.Scalar(ag.Entity, a.Prop)
	if !ok {
		return
	}
	ctx.Host.SetScalar(ag.Entity, a.Prop, v+a.Delta.Resolve(ctx, ag))
}

func stepToward(pos, dest fixmath.Vec2, speed fixmath.Scalar) fixmath.Vec2 {
	if speed <= 0 {
		return pos
	}
	d := dest.Sub(pos)
	// Chebyshev step: advance each axis by at most speed. Avoids needing a
	// fixed-point square root while staying fully deterministic.
	step := func(delta fixmath.Scalar) fixmath.Scalar {
		if delta > speed {
			return speed
		}
		if delta < -speed {
			return -speed
		}
		return delta
	}
	return fixmath.Vec2{X: pos.X + step(d.X), Y: pos.Y + step(d.Y)}
}

// BoolKey reads a bool blackboard key as a decision.
type BoolKey struct {
	Key bb.Key
}

func (d BoolKey) Evaluate(ctx *Context, ag *Agent) bool {
	return ag.Memory.Bool(d.Key)
}

// Not inverts another decision.
type Not struct {
	Inner Decision
}

func (d Not) Evaluate(ctx *Context, ag *Agent) bool {
	if d.Inner == nil {
		return false
	}
	return !d.Inner.Evaluate(ctx, ag)
}

// TimerExpired is true once the deadline written by StartTimer has passed.
// An unset (zero) deadline never fires.
type TimerExpired struct {
	DeadlineKey bb.Key
}

func (d TimerExpired) Evaluate(ctx *Context, ag *Agent) bool {
	deadline := ag.Memory.Int(d.DeadlineKey)
	return deadline > 0 && ctx.Tick >= uint64(deadline)
}

// TimeInState is true once the current state has been active for at least
// Ticks. Only meaningful inside state machine transitions, where the engine
// fills Context.EnteredAtTick.
type TimeInState struct {
	Ticks uint64
}

func (d TimeInState) Evaluate(ctx *Context, ag *Agent) bool {
	return ctx.Tick-ctx.EnteredAtTick >= d.Ticks
}

// HasTarget is true when an entity key holds a live entity.
type HasTarget struct {
	Key bb.Key
}

func (d HasTarget) Evaluate(ctx *Context, ag *Agent) bool {
	e := ag.Memory.Entity(d.Key)
	if e == 0 {
		return false
	}
	return ctx.Host != nil && ctx.Host.Exists(e)
}

// TargetWithin is true when the entity in Key is within the squared range
// of the agent. A dead or missing target is "not within".
type TargetWithin struct {
	Key     bb.Key
	RangeSq Param[fixmath.Scalar]
}

func (d TargetWithin) Evaluate(ctx *Context, ag *Agent) bool {
	if ctx.Host == nil {
		return false
	}
	target := ag.Memory.Entity(d.Key)
	if target == 0 {
		return false
	}
	pos, ok := ctx.Host.Position(ag.Entity)
	if !ok {
		return false
	}
	tpos, ok := ctx.Host.Position(target)
	if !ok {
		return false
	}
	return tpos.Sub(pos).LenSq() <= d.RangeSq.Resolve(ctx, ag)
}

// AnyEntityWithin is true when any other entity is inside the squared range.
type AnyEntityWithin struct {
	RangeSq Param[fixmath.Scalar]
}

func (d AnyEntityWithin) Evaluate(ctx *Context, ag *Agent) bool {
	if ctx.Host == nil {
		return false
	}
	_, ok := ctx.Host.Nearest(ag.Entity, d.RangeSq.Resolve(ctx, ag))
	return ok
}

// ScalarBelow compares a scalar function against a threshold.
type ScalarBelow struct {
	Value     Function[fixmath.Scalar]
	Threshold Param[fixmath.Scalar]
}

func (d ScalarBelow) Evaluate(ctx *Context, ag *Agent) bool {
	if d.Value == nil {
		return false
	}
	return d.Value.Evaluate(ctx, ag) < d.Threshold.Resolve(ctx, ag)
}

// ScalarKey reads a scalar blackboard key as a function.
type ScalarKey struct {
	Key bb.Key
}

func (f ScalarKey) Evaluate(ctx *Context, ag *Agent) fixmath.Scalar {
	return ag.Memory.Scalar(f.Key)
}

// NormalizedProperty reads a host component and maps it into [0,1] against
// a maximum. A missing component reads as zero.
type NormalizedProperty struct {
	Prop Property
	Max  fixmath.Scalar
}

func (f NormalizedProperty) Evaluate(ctx *Context, ag *Agent) fixmath.Scalar {
	if ctx.Host == nil || f.Max <= 0 {
		return 0
	}
	v, ok := ctx.Host.Scalar(ag.Entity, f.Prop)
	if !ok {
		return 0
	}
	return fixmath.Clamp01(fixmath.Div(v, f.Max))
}

// NormalizedTargetDistance maps the squared distance to a target entity
// into [0,1] against a squared maximum: 0 when on top of the target, 1 at
// or beyond MaxSq. No target reads as 1 (maximally far).
type NormalizedTargetDistance struct {
	Key   bb.Key
	MaxSq fixmath.Scalar
}

func (f NormalizedTargetDistance) Evaluate(ctx *Context, ag *Agent) fixmath.Scalar {
	if ctx.Host == nil || f.MaxSq <= 0 {
		return fixmath.One
	}
	target := ag.Memory.Entity(f.Key)
	if target == 0 {
		return fixmath.One
	}
	pos, ok := ctx.Host.Position(ag.Entity)
	if !ok {
		return fixmath.One
	}
	tpos, ok := ctx.Host.Position(target)
	if !ok {
		return fixmath.One
	}
	return fixmath.Clamp01(fixmath.Div(tpos.Sub(pos).LenSq(), f.MaxSq))
}
