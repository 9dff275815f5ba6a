package bt

import (
	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/fixmath"
	"tickmind.ai/internal/node"
)

// MoveUntilArrived is a long-running leaf: it steps the agent's host
// position toward a blackboard vec2 destination every tick and reports
// Running until the agent is within the squared tolerance, then Success.
// A missing host position degrades to Failure.
type MoveUntilArrived struct {
	DestKey     bb.Key
	Speed       node.Param[fixmath.Scalar]
	ToleranceSq fixmath.Scalar
}

func (m MoveUntilArrived) Tick(ctx *node.Context, ag *node.Agent) Status {
	if ctx.Host == nil {
		return Failure
	}
	pos, ok := ctx.Host.Position(ag.Entity)
	if !ok {
		return Failure
	}
	dest := ag.Memory.Vec2(m.DestKey)
	if dest.Sub(pos).LenSq() <= m.ToleranceSq {
		return Success
	}
	mover := node.MoveToward{DestKey: m.DestKey, Speed: m.Speed}
	mover.Execute(ctx, ag)
	pos, _ = ctx.Host.Position(ag.Entity)
	if dest.Sub(pos).LenSq() <= m.ToleranceSq {
		return Success
	}
	return Running
}
