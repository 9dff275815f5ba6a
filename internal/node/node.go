package node

import "tickmind.ai/internal/fixmath"

// Action mutates the agent's blackboard or host components. Actions never
// fail: anything that cannot complete degrades to a no-op. They must not
// read wall-clock or unseeded randomness.
type Action interface {
	Execute(*Context, *Agent)
}

// ActionFunc adapts a function to Action.
type ActionFunc func(*Context, *Agent)

func (f ActionFunc) Execute(ctx *Context, ag *Agent) { f(ctx, ag) }

// Function produces a value from simulation state. Same inputs must yield
// the same output; a Function that cannot produce a meaningful result
// returns the zero value.
type Function[T any] interface {
	Evaluate(*Context, *Agent) T
}

// Fn adapts a function to Function[T].
type Fn[T any] func(*Context, *Agent) T

func (f Fn[T]) Evaluate(ctx *Context, ag *Agent) T { return f(ctx, ag) }

// Decision is the boolean specialization used by state machine transitions.
type Decision = Function[bool]

// Const is a Function that always returns the same value.
func Const[T any](v T) Function[T] {
	return Fn[T](func(*Context, *Agent) T { return v })
}

// Param holds either a static literal or a computed Function, letting
// designers choose per asset without changing call sites.
type Param[T any] struct {
	fn  Function[T]
	lit T
}

// Lit builds a static Param.
func Lit[T any](v T) Param[T] { return Param[T]{lit: v} }

// Computed builds a Param backed by a Function.
func Computed[T any](fn Function[T]) Param[T] { return Param[T]{fn: fn} }

// Resolve returns the literal or evaluates the Function.
func (p Param[T]) Resolve(ctx *Context, ag *Agent) T {
	if p.fn != nil {
		return p.fn.Evaluate(ctx, ag)
	}
	return p.lit
}

// Consideration is one weighted, curve-mapped input scoring an action for
// the utility reasoner. Input values and scores live on [0,1].
type Consideration struct {
	Input  Function[fixmath.Scalar]
	Curve  Curve
	Weight fixmath.Scalar
}

// Score evaluates the consideration. The input is clamped to the unit
// interval before the curve, and the weighted result after it.
func (c Consideration) Score(ctx *Context, ag *Agent) fixmath.Scalar {
	x := fixmath.Clamp01(c.Input.Evaluate(ctx, ag))
	w := c.Weight
	if w == 0 {
		w = fixmath.One
	}
	return fixmath.Clamp01(fixmath.Mul(w, c.Curve.Eval(x)))
}
