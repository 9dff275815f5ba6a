package bt

import (
	"tickmind.ai/internal/det"
	"tickmind.ai/internal/node"
)

// Tick re-enters the tree from the root. The left-to-right child order of
// composites is both the priority order and the determinism guarantee.
func (t *Tree) Tick(ctx *node.Context, ag *node.Agent) Status {
	status := t.tick(t.root, ctx, ag)
	ctx.Trace.Add("bt", t.nodes[t.root].label, int64(status))
	return status
}

func (t *Tree) tick(idx int, ctx *node.Context, ag *node.Agent) Status {
	n := &t.nodes[idx]
	switch n.kind {
	case KindAction:
		n.action.Execute(ctx, ag)
		return Success

	case KindCondition:
		if n.decision.Evaluate(ctx, ag) {
			return Success
		}
		return Failure

	case KindTask:
		return n.task.Tick(ctx, ag)

	case KindSequence:
		for _, c := range n.children {
			if s := t.tick(c, ctx, ag); s != Success {
				return s
			}
		}
		return Success

	case KindSelector:
		for _, c := range n.children {
			if s := t.tick(c, ctx, ag); s != Failure {
				return s
			}
		}
		return Failure

	case KindSelectorRandom:
		// The permutation is drawn from a stream seeded by (seed, tick,
		// agent): every replica shuffles identically, and the shared RNG's
		// consumption order is untouched.
		order := make([]int, len(n.children))
		copy(order, n.children)
		src := det.NewSource(det.Derive(ctx.Seed, ctx.Tick, uint64(ag.Entity)))
		src.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, c := range order {
			if s := t.tick(c, ctx, ag); s != Failure {
				return s
			}
		}
		return Failure

	case KindParallel:
		// All children tick every time, in fixed order, regardless of
		// individual results.
		succeeded, failed := 0, 0
		for _, c := range n.children {
			switch t.tick(c, ctx, ag) {
			case Success:
				succeeded++
			case Failure:
				failed++
			}
		}
		switch n.policy {
		case PolicyRequireAny:
			if succeeded > 0 {
				return Success
			}
			if failed == len(n.children) {
				return Failure
			}
			return Running
		default: // PolicyRequireAll
			if failed > 0 {
				return Failure
			}
			if succeeded == len(n.children) {
				return Success
			}
			return Running
		}

	case KindInverter:
		switch t.tick(n.children[0], ctx, ag) {
		case Success:
			return Failure
		case Failure:
			return Success
		default:
			return Running
		}

	case KindRepeater:
		return t.tickRepeater(n, ctx, ag)

	case KindReturnSuccess:
		if s := t.tick(n.children[0], ctx, ag); s == Running {
			return Running
		}
		return Success

	case KindReturnFailure:
		if s := t.tick(n.children[0], ctx, ag); s == Running {
			return Running
		}
		return Failure
	}
	return Failure
}

func (t *Tree) tickRepeater(n *treeNode, ctx *node.Context, ag *node.Agent) Status {
	child := n.children[0]
	switch n.mode {
	case RepeatAcrossTicks:
		switch t.tick(child, ctx, ag) {
		case Running:
			return Running
		case Failure:
			ag.Memory.SetInt(n.counterKey, 0)
			return Failure
		default:
			done := ag.Memory.Int(n.counterKey) + 1
			if done >= int64(n.times) {
				ag.Memory.SetInt(n.counterKey, 0)
				return Success
			}
			ag.Memory.SetInt(n.counterKey, done)
			return Running
		}
	default: // RepeatPerTick
		last := Success
		for i := 0; i < n.times; i++ {
			last = t.tick(child, ctx, ag)
			if last == Running {
				return Running
			}
		}
		return last
	}
}
