// Package utility implements the utility reasoner: every reevaluation
// window it scores a fixed action set via weighted, curve-mapped
// considerations, picks the best action with declaration-order tie breaking
// and hysteresis, and executes it.
//
// Score compensation. The raw score of an action is the product of its
// consideration scores, which collapses to zero whenever any single
// consideration is zero. To keep one near-zero input from erasing an
// otherwise strong action, each consideration score is blended toward one
// before the product:
//
//	comp = s + (1 - s) * (1 - 1/N)
//
// where N is the action's consideration count. With N = 1 the score is
// unchanged; as N grows, each individual consideration loses veto power,
// which is the intent: more considerations should refine a score, not
// multiply more chances to zero it. The formula is pinned by the fixture
// tests in this package.
package utility

import (
	"encoding/binary"
	"fmt"
	"hash"

	"tickmind.ai/internal/fixmath"
	"tickmind.ai/internal/node"
)

// ScoredAction couples an executable action with the considerations that
// score it.
type ScoredAction struct {
	Name           string
	Considerations []node.Consideration
	Action         node.Action
}

// Asset is the immutable, shared configuration of one reasoner.
type Asset struct {
	actions []ScoredAction

	// ReevaluationFrequency is the scoring cadence in ticks; scoring is
	// skipped while the window is open. Zero means "every tick".
	reevalEvery uint64

	// minScoreChange is the hysteresis threshold: a challenger must beat
	// the incumbent's fresh score by more than this to take over.
	minScoreChange fixmath.Scalar
}

// Compile validates and freezes an asset. Actions without an executable
// are authoring errors.
func Compile(actions []ScoredAction, reevalEvery uint64, minScoreChange fixmath.Scalar) (*Asset, error) {
	for i, a := range actions {
		if a.Action == nil {
			return nil, fmt.Errorf("utility action %d (%q): no executable action", i, a.Name)
		}
		for j, c := range a.Considerations {
			if c.Input == nil {
				return nil, fmt.Errorf("utility action %q: consideration %d has no input function", a.Name, j)
			}
		}
	}
	return &Asset{
		actions:        actions,
		reevalEvery:    reevalEvery,
		minScoreChange: minScoreChange,
	}, nil
}

// ActionName returns the name of an action index, for debug snapshots.
func (a *Asset) ActionName(idx int) string {
	if idx < 0 || idx >= len(a.actions) {
		return ""
	}
	return a.actions[idx].Name
}

// Len returns the number of actions.
func (a *Asset) Len() int { return len(a.actions) }

// Instance is one agent's runtime state.
type Instance struct {
	// Current is the selected action index, or -1 before the first
	// evaluation (and forever, for an empty asset).
	Current            int
	LastEvaluationTick uint64
	evaluated          bool

	// scores caches the last computed compensated score per action.
	scores []fixmath.Scalar
}

// NewInstance returns a runtime sized for the asset.
func NewInstance(a *Asset) *Instance {
	return &Instance{Current: -1, scores: make([]fixmath.Scalar, len(a.actions))}
}

// Scores exposes the cached per-action scores for debug snapshots.
func (in *Instance) Scores() []fixmath.Scalar { return in.scores }

// DigestInto folds the decision-relevant instance state into h. Cached
// scores stay out: every evaluation recomputes them from scratch, so they
// cannot diverge while Current and the evaluation clock agree.
func (in *Instance) DigestInto(h hash.Hash) {
	var buf [17]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(int64(in.Current)))
	binary.LittleEndian.PutUint64(buf[8:], in.LastEvaluationTick)
	if in.evaluated {
		buf[16] = 1
	}
	h.Write(buf[:])
}

// Score computes one action's compensated score. An empty consideration
// list scores 1: such an action is unconditionally eligible.
func (a *Asset) Score(ctx *node.Context, ag *node.Agent, idx int) fixmath.Scalar {
	considerations := a.actions[idx].Considerations
	n := len(considerations)
	if n == 0 {
		return fixmath.One
	}
	makeup := fixmath.One - fixmath.FromRatio(1, int64(n))
	score := fixmath.One
	for _, c := range considerations {
		s := c.Score(ctx, ag)
		comp := s + fixmath.Mul(fixmath.One-s, makeup)
		score = fixmath.Mul(score, comp)
	}
	return score
}

// Update runs one tick:
//
//  1. Inside the reevaluation window, keep the current action unscored.
//  2. Otherwise score every action, select the strict maximum (first
//     declared wins ties), and only replace the incumbent if the
//     challenger's score leads the incumbent's fresh score by at least
//     the hysteresis threshold.
//  3. Execute the current action.
//
// An asset with zero actions makes Update a no-op.
func (a *Asset) Update(ctx *node.Context, ag *node.Agent, in *Instance) {
	if len(a.actions) == 0 {
		return
	}
	if !in.evaluated || ctx.Tick-in.LastEvaluationTick >= a.reevalEvery {
		a.evaluate(ctx, ag, in)
	}
	if in.Current < 0 {
		return
	}
	a.actions[in.Current].Action.Execute(ctx, ag)
}

func (a *Asset) evaluate(ctx *node.Context, ag *node.Agent, in *Instance) {
	best := 0
	for i := range a.actions {
		in.scores[i] = a.Score(ctx, ag, i)
		if in.scores[i] > in.scores[best] {
			best = i
		}
	}
	switch {
	case in.Current < 0:
		in.Current = best
	case best != in.Current:
		// Hysteresis: compare against the incumbent's score from this
		// same evaluation so a stale cache cannot pin a dead action. A
		// lead of exactly the threshold is enough to switch.
		if in.scores[best]-in.scores[in.Current] >= a.minScoreChange {
			in.Current = best
		}
	}
	in.LastEvaluationTick = ctx.Tick
	in.evaluated = true
	ctx.Trace.Add("utility", a.actions[in.Current].Name, int64(in.scores[in.Current]))
}
