// Package node defines the polymorphic contracts every reasoning engine
// executes: actions, typed functions, decisions, considerations, response
// curves, and static-or-computed parameters. It is the seam third parties
// extend; everything here must stay deterministic (seeded RNG only, tick
// counts only, fixed-point only).
package node

import (
	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/det"
	"tickmind.ai/internal/fixmath"
)

// Property names a numeric or positional component exposed by the host
// simulation. Hosts resolve these outside the tick path.
type Property string

// Host is the call boundary into the host simulation's entity/component
// storage. All lookups must be deterministic; "nearest" style queries must
// break ties on ascending entity handle.
type Host interface {
	Exists(bb.Entity) bool
	Scalar(bb.Entity, Property) (fixmath.Scalar, bool)
	SetScalar(bb.Entity, Property, fixmath.Scalar) bool
	Position(bb.Entity) (fixmath.Vec2, bool)
	SetPosition(bb.Entity, fixmath.Vec2) bool
	Spawn(prototype string, at fixmath.Vec2) bb.Entity
	Despawn(bb.Entity)
	// Nearest returns the closest other entity within the squared radius,
	// ties broken by ascending handle. ok is false when none qualifies.
	Nearest(from bb.Entity, maxDistSq fixmath.Scalar) (bb.Entity, bool)
}

// Context carries one tick's evaluation inputs. It is rebuilt by the
// scheduler every tick and never retained by nodes.
type Context struct {
	Tick       uint64
	DeltaTicks uint64
	Seed       uint64

	Host Host
	RNG  *det.Source

	// EnteredAtTick is filled by the state machine engine before it
	// evaluates a state's decisions; zero elsewhere.
	EnteredAtTick uint64

	// Trace receives non-authoritative observations; nil when no collector
	// is attached.
	Trace *TraceBuffer
}

// Agent is one entity driving exactly one reasoning engine instance.
type Agent struct {
	Entity bb.Entity
	Memory *bb.Memory
}

// TraceBuffer accumulates per-tick observations for the debug collector.
// All methods are nil-safe so engines can emit unconditionally.
type TraceBuffer struct {
	Events []TraceEvent
}

// TraceEvent is one labeled observation.
type TraceEvent struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// Add appends an event. A nil buffer drops it.
func (b *TraceBuffer) Add(kind, label string, value int64) {
	if b == nil {
		return
	}
	b.Events = append(b.Events, TraceEvent{Kind: kind, Label: label, Value: value})
}

// Reset clears the buffer for reuse.
func (b *TraceBuffer) Reset() {
	if b == nil {
		return
	}
	b.Events = b.Events[:0]
}
