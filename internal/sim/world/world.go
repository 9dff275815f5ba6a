// Package world hosts the demo arena: a flat 2D field of agents whose
// entire behavior comes from loaded decision assets. It implements the
// host boundary the reasoning engines call through, and it is the unit of
// replica comparison: two worlds built from the same seed and assets must
// digest identically forever.
package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/det"
	"tickmind.ai/internal/engine"
	"tickmind.ai/internal/fixmath"
	"tickmind.ai/internal/node"
)

type entityState struct {
	prototype string
	pos       fixmath.Vec2

	// props iterates sorted by name wherever order is observable.
	props map[node.Property]fixmath.Scalar
}

// World owns entity storage, the tick counter and the reasoning driver.
// It is not goroutine-safe; the tick loop is the only writer.
type World struct {
	seed uint64
	tick uint64

	half fixmath.Scalar

	nextID bb.Entity
	ents   map[bb.Entity]*entityState
	order  []bb.Entity
	dirty  bool

	driver *engine.Driver
	rng    *det.Source
}

// New builds an empty arena. half is the arena half-width; positions are
// clamped into [-half, half] on both axes.
func New(seed uint64, half fixmath.Scalar) *World {
	w := &World{
		seed:   seed,
		half:   half,
		nextID: 1,
		ents:   make(map[bb.Entity]*entityState),
		rng:    det.NewSource(det.Derive(seed, 0, 0xa5)),
	}
	w.driver = engine.New(w, seed)
	return w
}

// Driver exposes the reasoning driver for attach/detach and debug views.
func (w *World) Driver() *engine.Driver { return w.driver }

// Tick returns the current tick counter.
func (w *World) Tick() uint64 { return w.tick }

// Spawn creates an entity with default combat props at a position. It is
// also the node.Host spawn hook, so prototypes spawned mid-tick get their
// handles in strictly ascending order.
func (w *World) Spawn(prototype string, at fixmath.Vec2) bb.Entity {
	id := w.nextID
	w.nextID++
	w.ents[id] = &entityState{
		prototype: prototype,
		pos:       w.clamp(at),
		props: map[node.Property]fixmath.Scalar{
			"hp":      fixmath.FromInt(100),
			"stamina": fixmath.One,
		},
	}
	w.dirty = true
	return id
}

// Despawn removes an entity and its reasoning component.
func (w *World) Despawn(e bb.Entity) {
	if _, ok := w.ents[e]; !ok {
		return
	}
	delete(w.ents, e)
	w.driver.Detach(e)
	w.dirty = true
}

func (w *World) Exists(e bb.Entity) bool {
	_, ok := w.ents[e]
	return ok
}

func (w *World) Scalar(e bb.Entity, p node.Property) (fixmath.Scalar, bool) {
	st, ok := w.ents[e]
	if !ok {
		return 0, false
	}
	v, ok := st.props[p]
	return v, ok
}

func (w *World) SetScalar(e bb.Entity, p node.Property, v fixmath.Scalar) bool {
	st, ok := w.ents[e]
	if !ok {
		return false
	}
	st.props[p] = v
	return true
}

func (w *World) Position(e bb.Entity) (fixmath.Vec2, bool) {
	st, ok := w.ents[e]
	if !ok {
		return fixmath.Vec2{}, false
	}
	return st.pos, true
}

func (w *World) SetPosition(e bb.Entity, pos fixmath.Vec2) bool {
	st, ok := w.ents[e]
	if !ok {
		return false
	}
	st.pos = w.clamp(pos)
	return true
}

// Nearest scans entities in ascending handle order, so equal distances
// resolve to the lowest handle on every replica.
func (w *World) Nearest(from bb.Entity, maxDistSq fixmath.Scalar) (bb.Entity, bool) {
	origin, ok := w.ents[from]
	if !ok {
		return 0, false
	}
	var (
		best   bb.Entity
		bestSq fixmath.Scalar
		found  bool
	)
	for _, id := range w.sortedOrder() {
		if id == from {
			continue
		}
		st := w.ents[id]
		dsq := st.pos.Sub(origin.pos).LenSq()
		if dsq > maxDistSq {
			continue
		}
		if !found || dsq < bestSq {
			best, bestSq, found = id, dsq, true
		}
	}
	return best, found
}

func (w *World) clamp(v fixmath.Vec2) fixmath.Vec2 {
	return fixmath.Vec2{
		X: fixmath.Clamp(v.X, -w.half, w.half),
		Y: fixmath.Clamp(v.Y, -w.half, w.half),
	}
}

func (w *World) sortedOrder() []bb.Entity {
	if w.dirty {
		w.order = w.order[:0]
		for id := range w.ents {
			w.order = append(w.order, id)
		}
		sort.Slice(w.order, func(i, j int) bool { return w.order[i] < w.order[j] })
		w.dirty = false
	}
	return w.order
}

// Step advances the simulation one tick: reasoning first, then world
// upkeep, then the tick counter.
func (w *World) Step() {
	w.driver.Step(w.tick, 1)
	w.upkeep()
	w.tick++
}

// upkeep is the non-reasoning part of the tick: passive stamina regen and
// hp clamping, in handle order.
func (w *World) upkeep() {
	for _, id := range w.sortedOrder() {
		st := w.ents[id]
		if s, ok := st.props["stamina"]; ok && s < fixmath.One {
			s += fixmath.FromMilli(5)
			if s > fixmath.One {
				s = fixmath.One
			}
			st.props["stamina"] = s
		}
		if hp, ok := st.props["hp"]; ok && hp < 0 {
			st.props["hp"] = 0
		}
	}
}

// Digest folds the full authoritative state (entities, components,
// blackboards) into a hex digest for the current tick.
func (w *World) Digest() string {
	h := sha256.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], w.tick)
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], w.seed)
	h.Write(buf[:])

	for _, id := range w.sortedOrder() {
		st := w.ents[id]
		binary.LittleEndian.PutUint64(buf[:], uint64(id))
		h.Write(buf[:])
		h.Write([]byte(st.prototype))
		binary.LittleEndian.PutUint64(buf[:], uint64(st.pos.X))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(st.pos.Y))
		h.Write(buf[:])

		names := make([]string, 0, len(st.props))
		for p := range st.props {
			names = append(names, string(p))
		}
		sort.Strings(names)
		for _, name := range names {
			h.Write([]byte(name))
			binary.LittleEndian.PutUint64(buf[:], uint64(st.props[node.Property(name)]))
			h.Write(buf[:])
		}
	}

	w.driver.DigestInto(h)
	return hex.EncodeToString(h.Sum(nil))
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int { return len(w.ents) }

// Entities returns live entity handles in ascending order.
func (w *World) Entities() []bb.Entity {
	return append([]bb.Entity(nil), w.sortedOrder()...)
}

// Prototype returns the name the entity was spawned under.
func (w *World) Prototype(e bb.Entity) string {
	st, ok := w.ents[e]
	if !ok {
		return ""
	}
	return st.prototype
}

// Describe returns a short human-readable summary of one entity.
func (w *World) Describe(e bb.Entity) (string, bool) {
	st, ok := w.ents[e]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s at (%d,%d)", st.prototype, st.pos.X, st.pos.Y), true
}
