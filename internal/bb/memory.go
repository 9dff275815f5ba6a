package bb

import (
	"encoding/binary"
	"hash"

	"tickmind.ai/internal/fixmath"
)

// Memory is one agent's blackboard storage: one contiguous slot array per
// type, sized to the Definition's per-type key counts. Slot array lengths
// are fixed for the agent's lifetime. Memory is exclusively owned by its
// agent; no locking, no cross-agent aliasing.
//
// Out-of-range slot access is a programming error. Accessors index the
// backing slices directly, so a bad Key panics via Go's bounds check rather
// than branching at tick time.
type Memory struct {
	def      *Definition
	bools    []bool
	ints     []int64
	scalars  []fixmath.Scalar
	vec2s    []fixmath.Vec2
	vec3s    []fixmath.Vec3
	entities []Entity
}

// NewMemory allocates slots per the Definition and populates the declared
// defaults. Two memories built from the same Definition are bit-identical.
func NewMemory(def *Definition) *Memory {
	m := &Memory{
		def:      def,
		bools:    make([]bool, def.Count(TypeBool)),
		ints:     make([]int64, def.Count(TypeInt)),
		scalars:  make([]fixmath.Scalar, def.Count(TypeScalar)),
		vec2s:    make([]fixmath.Vec2, def.Count(TypeVec2)),
		vec3s:    make([]fixmath.Vec3, def.Count(TypeVec3)),
		entities: make([]Entity, def.Count(TypeEntity)),
	}
	var next [numTypes]int
	for _, decl := range def.decls {
		slot := next[decl.Type]
		next[decl.Type]++
		switch decl.Type {
		case TypeBool:
			m.bools[slot] = decl.Default.Bool
		case TypeInt:
			m.ints[slot] = decl.Default.Int
		case TypeScalar:
			m.scalars[slot] = decl.Default.Scalar
		case TypeVec2:
			m.vec2s[slot] = decl.Default.Vec2
		case TypeVec3:
			m.vec3s[slot] = decl.Default.Vec3
		case TypeEntity:
			m.entities[slot] = decl.Default.Entity
		}
	}
	return m
}

// Definition returns the schema this memory was allocated from.
func (m *Memory) Definition() *Definition { return m.def }

func (m *Memory) Bool(k Key) bool      { return m.bools[k.Slot] }
func (m *Memory) SetBool(k Key, v bool) { m.bools[k.Slot] = v }

func (m *Memory) Int(k Key) int64       { return m.ints[k.Slot] }
func (m *Memory) SetInt(k Key, v int64) { m.ints[k.Slot] = v }

func (m *Memory) Scalar(k Key) fixmath.Scalar       { return m.scalars[k.Slot] }
func (m *Memory) SetScalar(k Key, v fixmath.Scalar) { m.scalars[k.Slot] = v }

func (m *Memory) Vec2(k Key) fixmath.Vec2       { return m.vec2s[k.Slot] }
func (m *Memory) SetVec2(k Key, v fixmath.Vec2) { m.vec2s[k.Slot] = v }

func (m *Memory) Vec3(k Key) fixmath.Vec3       { return m.vec3s[k.Slot] }
func (m *Memory) SetVec3(k Key, v fixmath.Vec3) { m.vec3s[k.Slot] = v }

func (m *Memory) Entity(k Key) Entity       { return m.entities[k.Slot] }
func (m *Memory) SetEntity(k Key, v Entity) { m.entities[k.Slot] = v }

// Digest folds the memory contents into h in declaration-independent but
// fixed order (by type, then slot). Used by determinism diffing and the
// trace collector.
func (m *Memory) Digest(h hash.Hash) {
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	for _, b := range m.bools {
		if b {
			writeU64(1)
		} else {
			writeU64(0)
		}
	}
	for _, v := range m.ints {
		writeU64(uint64(v))
	}
	for _, v := range m.scalars {
		writeU64(uint64(v))
	}
	for _, v := range m.vec2s {
		writeU64(uint64(v.X))
		writeU64(uint64(v.Y))
	}
	for _, v := range m.vec3s {
		writeU64(uint64(v.X))
		writeU64(uint64(v.Y))
		writeU64(uint64(v.Z))
	}
	for _, v := range m.entities {
		writeU64(uint64(v))
	}
}
