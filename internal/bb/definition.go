// Package bb implements the blackboard: per-agent typed key/value memory
// shared by every node acting on that agent. A Definition is an immutable
// schema built once at asset-load time; Memory is the per-agent slot storage
// allocated from it. Keys resolve to direct slot indices so tick-time access
// is a plain slice index.
package bb

import (
	"fmt"

	"tickmind.ai/internal/fixmath"
)

// Type enumerates the closed set of blackboard value types.
type Type uint8

const (
	TypeBool Type = iota
	TypeInt
	TypeScalar
	TypeVec2
	TypeVec3
	TypeEntity

	numTypes
)

var typeNames = [numTypes]string{"bool", "int", "scalar", "vec2", "vec3", "entity"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseType maps an authoring type name to a Type.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown blackboard type %q", name)
}

// Entity is an opaque handle into the host simulation's entity storage.
// Zero means "no entity".
type Entity uint64

// Default holds a key's initial value; only the field matching the key's
// type is meaningful.
type Default struct {
	Bool   bool
	Int    int64
	Scalar fixmath.Scalar
	Vec2   fixmath.Vec2
	Vec3   fixmath.Vec3
	Entity Entity
}

// KeyDecl is one typed key declaration in a Definition.
type KeyDecl struct {
	Name    string
	Type    Type
	Default Default
}

// Key is a resolved handle: the key's type plus its slot in the per-type
// array. Resolve once at asset-compile time and cache; never resolve by name
// on a tick path.
type Key struct {
	Type Type
	Slot int
}

// Definition is an immutable blackboard schema shared by reference across
// every agent using it. It is never mutated after NewDefinition returns.
type Definition struct {
	decls  []KeyDecl
	byName map[string]Key
	counts [numTypes]int
}

// NewDefinition builds a Definition from ordered key declarations. Duplicate
// key names are an authoring error and are rejected here, at asset-build
// time, never at tick time.
func NewDefinition(decls []KeyDecl) (*Definition, error) {
	d := &Definition{
		decls:  make([]KeyDecl, len(decls)),
		byName: make(map[string]Key, len(decls)),
	}
	copy(d.decls, decls)
	for _, decl := range d.decls {
		if decl.Name == "" {
			return nil, fmt.Errorf("blackboard key with empty name")
		}
		if decl.Type >= numTypes {
			return nil, fmt.Errorf("blackboard key %q: invalid type", decl.Name)
		}
		if _, dup := d.byName[decl.Name]; dup {
			return nil, fmt.Errorf("duplicate blackboard key %q", decl.Name)
		}
		d.byName[decl.Name] = Key{Type: decl.Type, Slot: d.counts[decl.Type]}
		d.counts[decl.Type]++
	}
	return d, nil
}

// Resolve maps a key name to its handle.
func (d *Definition) Resolve(name string) (Key, bool) {
	k, ok := d.byName[name]
	return k, ok
}

// Keys returns the declarations in declaration order.
func (d *Definition) Keys() []KeyDecl {
	return d.decls
}

// Count returns the number of keys of the given type.
func (d *Definition) Count(t Type) int {
	if t >= numTypes {
		return 0
	}
	return d.counts[t]
}
