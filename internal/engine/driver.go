// Package engine ties the three reasoning engines together behind one tick
// driver. The host simulation calls Step once per deterministic tick; the
// driver iterates agents in ascending entity-handle order, never map or
// insertion order, and dispatches each to its
// configured paradigm. That iteration order is part of the determinism
// contract: it also fixes the consumption order of the shared seeded RNG.
package engine

import (
	"encoding/binary"
	"fmt"
	"hash"
	"sort"

	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/bt"
	"tickmind.ai/internal/det"
	"tickmind.ai/internal/fixmath"
	"tickmind.ai/internal/hfsm"
	"tickmind.ai/internal/node"
	"tickmind.ai/internal/utility"
)

// Paradigm selects which reasoning engine drives an agent.
type Paradigm uint8

const (
	ParadigmBehaviorTree Paradigm = iota
	ParadigmStateMachine
	ParadigmUtility
)

func (p Paradigm) String() string {
	switch p {
	case ParadigmBehaviorTree:
		return "behavior_tree"
	case ParadigmStateMachine:
		return "state_machine"
	case ParadigmUtility:
		return "utility"
	}
	return fmt.Sprintf("paradigm(%d)", uint8(p))
}

// Config is the per-agent reasoning configuration: exactly one asset,
// matching the paradigm, plus the blackboard schema.
type Config struct {
	Paradigm   Paradigm
	Blackboard *bb.Definition

	Tree    *bt.Tree
	Machine *hfsm.Machine
	Utility *utility.Asset
}

// Collector receives non-authoritative per-agent decision records. It must
// never influence decisions; a nil collector is the common case.
type Collector interface {
	Record(tick uint64, entity bb.Entity, paradigm string, events []node.TraceEvent)
}

type agentSlot struct {
	agent node.Agent
	cfg   Config

	hfsmState    hfsm.Instance
	utilityState *utility.Instance
	lastBT       bt.Status
}

// Driver owns the agent registry and the per-tick dispatch.
type Driver struct {
	host node.Host
	seed uint64
	rng  *det.Source

	agents map[bb.Entity]*agentSlot
	order  []bb.Entity
	dirty  bool

	collector Collector
	traceBuf  node.TraceBuffer
}

// New builds a driver bound to a host and a simulation seed.
func New(host node.Host, seed uint64) *Driver {
	return &Driver{
		host:   host,
		seed:   seed,
		rng:    det.NewSource(seed),
		agents: make(map[bb.Entity]*agentSlot),
	}
}

// SetCollector attaches the debug collector. Passing nil detaches it.
func (d *Driver) SetCollector(c Collector) { d.collector = c }

// Attach creates the agent's runtime state: blackboard memory from the
// definition, zeroed engine state. The HFSM initial entry actions run on
// the agent's first tick, not here, so attach order inside a tick cannot
// reorder side effects. This is the OnComponentAdded hook.
func (d *Driver) Attach(entity bb.Entity, cfg Config) error {
	if _, exists := d.agents[entity]; exists {
		return fmt.Errorf("engine: entity %d already has a reasoning component", entity)
	}
	if cfg.Blackboard == nil {
		return fmt.Errorf("engine: entity %d: nil blackboard definition", entity)
	}
	slot := &agentSlot{
		agent: node.Agent{Entity: entity, Memory: bb.NewMemory(cfg.Blackboard)},
		cfg:   cfg,
	}
	switch cfg.Paradigm {
	case ParadigmBehaviorTree:
		if cfg.Tree == nil {
			return fmt.Errorf("engine: entity %d: behavior tree paradigm without tree", entity)
		}
	case ParadigmStateMachine:
		if cfg.Machine == nil {
			return fmt.Errorf("engine: entity %d: state machine paradigm without machine", entity)
		}
	case ParadigmUtility:
		if cfg.Utility == nil {
			return fmt.Errorf("engine: entity %d: utility paradigm without asset", entity)
		}
		slot.utilityState = utility.NewInstance(cfg.Utility)
	default:
		return fmt.Errorf("engine: entity %d: unknown paradigm %d", entity, cfg.Paradigm)
	}
	d.agents[entity] = slot
	d.dirty = true
	return nil
}

// Detach frees the agent's runtime state. This is the OnComponentRemoved
// hook; the engine never outlives the entity.
func (d *Driver) Detach(entity bb.Entity) {
	if _, ok := d.agents[entity]; !ok {
		return
	}
	delete(d.agents, entity)
	d.dirty = true
}

// Len returns the number of attached agents.
func (d *Driver) Len() int { return len(d.agents) }

func (d *Driver) sortedOrder() []bb.Entity {
	if d.dirty {
		d.order = d.order[:0]
		for e := range d.agents {
			d.order = append(d.order, e)
		}
		sort.Slice(d.order, func(i, j int) bool { return d.order[i] < d.order[j] })
		d.dirty = false
	}
	return d.order
}

// Step runs one deterministic tick over all agents. No call in here
// blocks, sleeps or touches wall-clock; time is the tick counter.
func (d *Driver) Step(tick, deltaTicks uint64) {
	ctx := node.Context{
		Tick:       tick,
		DeltaTicks: deltaTicks,
		Seed:       d.seed,
		Host:       d.host,
		RNG:        d.rng,
	}
	for _, entity := range d.sortedOrder() {
		slot, ok := d.agents[entity]
		if !ok {
			continue
		}
		if d.collector != nil {
			d.traceBuf.Reset()
			ctx.Trace = &d.traceBuf
		} else {
			ctx.Trace = nil
		}
		ctx.EnteredAtTick = 0

		switch slot.cfg.Paradigm {
		case ParadigmBehaviorTree:
			slot.lastBT = slot.cfg.Tree.Tick(&ctx, &slot.agent)
		case ParadigmStateMachine:
			slot.cfg.Machine.Update(&ctx, &slot.agent, &slot.hfsmState)
		case ParadigmUtility:
			slot.cfg.Utility.Update(&ctx, &slot.agent, slot.utilityState)
		}

		if d.collector != nil {
			d.collector.Record(tick, entity, slot.cfg.Paradigm.String(), d.traceBuf.Events)
		}
	}
}

// DebugSnapshot is the read-only view exposed to non-authoritative
// tooling. It is excluded from the determinism contract.
type DebugSnapshot struct {
	Entity   bb.Entity         `json:"entity"`
	Paradigm string            `json:"paradigm"`
	State    string            `json:"state,omitempty"`
	Action   string            `json:"action,omitempty"`
	BTStatus string            `json:"bt_status,omitempty"`
	Scores   []fixmath.Scalar  `json:"scores,omitempty"`
	Memory   map[string]string `json:"memory,omitempty"`
}

// Snapshot returns the agent's debug view, or false if the entity has no
// reasoning component.
func (d *Driver) Snapshot(entity bb.Entity) (DebugSnapshot, bool) {
	slot, ok := d.agents[entity]
	if !ok {
		return DebugSnapshot{}, false
	}
	snap := DebugSnapshot{
		Entity:   entity,
		Paradigm: slot.cfg.Paradigm.String(),
		Memory:   dumpMemory(slot.agent.Memory),
	}
	switch slot.cfg.Paradigm {
	case ParadigmBehaviorTree:
		snap.BTStatus = slot.lastBT.String()
	case ParadigmStateMachine:
		snap.State = slot.cfg.Machine.StateName(slot.hfsmState.Current)
	case ParadigmUtility:
		snap.Action = slot.cfg.Utility.ActionName(slot.utilityState.Current)
		snap.Scores = append([]fixmath.Scalar(nil), slot.utilityState.Scores()...)
	}
	return snap, true
}

// Entities returns the attached entities in iteration order.
func (d *Driver) Entities() []bb.Entity {
	return append([]bb.Entity(nil), d.sortedOrder()...)
}

func dumpMemory(m *bb.Memory) map[string]string {
	out := make(map[string]string)
	for _, decl := range m.Definition().Keys() {
		k, _ := m.Definition().Resolve(decl.Name)
		switch decl.Type {
		case bb.TypeBool:
			out[decl.Name] = fmt.Sprintf("%v", m.Bool(k))
		case bb.TypeInt:
			out[decl.Name] = fmt.Sprintf("%d", m.Int(k))
		case bb.TypeScalar:
			out[decl.Name] = fmt.Sprintf("%d", m.Scalar(k))
		case bb.TypeVec2:
			v := m.Vec2(k)
			out[decl.Name] = fmt.Sprintf("(%d,%d)", v.X, v.Y)
		case bb.TypeVec3:
			v := m.Vec3(k)
			out[decl.Name] = fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
		case bb.TypeEntity:
			out[decl.Name] = fmt.Sprintf("%d", m.Entity(k))
		}
	}
	return out
}

// DigestInto folds every agent's blackboard and paradigm runtime state
// into h in iteration order, for dual-simulation determinism diffing. Two
// replicas whose agents sit in different states, hold different actions or
// last returned different tree statuses must hash differently even when
// every blackboard agrees.
func (d *Driver) DigestInto(h hash.Hash) {
	var buf [9]byte
	for _, entity := range d.sortedOrder() {
		slot := d.agents[entity]
		binary.LittleEndian.PutUint64(buf[:8], uint64(entity))
		buf[8] = byte(slot.cfg.Paradigm)
		h.Write(buf[:])
		slot.agent.Memory.Digest(h)
		switch slot.cfg.Paradigm {
		case ParadigmBehaviorTree:
			h.Write([]byte{byte(slot.lastBT)})
		case ParadigmStateMachine:
			slot.hfsmState.DigestInto(h)
		case ParadigmUtility:
			slot.utilityState.DigestInto(h)
		}
	}
}
