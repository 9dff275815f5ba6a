package hfsm

import (
	"encoding/binary"
	"hash"

	"tickmind.ai/internal/node"
)

// Instance is one agent's runtime state. The zero value is "not yet
// initialized"; Init must run before the first Update.
type Instance struct {
	Current       int
	EnteredAtTick uint64
	initialized   bool
}

// Initialized reports whether Init has run.
func (in *Instance) Initialized() bool { return in.initialized }

// DigestInto folds the instance state into h. Two replicas in different
// states, or the same state entered at different ticks, hash differently.
func (in *Instance) DigestInto(h hash.Hash) {
	var buf [17]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(int64(in.Current)))
	binary.LittleEndian.PutUint64(buf[8:], in.EnteredAtTick)
	if in.initialized {
		buf[16] = 1
	}
	h.Write(buf[:])
}

// Init enters the machine's initial state, running the entry actions of its
// full ancestor path (root-most first) exactly once. Called when the
// reasoning component is attached, before the first Update.
func (m *Machine) Init(ctx *node.Context, ag *node.Agent, in *Instance) {
	in.Current = m.initial
	in.EnteredAtTick = ctx.Tick
	in.initialized = true
	var buf [8]int
	for _, s := range m.path(m.initial, buf[:0]) {
		runActions(m.states[s].entry, ctx, ag)
	}
	ctx.Trace.Add("hfsm", m.states[m.initial].name, int64(m.initial))
}

// Update advances the machine one tick:
//
//  1. The current state's during-actions run, in order.
//  2. Transitions are evaluated in declared order, the current state's own
//     first, then each ancestor's as an inherited fallback.
//  3. The first transition resolving a non-None target wins. If the target
//     differs from the current state, exit and entry actions run along the
//     diff of the two ancestor paths: exits climb from the old state up to
//     (not including) the lowest common ancestor, entries descend to the
//     target. Evaluation stops for this tick either way; transitions never
//     chain within one Update, so an always-true cycle advances one hop per
//     tick instead of looping forever.
//
// A matched self-target stops evaluation without re-running entry or exit.
func (m *Machine) Update(ctx *node.Context, ag *node.Agent, in *Instance) {
	if !in.initialized {
		m.Init(ctx, ag, in)
		return
	}
	cur := &m.states[in.Current]
	ctx.EnteredAtTick = in.EnteredAtTick

	runActions(cur.during, ctx, ag)

	target := None
	for s := in.Current; s != None; s = m.states[s].parent {
		for _, tr := range m.states[s].transitions {
			branch := tr.FalseTarget
			if tr.Decision.Evaluate(ctx, ag) {
				branch = tr.TrueTarget
			}
			if branch == None {
				continue
			}
			target = branch
			break
		}
		if target != None {
			break
		}
	}
	if target == None || target == in.Current {
		return
	}
	m.switchTo(ctx, ag, in, target)
}

func (m *Machine) switchTo(ctx *node.Context, ag *node.Agent, in *Instance, target int) {
	var oldBuf, newBuf [8]int
	oldPath := m.path(in.Current, oldBuf[:0])
	newPath := m.path(target, newBuf[:0])

	// Longest common prefix of the two ancestor paths. Entry/exit actions
	// of states above the divergence point do not run: control never
	// crossed their boundary.
	common := 0
	for common < len(oldPath) && common < len(newPath) && oldPath[common] == newPath[common] {
		common++
	}

	for i := len(oldPath) - 1; i >= common; i-- {
		runActions(m.states[oldPath[i]].exit, ctx, ag)
	}
	in.Current = target
	in.EnteredAtTick = ctx.Tick
	for i := common; i < len(newPath); i++ {
		runActions(m.states[newPath[i]].entry, ctx, ag)
	}
	ctx.Trace.Add("hfsm", m.states[target].name, int64(target))
}

func runActions(actions []node.Action, ctx *node.Context, ag *node.Agent) {
	for _, a := range actions {
		a.Execute(ctx, ag)
	}
}
