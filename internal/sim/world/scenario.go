package world

import (
	"fmt"
	"sort"

	"tickmind.ai/internal/assets"
	"tickmind.ai/internal/det"
	"tickmind.ai/internal/engine"
	"tickmind.ai/internal/fixmath"
)

// Populate spawns count agents and deals the library's engine assets out
// to them round-robin, in sorted asset-id order so every replica builds
// the identical population. Spawn positions come from a stream derived
// from the world seed.
func Populate(w *World, lib *assets.Library, count int) error {
	type pick struct {
		cfg engine.Config
		id  string
	}
	var picks []pick

	var treeIDs, machineIDs, utilityIDs []string
	for id := range lib.Trees {
		treeIDs = append(treeIDs, id)
	}
	for id := range lib.Machines {
		machineIDs = append(machineIDs, id)
	}
	for id := range lib.Utilities {
		utilityIDs = append(utilityIDs, id)
	}
	sort.Strings(treeIDs)
	sort.Strings(machineIDs)
	sort.Strings(utilityIDs)

	for _, id := range treeIDs {
		a := lib.Trees[id]
		picks = append(picks, pick{id: id, cfg: engine.Config{
			Paradigm:   engine.ParadigmBehaviorTree,
			Blackboard: lib.Blackboards[a.Blackboard].Def,
			Tree:       a.Compiled,
		}})
	}
	for _, id := range machineIDs {
		a := lib.Machines[id]
		picks = append(picks, pick{id: id, cfg: engine.Config{
			Paradigm:   engine.ParadigmStateMachine,
			Blackboard: lib.Blackboards[a.Blackboard].Def,
			Machine:    a.Compiled,
		}})
	}
	for _, id := range utilityIDs {
		a := lib.Utilities[id]
		picks = append(picks, pick{id: id, cfg: engine.Config{
			Paradigm:   engine.ParadigmUtility,
			Blackboard: lib.Blackboards[a.Blackboard].Def,
			Utility:    a.Compiled,
		}})
	}
	if len(picks) == 0 {
		return fmt.Errorf("world: library has no engine assets")
	}

	src := det.NewSource(det.Derive(w.seed, 0, 0x5e))
	for i := 0; i < count; i++ {
		x := fixmath.Scalar(src.NextInRange(int64(-w.half), int64(w.half)+1))
		y := fixmath.Scalar(src.NextInRange(int64(-w.half), int64(w.half)+1))
		p := picks[i%len(picks)]
		e := w.Spawn("agent:"+p.id, fixmath.Vec2{X: x, Y: y})
		if err := w.driver.Attach(e, p.cfg); err != nil {
			return err
		}
	}
	return nil
}
