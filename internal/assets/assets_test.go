package assets

import (
	"os"
	"path/filepath"
	"testing"

	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/fixmath"
	"tickmind.ai/internal/node"
)

func writeAsset(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const guardBoard = `{
  "type": "blackboard",
  "id": "guard_board",
  "keys": [
    {"name": "alerted", "type": "bool"},
    {"name": "patrol_timer", "type": "int"},
    {"name": "fear", "type": "scalar", "default": {"milli": 250}},
    {"name": "home", "type": "vec2", "default": {"vec2": [4000, 2000]}},
    {"name": "threat", "type": "entity"}
  ]
}`

func TestLoad_FullLibrary(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "guard_board.json", guardBoard)
	writeAsset(t, dir, "guard_tree.json", `{
	  "type": "behavior_tree",
	  "id": "guard_tree",
	  "blackboard": "guard_board",
	  "root": {
	    "kind": "selector",
	    "label": "root",
	    "children": [
	      {"kind": "sequence", "children": [
	        {"kind": "condition", "decision": {"kind": "has_target", "key": "threat"}},
	        {"kind": "action", "action": {"kind": "move_away_from", "target": "threat", "speed_milli": 500}}
	      ]},
	      {"kind": "sequence", "children": [
	        {"kind": "action", "action": {"kind": "pick_wander_point", "dest": "home", "radius_milli": 3000}},
	        {"kind": "move_until_arrived", "dest": "home", "speed_milli": 500, "tolerance_milli": 250}
	      ]}
	    ]
	  }
	}`)
	writeAsset(t, dir, "guard_fsm.json", `{
	  "type": "state_machine",
	  "id": "guard_fsm",
	  "blackboard": "guard_board",
	  "initial": "calm",
	  "states": [
	    {"name": "calm",
	     "during": [{"kind": "add_scalar", "key": "fear", "delta_milli": -10}],
	     "transitions": [{"decision": {"kind": "bool_key", "key": "alerted"}, "true": "alarmed"}]},
	    {"name": "alarmed",
	     "entry": [{"kind": "start_timer", "key": "patrol_timer", "duration_ticks": 20}],
	     "transitions": [{"decision": {"kind": "timer_expired", "key": "patrol_timer"}, "true": "calm"}]}
	  ]
	}`)
	writeAsset(t, dir, "guard_brain.json", `{
	  "type": "utility",
	  "id": "guard_brain",
	  "blackboard": "guard_board",
	  "reevaluate_every": 5,
	  "min_score_change_milli": 100,
	  "actions": [
	    {"name": "flee",
	     "action": {"kind": "move_away_from", "target": "threat", "speed_milli": 700},
	     "considerations": [
	       {"input": {"kind": "scalar_key", "key": "fear"},
	        "curve": {"kind": "polynomial", "exponent": 2},
	        "weight_milli": 1000}
	     ]},
	    {"name": "idle", "action": {"kind": "set_bool", "key": "alerted", "value_bool": false}}
	  ]
	}`)

	lib, err := Load(dir, NewRegistry())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	board, ok := lib.Blackboards["guard_board"]
	if !ok {
		t.Fatalf("blackboard not loaded")
	}
	if board.Digest == "" {
		t.Fatalf("blackboard digest empty")
	}
	tree, ok := lib.Trees["guard_tree"]
	if !ok || tree.Compiled == nil {
		t.Fatalf("tree not compiled")
	}
	if tree.Blackboard != "guard_board" {
		t.Fatalf("tree bound to %q", tree.Blackboard)
	}
	m, ok := lib.Machines["guard_fsm"]
	if !ok || m.Compiled == nil {
		t.Fatalf("machine not compiled")
	}
	u, ok := lib.Utilities["guard_brain"]
	if !ok || u.Compiled == nil {
		t.Fatalf("utility not compiled")
	}
	if u.Compiled.Len() != 2 {
		t.Fatalf("utility actions = %d, want 2", u.Compiled.Len())
	}
}

func TestLoad_DefaultsConvertMilli(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "board.json", guardBoard)

	lib, err := Load(dir, NewRegistry())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := lib.Blackboards["guard_board"].Def
	mem := bb.NewMemory(def)

	fear, _ := def.Resolve("fear")
	if got, want := mem.Scalar(fear), fixmath.FromMilli(250); got != want {
		t.Fatalf("fear default = %d, want %d", got, want)
	}
	home, _ := def.Resolve("home")
	if got := mem.Vec2(home); got.X != fixmath.FromInt(4) || got.Y != fixmath.FromInt(2) {
		t.Fatalf("home default = %+v", got)
	}
}

func TestLoad_RejectsUndeclaredKey(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "board.json", guardBoard)
	writeAsset(t, dir, "tree.json", `{
	  "type": "behavior_tree",
	  "id": "bad_tree",
	  "blackboard": "guard_board",
	  "root": {"kind": "condition", "decision": {"kind": "bool_key", "key": "no_such_key"}}
	}`)

	if _, err := Load(dir, NewRegistry()); err == nil {
		t.Fatalf("expected undeclared key to fail load")
	}
}

func TestLoad_RejectsKeyTypeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "board.json", guardBoard)
	writeAsset(t, dir, "tree.json", `{
	  "type": "behavior_tree",
	  "id": "bad_tree",
	  "blackboard": "guard_board",
	  "root": {"kind": "condition", "decision": {"kind": "bool_key", "key": "fear"}}
	}`)

	if _, err := Load(dir, NewRegistry()); err == nil {
		t.Fatalf("expected type mismatch to fail load")
	}
}

func TestLoad_RejectsUnknownNodeKind(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "board.json", guardBoard)
	writeAsset(t, dir, "tree.json", `{
	  "type": "behavior_tree",
	  "id": "bad_tree",
	  "blackboard": "guard_board",
	  "root": {"kind": "action", "action": {"kind": "summon_dragon"}}
	}`)

	if _, err := Load(dir, NewRegistry()); err == nil {
		t.Fatalf("expected unknown action kind to fail load")
	}
}

func TestLoad_RejectsMissingBlackboard(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "tree.json", `{
	  "type": "behavior_tree",
	  "id": "orphan",
	  "blackboard": "nowhere",
	  "root": {"kind": "sequence", "children": [
	    {"kind": "action", "action": {"kind": "add_host_scalar", "prop": "hp", "delta_milli": 100}}
	  ]}
	}`)

	if _, err := Load(dir, NewRegistry()); err == nil {
		t.Fatalf("expected missing blackboard to fail load")
	}
}

func TestLoad_SchemaRejectsBadPolicy(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "board.json", guardBoard)
	writeAsset(t, dir, "tree.json", `{
	  "type": "behavior_tree",
	  "id": "bad_tree",
	  "blackboard": "guard_board",
	  "root": {"kind": "parallel", "policy": "require_most", "children": [
	    {"kind": "action", "action": {"kind": "clear_entity", "key": "threat"}}
	  ]}
	}`)

	if _, err := Load(dir, NewRegistry()); err == nil {
		t.Fatalf("expected schema violation to fail load")
	}
}

func TestLoad_RejectsUnknownStateTarget(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "board.json", guardBoard)
	writeAsset(t, dir, "fsm.json", `{
	  "type": "state_machine",
	  "id": "bad_fsm",
	  "blackboard": "guard_board",
	  "initial": "calm",
	  "states": [
	    {"name": "calm",
	     "transitions": [{"decision": {"kind": "bool_key", "key": "alerted"}, "true": "panic_room"}]}
	  ]
	}`)

	if _, err := Load(dir, NewRegistry()); err == nil {
		t.Fatalf("expected dangling transition target to fail load")
	}
}

func TestLoad_CustomRegisteredKind(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "board.json", guardBoard)
	writeAsset(t, dir, "tree.json", `{
	  "type": "behavior_tree",
	  "id": "custom_tree",
	  "blackboard": "guard_board",
	  "root": {"kind": "condition", "decision": {"kind": "always"}}
	}`)

	reg := NewRegistry()
	reg.RegisterDecision("always", func(s *nodeSpec, def *bb.Definition) (node.Decision, error) {
		return node.Const(true), nil
	})
	lib, err := Load(dir, reg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if lib.Trees["custom_tree"].Compiled == nil {
		t.Fatalf("custom tree not compiled")
	}
}
