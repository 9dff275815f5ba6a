package assets

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/bt"
	"tickmind.ai/internal/fixmath"
	"tickmind.ai/internal/hfsm"
	"tickmind.ai/internal/node"
	"tickmind.ai/internal/utility"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Blackboard is a loaded key layout plus the digest of its source bytes.
type Blackboard struct {
	ID     string
	Def    *bb.Definition
	Digest string
}

// Tree is a compiled behavior tree bound to a blackboard.
type Tree struct {
	ID         string
	Blackboard string
	Digest     string
	Compiled   *bt.Tree
}

// Machine is a compiled state machine bound to a blackboard.
type Machine struct {
	ID         string
	Blackboard string
	Digest     string
	Compiled   *hfsm.Machine
}

// Utility is a compiled utility reasoner bound to a blackboard.
type Utility struct {
	ID         string
	Blackboard string
	Digest     string
	Compiled   *utility.Asset
}

// Library holds every asset loaded from one config directory, keyed by id.
type Library struct {
	Blackboards map[string]*Blackboard
	Trees       map[string]*Tree
	Machines    map[string]*Machine
	Utilities   map[string]*Utility
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	kinds := []string{"blackboard", "behavior_tree", "state_machine", "utility"}
	out := make(map[string]*jsonschema.Schema, len(kinds))
	for _, k := range kinds {
		name := k + ".schema.json"
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("embedded schema %s: %w", name, err)
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(name, strings.NewReader(string(raw))); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		s, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		out[k] = s
	}
	return out, nil
}

// Load reads every *.json asset in dir, validates each against its
// embedded schema, and compiles the lot through the registry. Blackboards
// compile first so the engine assets can resolve keys against them. Any
// malformed asset fails the whole load; nothing partial ever reaches a
// running engine.
func Load(dir string, reg *Registry) (*Library, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	type pending struct {
		name string
		raw  []byte
		doc  fileDoc
	}
	var docs []pending
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var doc fileDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		schema, ok := schemas[doc.Type]
		if !ok {
			return nil, fmt.Errorf("%s: unknown asset type %q", name, doc.Type)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := schema.Validate(v); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if doc.ID == "" {
			return nil, fmt.Errorf("%s: empty id", name)
		}
		docs = append(docs, pending{name: name, raw: raw, doc: doc})
	}

	lib := &Library{
		Blackboards: map[string]*Blackboard{},
		Trees:       map[string]*Tree{},
		Machines:    map[string]*Machine{},
		Utilities:   map[string]*Utility{},
	}

	for _, p := range docs {
		if p.doc.Type != "blackboard" {
			continue
		}
		if _, dup := lib.Blackboards[p.doc.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate blackboard id %q", p.name, p.doc.ID)
		}
		def, err := buildBlackboard(&p.doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		lib.Blackboards[p.doc.ID] = &Blackboard{ID: p.doc.ID, Def: def, Digest: sha256Hex(p.raw)}
	}

	for _, p := range docs {
		if p.doc.Type == "blackboard" {
			continue
		}
		board, ok := lib.Blackboards[p.doc.Blackboard]
		if !ok {
			return nil, fmt.Errorf("%s: references undeclared blackboard %q", p.name, p.doc.Blackboard)
		}
		switch p.doc.Type {
		case "behavior_tree":
			if _, dup := lib.Trees[p.doc.ID]; dup {
				return nil, fmt.Errorf("%s: duplicate behavior tree id %q", p.name, p.doc.ID)
			}
			tree, err := buildTree(&p.doc, board.Def, reg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.name, err)
			}
			lib.Trees[p.doc.ID] = &Tree{ID: p.doc.ID, Blackboard: p.doc.Blackboard, Digest: sha256Hex(p.raw), Compiled: tree}
		case "state_machine":
			if _, dup := lib.Machines[p.doc.ID]; dup {
				return nil, fmt.Errorf("%s: duplicate state machine id %q", p.name, p.doc.ID)
			}
			m, err := buildMachine(&p.doc, board.Def, reg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.name, err)
			}
			lib.Machines[p.doc.ID] = &Machine{ID: p.doc.ID, Blackboard: p.doc.Blackboard, Digest: sha256Hex(p.raw), Compiled: m}
		case "utility":
			if _, dup := lib.Utilities[p.doc.ID]; dup {
				return nil, fmt.Errorf("%s: duplicate utility id %q", p.name, p.doc.ID)
			}
			u, err := buildUtility(&p.doc, board.Def, reg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.name, err)
			}
			lib.Utilities[p.doc.ID] = &Utility{ID: p.doc.ID, Blackboard: p.doc.Blackboard, Digest: sha256Hex(p.raw), Compiled: u}
		}
	}
	return lib, nil
}

func buildBlackboard(doc *fileDoc) (*bb.Definition, error) {
	decls := make([]bb.KeyDecl, 0, len(doc.Keys))
	for _, k := range doc.Keys {
		t, err := bb.ParseType(k.Type)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k.Name, err)
		}
		d := bb.Default{}
		if k.Default != nil {
			switch t {
			case bb.TypeBool:
				d.Bool = k.Default.Bool
			case bb.TypeInt:
				d.Int = k.Default.Int
			case bb.TypeScalar:
				d.Scalar = fixmath.FromMilli(k.Default.Milli)
			case bb.TypeVec2:
				d.Vec2 = fixmath.Vec2{
					X: fixmath.FromMilli(k.Default.Vec2[0]),
					Y: fixmath.FromMilli(k.Default.Vec2[1]),
				}
			case bb.TypeVec3:
				d.Vec3 = fixmath.Vec3{
					X: fixmath.FromMilli(k.Default.Vec3[0]),
					Y: fixmath.FromMilli(k.Default.Vec3[1]),
					Z: fixmath.FromMilli(k.Default.Vec3[2]),
				}
			case bb.TypeEntity:
				d.Entity = bb.Entity(k.Default.Entity)
			}
		}
		decls = append(decls, bb.KeyDecl{Name: k.Name, Type: t, Default: d})
	}
	return bb.NewDefinition(decls)
}

func buildTree(doc *fileDoc, def *bb.Definition, reg *Registry) (*bt.Tree, error) {
	if doc.Root == nil {
		return nil, fmt.Errorf("behavior tree %q: missing root", doc.ID)
	}
	root, err := buildBTDef(doc.Root, def, reg)
	if err != nil {
		return nil, err
	}
	return bt.Compile(root)
}

func buildBTDef(spec *btNodeSpec, def *bb.Definition, reg *Registry) (bt.Def, error) {
	label := spec.Label
	if label == "" {
		label = spec.Kind
	}
	children := func() ([]bt.Def, error) {
		out := make([]bt.Def, 0, len(spec.Children))
		for i := range spec.Children {
			c, err := buildBTDef(&spec.Children[i], def, reg)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	}
	one := func() (bt.Def, error) {
		if len(spec.Children) != 1 {
			return bt.Def{}, fmt.Errorf("%s %q: wants exactly one child, got %d", spec.Kind, label, len(spec.Children))
		}
		return buildBTDef(&spec.Children[0], def, reg)
	}

	switch spec.Kind {
	case "action":
		if spec.Action == nil {
			return bt.Def{}, fmt.Errorf("action %q: missing action", label)
		}
		a, err := reg.BuildAction(spec.Action, def)
		if err != nil {
			return bt.Def{}, fmt.Errorf("action %q: %w", label, err)
		}
		return bt.ActionLeaf(label, a), nil
	case "condition":
		if spec.Decision == nil {
			return bt.Def{}, fmt.Errorf("condition %q: missing decision", label)
		}
		d, err := reg.BuildDecision(spec.Decision, def)
		if err != nil {
			return bt.Def{}, fmt.Errorf("condition %q: %w", label, err)
		}
		return bt.ConditionLeaf(label, d), nil
	case "move_until_arrived":
		k, err := resolveKey(def, "move_until_arrived", spec.Dest, bb.TypeVec2)
		if err != nil {
			return bt.Def{}, fmt.Errorf("%q: %w", label, err)
		}
		task := bt.MoveUntilArrived{
			DestKey:     k,
			Speed:       node.Lit(milli(spec.SpeedMilli)),
			ToleranceSq: rangeSq(spec.ToleranceMilli),
		}
		return bt.TaskLeaf(label, task), nil
	case "sequence":
		cs, err := children()
		if err != nil {
			return bt.Def{}, err
		}
		return bt.Sequence(label, cs...), nil
	case "selector":
		cs, err := children()
		if err != nil {
			return bt.Def{}, err
		}
		return bt.Selector(label, cs...), nil
	case "selector_random":
		cs, err := children()
		if err != nil {
			return bt.Def{}, err
		}
		return bt.SelectorRandom(label, cs...), nil
	case "parallel":
		var policy bt.Policy
		switch spec.Policy {
		case "require_all":
			policy = bt.PolicyRequireAll
		case "require_any":
			policy = bt.PolicyRequireAny
		default:
			return bt.Def{}, fmt.Errorf("parallel %q: policy must be require_all or require_any, got %q", label, spec.Policy)
		}
		cs, err := children()
		if err != nil {
			return bt.Def{}, err
		}
		return bt.Parallel(label, policy, cs...), nil
	case "inverter":
		c, err := one()
		if err != nil {
			return bt.Def{}, err
		}
		return bt.Inverter(c), nil
	case "return_success":
		c, err := one()
		if err != nil {
			return bt.Def{}, err
		}
		return bt.ReturnSuccess(c), nil
	case "return_failure":
		c, err := one()
		if err != nil {
			return bt.Def{}, err
		}
		return bt.ReturnFailure(c), nil
	case "repeater":
		c, err := one()
		if err != nil {
			return bt.Def{}, err
		}
		if spec.Times < 1 {
			return bt.Def{}, fmt.Errorf("repeater %q: times must be >= 1", label)
		}
		switch spec.Mode {
		case "per_tick":
			return bt.Repeater(spec.Times, bt.RepeatPerTick, bb.Key{}, c), nil
		case "across_ticks":
			k, err := resolveKey(def, "repeater counter", spec.CounterKey, bb.TypeInt)
			if err != nil {
				return bt.Def{}, fmt.Errorf("%q: %w", label, err)
			}
			return bt.Repeater(spec.Times, bt.RepeatAcrossTicks, k, c), nil
		default:
			return bt.Def{}, fmt.Errorf("repeater %q: mode must be per_tick or across_ticks, got %q", label, spec.Mode)
		}
	default:
		return bt.Def{}, fmt.Errorf("unknown behavior tree node kind %q", spec.Kind)
	}
}

func buildMachine(doc *fileDoc, def *bb.Definition, reg *Registry) (*hfsm.Machine, error) {
	index := make(map[string]int, len(doc.States))
	for i, s := range doc.States {
		if s.Name == "" {
			return nil, fmt.Errorf("state %d: empty name", i)
		}
		if _, dup := index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate state %q", s.Name)
		}
		index[s.Name] = i
	}

	resolveState := func(who, name string, optional bool) (int, error) {
		if name == "" {
			if optional {
				return hfsm.None, nil
			}
			return 0, fmt.Errorf("%s: empty state reference", who)
		}
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("%s references unknown state %q", who, name)
		}
		return i, nil
	}

	buildActions := func(who string, specs []nodeSpec) ([]node.Action, error) {
		if len(specs) == 0 {
			return nil, nil
		}
		out := make([]node.Action, 0, len(specs))
		for i := range specs {
			a, err := reg.BuildAction(&specs[i], def)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", who, err)
			}
			out = append(out, a)
		}
		return out, nil
	}

	states := make([]hfsm.StateDef, 0, len(doc.States))
	for _, s := range doc.States {
		parent, err := resolveState("state "+s.Name, s.Parent, true)
		if err != nil {
			return nil, err
		}
		entry, err := buildActions(s.Name+" entry", s.Entry)
		if err != nil {
			return nil, err
		}
		during, err := buildActions(s.Name+" during", s.During)
		if err != nil {
			return nil, err
		}
		exit, err := buildActions(s.Name+" exit", s.Exit)
		if err != nil {
			return nil, err
		}
		transitions := make([]hfsm.Transition, 0, len(s.Transitions))
		for ti, tr := range s.Transitions {
			who := fmt.Sprintf("state %s transition %d", s.Name, ti)
			d, err := reg.BuildDecision(&tr.Decision, def)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", who, err)
			}
			tt, err := resolveState(who, tr.True, true)
			if err != nil {
				return nil, err
			}
			ft, err := resolveState(who, tr.False, true)
			if err != nil {
				return nil, err
			}
			if tt == hfsm.None && ft == hfsm.None {
				return nil, fmt.Errorf("%s: neither branch targets a state", who)
			}
			transitions = append(transitions, hfsm.Transition{Decision: d, TrueTarget: tt, FalseTarget: ft})
		}
		states = append(states, hfsm.StateDef{
			Name:        s.Name,
			Parent:      parent,
			Entry:       entry,
			During:      during,
			Exit:        exit,
			Transitions: transitions,
		})
	}

	initial, err := resolveState("initial", doc.Initial, false)
	if err != nil {
		return nil, err
	}
	return hfsm.Compile(hfsm.MachineDef{States: states, Initial: initial})
}

func buildUtility(doc *fileDoc, def *bb.Definition, reg *Registry) (*utility.Asset, error) {
	actions := make([]utility.ScoredAction, 0, len(doc.Actions))
	for _, a := range doc.Actions {
		if a.Name == "" {
			return nil, fmt.Errorf("utility action: empty name")
		}
		exec, err := reg.BuildAction(&a.Action, def)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", a.Name, err)
		}
		cons := make([]node.Consideration, 0, len(a.Considerations))
		for ci, c := range a.Considerations {
			input, err := reg.BuildFunction(&c.Input, def)
			if err != nil {
				return nil, fmt.Errorf("action %q consideration %d: %w", a.Name, ci, err)
			}
			kind, err := node.ParseCurveKind(c.Curve.Kind)
			if err != nil {
				return nil, fmt.Errorf("action %q consideration %d: %w", a.Name, ci, err)
			}
			cons = append(cons, node.Consideration{
				Input: input,
				Curve: node.Curve{
					Kind:      kind,
					Exponent:  c.Curve.Exponent,
					Threshold: fixmath.FromMilli(c.Curve.ThresholdMilli),
				},
				Weight: fixmath.FromMilli(c.WeightMilli),
			})
		}
		actions = append(actions, utility.ScoredAction{Name: a.Name, Considerations: cons, Action: exec})
	}
	return utility.Compile(actions, doc.ReevaluateEvery, fixmath.FromMilli(doc.MinScoreChangeMilli))
}
