// Package assets is the asset-pipeline side of the engine boundary: it
// loads JSON asset files, validates them against the embedded JSON
// Schemas, and compiles them through the node registry into the resolved
// in-memory graphs the engines consume. Engines never parse anything at
// tick time; every authoring error surfaces here, at load.
package assets

// fileDoc is the top-level shape of one asset file; the "type" field
// selects which of the sections apply.
type fileDoc struct {
	Type string `json:"type"`
	ID   string `json:"id"`

	// type == "blackboard"
	Keys []keySpec `json:"keys,omitempty"`

	// shared by the three engine asset types
	Blackboard string `json:"blackboard,omitempty"`

	// type == "behavior_tree"
	Root *btNodeSpec `json:"root,omitempty"`

	// type == "state_machine"
	Initial string      `json:"initial,omitempty"`
	States  []stateSpec `json:"states,omitempty"`

	// type == "utility"
	ReevaluateEvery     uint64              `json:"reevaluate_every,omitempty"`
	MinScoreChangeMilli int64               `json:"min_score_change_milli,omitempty"`
	Actions             []utilityActionSpec `json:"actions,omitempty"`
}

type keySpec struct {
	Name    string       `json:"name"`
	Type    string       `json:"type"`
	Default *defaultSpec `json:"default,omitempty"`
}

type defaultSpec struct {
	Bool   bool     `json:"bool,omitempty"`
	Int    int64    `json:"int,omitempty"`
	Milli  int64    `json:"milli,omitempty"`
	Vec2   [2]int64 `json:"vec2,omitempty"`
	Vec3   [3]int64 `json:"vec3,omitempty"`
	Entity uint64   `json:"entity,omitempty"`
}

// nodeSpec is the authoring shape of an action, decision or scalar
// function. Kind selects the node; the remaining fields are that kind's
// parameters (scalar-valued ones in milli units).
type nodeSpec struct {
	Kind string `json:"kind"`

	Key    string `json:"key,omitempty"`
	Dest   string `json:"dest,omitempty"`
	Target string `json:"target,omitempty"`
	Prop   string `json:"prop,omitempty"`

	ValueBool      bool   `json:"value_bool,omitempty"`
	ValueMilli     int64  `json:"value_milli,omitempty"`
	DeltaMilli     int64  `json:"delta_milli,omitempty"`
	SpeedMilli     int64  `json:"speed_milli,omitempty"`
	RadiusMilli    int64  `json:"radius_milli,omitempty"`
	RangeMilli     int64  `json:"range_milli,omitempty"`
	MaxMilli       int64  `json:"max_milli,omitempty"`
	ThresholdMilli int64  `json:"threshold_milli,omitempty"`
	DurationTicks  int64  `json:"duration_ticks,omitempty"`
	Ticks          uint64 `json:"ticks,omitempty"`

	Inner *nodeSpec `json:"inner,omitempty"`
	Input *nodeSpec `json:"input,omitempty"`
}

type btNodeSpec struct {
	Kind     string       `json:"kind"`
	Label    string       `json:"label,omitempty"`
	Children []btNodeSpec `json:"children,omitempty"`

	Action   *nodeSpec `json:"action,omitempty"`
	Decision *nodeSpec `json:"decision,omitempty"`

	// kind == "move_until_arrived"
	Dest           string `json:"dest,omitempty"`
	SpeedMilli     int64  `json:"speed_milli,omitempty"`
	ToleranceMilli int64  `json:"tolerance_milli,omitempty"`

	// kind == "parallel"
	Policy string `json:"policy,omitempty"`

	// kind == "repeater"
	Times      int    `json:"times,omitempty"`
	Mode       string `json:"mode,omitempty"`
	CounterKey string `json:"counter_key,omitempty"`
}

type stateSpec struct {
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`

	Entry  []nodeSpec `json:"entry,omitempty"`
	During []nodeSpec `json:"during,omitempty"`
	Exit   []nodeSpec `json:"exit,omitempty"`

	Transitions []transitionSpec `json:"transitions,omitempty"`
}

type transitionSpec struct {
	Decision nodeSpec `json:"decision"`
	True     string   `json:"true,omitempty"`
	False    string   `json:"false,omitempty"`
}

type utilityActionSpec struct {
	Name           string              `json:"name"`
	Action         nodeSpec            `json:"action"`
	Considerations []considerationSpec `json:"considerations,omitempty"`
}

type considerationSpec struct {
	Input       nodeSpec  `json:"input"`
	Curve       curveSpec `json:"curve"`
	WeightMilli int64     `json:"weight_milli,omitempty"`
}

type curveSpec struct {
	Kind           string `json:"kind"`
	Exponent       int    `json:"exponent,omitempty"`
	ThresholdMilli int64  `json:"threshold_milli,omitempty"`
}
