package assets

import (
	"fmt"

	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/fixmath"
	"tickmind.ai/internal/node"
)

// Builders turn one authoring nodeSpec into an executable node, resolving
// blackboard key names against the asset's definition. Scalar parameters
// arrive in milli units and squared-range parameters are squared here, so
// tick-time code never sees an unsquared distance.
type (
	ActionBuilder   func(spec *nodeSpec, def *bb.Definition) (node.Action, error)
	DecisionBuilder func(spec *nodeSpec, def *bb.Definition) (node.Decision, error)
	FunctionBuilder func(spec *nodeSpec, def *bb.Definition) (node.Function[fixmath.Scalar], error)
)

// Registry maps authoring kind names to builders. NewRegistry seeds the
// built-in catalog; hosts add domain-specific kinds before loading.
type Registry struct {
	actions   map[string]ActionBuilder
	decisions map[string]DecisionBuilder
	functions map[string]FunctionBuilder
}

func NewRegistry() *Registry {
	r := &Registry{
		actions:   map[string]ActionBuilder{},
		decisions: map[string]DecisionBuilder{},
		functions: map[string]FunctionBuilder{},
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) RegisterAction(kind string, b ActionBuilder)     { r.actions[kind] = b }
func (r *Registry) RegisterDecision(kind string, b DecisionBuilder) { r.decisions[kind] = b }
func (r *Registry) RegisterFunction(kind string, b FunctionBuilder) { r.functions[kind] = b }

// BuildAction compiles an action spec.
func (r *Registry) BuildAction(spec *nodeSpec, def *bb.Definition) (node.Action, error) {
	b, ok := r.actions[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown action kind %q", spec.Kind)
	}
	return b(spec, def)
}

// BuildDecision compiles a decision spec.
func (r *Registry) BuildDecision(spec *nodeSpec, def *bb.Definition) (node.Decision, error) {
	b, ok := r.decisions[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown decision kind %q", spec.Kind)
	}
	return b(spec, def)
}

// BuildFunction compiles a scalar function spec.
func (r *Registry) BuildFunction(spec *nodeSpec, def *bb.Definition) (node.Function[fixmath.Scalar], error) {
	b, ok := r.functions[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown function kind %q", spec.Kind)
	}
	return b(spec, def)
}

func resolveKey(def *bb.Definition, field, name string, want bb.Type) (bb.Key, error) {
	if name == "" {
		return bb.Key{}, fmt.Errorf("missing %s key", field)
	}
	k, ok := def.Resolve(name)
	if !ok {
		return bb.Key{}, fmt.Errorf("%s references undeclared key %q", field, name)
	}
	if k.Type != want {
		return bb.Key{}, fmt.Errorf("%s key %q is %s, want %s", field, name, k.Type, want)
	}
	return k, nil
}

func milli(v int64) fixmath.Scalar { return fixmath.FromMilli(v) }

// rangeSq squares an authored linear range. Engines compare squared
// distances only, so the square happens once, here.
func rangeSq(milliRange int64) fixmath.Scalar {
	r := fixmath.FromMilli(milliRange)
	return fixmath.Mul(r, r)
}

func (r *Registry) registerBuiltins() {
	r.RegisterAction("set_bool", func(s *nodeSpec, def *bb.Definition) (node.Action, error) {
		k, err := resolveKey(def, "set_bool", s.Key, bb.TypeBool)
		if err != nil {
			return nil, err
		}
		return node.SetBool{Key: k, Value: node.Lit(s.ValueBool)}, nil
	})
	r.RegisterAction("set_scalar", func(s *nodeSpec, def *bb.Definition) (node.Action, error) {
		k, err := resolveKey(def, "set_scalar", s.Key, bb.TypeScalar)
		if err != nil {
			return nil, err
		}
		return node.SetScalar{Key: k, Value: node.Lit(milli(s.ValueMilli))}, nil
	})
	r.RegisterAction("add_scalar", func(s *nodeSpec, def *bb.Definition) (node.Action, error) {
		k, err := resolveKey(def, "add_scalar", s.Key, bb.TypeScalar)
		if err != nil {
			return nil, err
		}
		return node.AddScalar{Key: k, Delta: node.Lit(milli(s.DeltaMilli))}, nil
	})
	r.RegisterAction("start_timer", func(s *nodeSpec, def *bb.Definition) (node.Action, error) {
		k, err := resolveKey(def, "start_timer", s.Key, bb.TypeInt)
		if err != nil {
			return nil, err
		}
		return node.StartTimer{DeadlineKey: k, Duration: node.Lit(s.DurationTicks)}, nil
	})
	r.RegisterAction("acquire_target", func(s *nodeSpec, def *bb.Definition) (node.Action, error) {
		k, err := resolveKey(def, "acquire_target", s.Target, bb.TypeEntity)
		if err != nil {
			return nil, err
		}
		return node.AcquireTarget{TargetKey: k, RangeSq: node.Lit(rangeSq(s.RangeMilli))}, nil
	})
	r.RegisterAction("clear_entity", func(s *nodeSpec, def *bb.Definition) (node.Action, error) {
		k, err := resolveKey(def, "clear_entity", s.Key, bb.TypeEntity)
		if err != nil {
			return nil, err
		}
		return node.ClearEntity{Key: k}, nil
	})
	r.RegisterAction("move_toward", func(s *nodeSpec, def *bb.Definition) (node.Action, error) {
		k, err := resolveKey(def, "move_toward", s.Dest, bb.TypeVec2)
		if err != nil {
			return nil, err
		}
		return node.MoveToward{DestKey: k, Speed: node.Lit(milli(s.SpeedMilli))}, nil
	})
	r.RegisterAction("move_away_from", func(s *nodeSpec, def *bb.Definition) (node.Action, error) {
		k, err := resolveKey(def, "move_away_from", s.Target, bb.TypeEntity)
		if err != nil {
			return nil, err
		}
		return node.MoveAwayFrom{TargetKey: k, Speed: node.Lit(milli(s.SpeedMilli))}, nil
	})
	r.RegisterAction("pick_wander_point", func(s *nodeSpec, def *bb.Definition) (node.Action, error) {
		k, err := resolveKey(def, "pick_wander_point", s.Dest, bb.TypeVec2)
		if err != nil {
			return nil, err
		}
		return node.PickWanderPoint{DestKey: k, Radius: node.Lit(milli(s.RadiusMilli))}, nil
	})
	r.RegisterAction("add_host_scalar", func(s *nodeSpec, def *bb.Definition) (node.Action, error) {
		if s.Prop == "" {
			return nil, fmt.Errorf("add_host_scalar: missing prop")
		}
		return node.AddHostScalar{Prop: node.Property(s.Prop), Delta: node.Lit(milli(s.DeltaMilli))}, nil
	})

	r.RegisterDecision("bool_key", func(s *nodeSpec, def *bb.Definition) (node.Decision, error) {
		k, err := resolveKey(def, "bool_key", s.Key, bb.TypeBool)
		if err != nil {
			return nil, err
		}
		return node.BoolKey{Key: k}, nil
	})
	r.RegisterDecision("not", func(s *nodeSpec, def *bb.Definition) (node.Decision, error) {
		if s.Inner == nil {
			return nil, fmt.Errorf("not: missing inner decision")
		}
		inner, err := r.BuildDecision(s.Inner, def)
		if err != nil {
			return nil, err
		}
		return node.Not{Inner: inner}, nil
	})
	r.RegisterDecision("timer_expired", func(s *nodeSpec, def *bb.Definition) (node.Decision, error) {
		k, err := resolveKey(def, "timer_expired", s.Key, bb.TypeInt)
		if err != nil {
			return nil, err
		}
		return node.TimerExpired{DeadlineKey: k}, nil
	})
	r.RegisterDecision("time_in_state", func(s *nodeSpec, def *bb.Definition) (node.Decision, error) {
		return node.TimeInState{Ticks: s.Ticks}, nil
	})
	r.RegisterDecision("has_target", func(s *nodeSpec, def *bb.Definition) (node.Decision, error) {
		k, err := resolveKey(def, "has_target", s.Key, bb.TypeEntity)
		if err != nil {
			return nil, err
		}
		return node.HasTarget{Key: k}, nil
	})
	r.RegisterDecision("target_within", func(s *nodeSpec, def *bb.Definition) (node.Decision, error) {
		k, err := resolveKey(def, "target_within", s.Key, bb.TypeEntity)
		if err != nil {
			return nil, err
		}
		return node.TargetWithin{Key: k, RangeSq: node.Lit(rangeSq(s.RangeMilli))}, nil
	})
	r.RegisterDecision("any_entity_within", func(s *nodeSpec, def *bb.Definition) (node.Decision, error) {
		return node.AnyEntityWithin{RangeSq: node.Lit(rangeSq(s.RangeMilli))}, nil
	})
	r.RegisterDecision("scalar_below", func(s *nodeSpec, def *bb.Definition) (node.Decision, error) {
		if s.Input == nil {
			return nil, fmt.Errorf("scalar_below: missing input function")
		}
		fn, err := r.BuildFunction(s.Input, def)
		if err != nil {
			return nil, err
		}
		return node.ScalarBelow{Value: fn, Threshold: node.Lit(milli(s.ThresholdMilli))}, nil
	})

	r.RegisterFunction("scalar_key", func(s *nodeSpec, def *bb.Definition) (node.Function[fixmath.Scalar], error) {
		k, err := resolveKey(def, "scalar_key", s.Key, bb.TypeScalar)
		if err != nil {
			return nil, err
		}
		return node.ScalarKey{Key: k}, nil
	})
	r.RegisterFunction("normalized_property", func(s *nodeSpec, def *bb.Definition) (node.Function[fixmath.Scalar], error) {
		if s.Prop == "" {
			return nil, fmt.Errorf("normalized_property: missing prop")
		}
		if s.MaxMilli <= 0 {
			return nil, fmt.Errorf("normalized_property: max_milli must be positive")
		}
		return node.NormalizedProperty{Prop: node.Property(s.Prop), Max: milli(s.MaxMilli)}, nil
	})
	r.RegisterFunction("normalized_target_distance", func(s *nodeSpec, def *bb.Definition) (node.Function[fixmath.Scalar], error) {
		k, err := resolveKey(def, "normalized_target_distance", s.Key, bb.TypeEntity)
		if err != nil {
			return nil, err
		}
		if s.RangeMilli <= 0 {
			return nil, fmt.Errorf("normalized_target_distance: range_milli must be positive")
		}
		return node.NormalizedTargetDistance{Key: k, MaxSq: rangeSq(s.RangeMilli)}, nil
	})
}
