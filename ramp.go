package saugo

// Ramp describes the trajectory of one scalar parameter: a state value,
// and optionally a goal value to reach over a duration with a given
// curve shape. Without a goal the ramp is just the constant state
// value. The Ratio flag marks the value as a multiple of a parent
// parameter's current value instead of an absolute quantity; the vm
// scales it element-wise at render time.
type Ramp struct {
	Value   float32 `yaml:"value" json:"value"`
	Goal    float32 `yaml:"goal,omitempty" json:"goal,omitempty"`
	TimeMS  float32 `yaml:"time,omitempty" json:"time,omitempty"` // goal duration, milliseconds
	Shape   Shape   `yaml:"shape,omitempty" json:"shape,omitempty"`
	HasGoal bool    `yaml:"hasgoal,omitempty" json:"hasgoal,omitempty"`
	Ratio   bool    `yaml:"ratio,omitempty" json:"ratio,omitempty"`
}

// Constant returns a goalless ramp holding value.
func Constant(value float32) Ramp {
	return Ramp{Value: value}
}

// Sweep returns a ramp from value to goal over timeMS milliseconds.
func Sweep(value, goal, timeMS float32, shape Shape) Ramp {
	return Ramp{Value: value, Goal: goal, TimeMS: timeMS, Shape: shape, HasGoal: true}
}

// Scripts may give a bare number instead of the mapping form when the
// ramp is just a constant; marshalling emits the same shorthand back.

func (r Ramp) MarshalYAML() (interface{}, error) {
	if !r.HasGoal && !r.Ratio {
		return r.Value, nil
	}
	return rawRamp{Value: r.Value, Goal: goalPtr(r), TimeMS: r.TimeMS, Shape: r.Shape, Ratio: r.Ratio}, nil
}

func (r *Ramp) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value float32
	if err := unmarshal(&value); err == nil {
		*r = Constant(value)
		return nil
	}
	var raw rawRamp
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*r = raw.ramp()
	return nil
}

type rawRamp struct {
	Value  float32  `yaml:"value"`
	Goal   *float32 `yaml:"goal,omitempty"`
	TimeMS float32  `yaml:"time,omitempty"`
	Shape  Shape    `yaml:"shape,omitempty"`
	Ratio  bool     `yaml:"ratio,omitempty"`
}

func (raw rawRamp) ramp() Ramp {
	r := Ramp{Value: raw.Value, TimeMS: raw.TimeMS, Shape: raw.Shape, Ratio: raw.Ratio}
	if raw.Goal != nil {
		r.Goal = *raw.Goal
		r.HasGoal = true
	}
	return r
}

func goalPtr(r Ramp) *float32 {
	if !r.HasGoal {
		return nil
	}
	g := r.Goal
	return &g
}
