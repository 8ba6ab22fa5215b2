// Package saugo implements the core of the SAU audio-synthesis
// language: a parsed, timed score (a Script) compiles into a flat,
// ID-indexed Program of voice/operator events (package vm), which a
// Generator interprets sample-by-sample into interleaved 16-bit stereo
// PCM. The text scanner/parser front end is out of scope; scripts
// travel in their parsed form, conventionally serialized as YAML.
package saugo

import (
	"errors"
	"fmt"
)

type (
	// TimeMode tells how an operator's duration was given in the script.
	TimeMode int

	// TimeSpec is an operator duration. The zero value means the duration
	// was left implicit: such a duration resolves at compile time to the
	// default duration on a carrier and to linked-to-parent on a
	// modulator.
	TimeSpec struct {
		MS   float32
		Mode TimeMode
	}

	// OpData is the script-side description of one operator. The first
	// occurrence defines the operator (optionally under a Name); later
	// events may carry further OpData records with Ref pointing back to
	// that name, updating only the fields listed in Set. Modulator lists
	// nest child OpData records per modulation role; a child may itself
	// be a Ref back to an already defined operator, which is how the
	// script graph expresses shared and cyclic modulation.
	OpData struct {
		Name string   `yaml:"name,omitempty"`
		Ref  string   `yaml:"ref,omitempty"`
		Set  []string `yaml:"set,omitempty,flow"`

		Wave    Wave     `yaml:"wave,omitempty"`
		Time    TimeSpec `yaml:"time,omitempty"`
		Silence float32  `yaml:"silence,omitempty"` // leading silence, milliseconds
		Freq    Ramp     `yaml:"freq,omitempty"`
		Freq2   Ramp     `yaml:"freq2,omitempty"` // frequency-modulation swing target
		Amp     Ramp     `yaml:"amp,omitempty"`
		Amp2    Ramp     `yaml:"amp2,omitempty"` // amplitude-modulation swing target
		Phase   float32  `yaml:"phase,omitempty"` // initial phase, 0..1 of a cycle

		FMods []*OpData `yaml:"fmods,omitempty"`
		PMods []*OpData `yaml:"pmods,omitempty"`
		AMods []*OpData `yaml:"amods,omitempty"`
	}

	// ScriptEvent is one timed step of the score: a wait relative to the
	// previous event, the root (carrier) operators of the voice it
	// concerns, an optional voice-level pan ramp and a flag that the
	// top-level carrier set changed.
	ScriptEvent struct {
		Wait     float32   `yaml:"wait"` // milliseconds since the previous event
		Pan      *Ramp     `yaml:"pan,omitempty"`
		NewGraph bool      `yaml:"newgraph,omitempty"`
		Ops      []*OpData `yaml:"ops"`
	}

	// Script is the parsed, timed form of a whole score.
	Script struct {
		Events []ScriptEvent `yaml:"events"`
	}
)

const (
	TimeImplicit TimeMode = iota
	TimeSet
	TimeLinked
)

// DefaultTimeMS is the duration a carrier gets when the script leaves
// its duration implicit.
const DefaultTimeMS = 1000

// OpFields lists the per-operator field names a script update may name
// in OpData.Set. Their order matches the delta bitmask in package vm.
var OpFields = []string{
	"wave", "time", "silence", "freq", "freq2", "amp", "amp2", "phase",
	"fmods", "pmods", "amods",
}

func (t TimeSpec) MarshalYAML() (interface{}, error) {
	switch t.Mode {
	case TimeSet:
		return t.MS, nil
	case TimeLinked:
		return "linked", nil
	}
	return "implicit", nil
}

func (t *TimeSpec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var ms float32
	if err := unmarshal(&ms); err == nil {
		*t = TimeSpec{MS: ms, Mode: TimeSet}
		return nil
	}
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	switch name {
	case "implicit":
		*t = TimeSpec{}
	case "linked":
		*t = TimeSpec{Mode: TimeLinked}
	default:
		return fmt.Errorf("unknown time mode %q", name)
	}
	return nil
}

// Copy makes a deep copy of a Script.
func (s *Script) Copy() Script {
	events := make([]ScriptEvent, len(s.Events))
	for i, e := range s.Events {
		events[i] = e.Copy()
	}
	return Script{Events: events}
}

// Copy makes a deep copy of a ScriptEvent.
func (e *ScriptEvent) Copy() ScriptEvent {
	ret := ScriptEvent{Wait: e.Wait, NewGraph: e.NewGraph}
	if e.Pan != nil {
		pan := *e.Pan
		ret.Pan = &pan
	}
	ret.Ops = copyOps(e.Ops)
	return ret
}

// Copy makes a deep copy of an OpData and its nested modulators.
func (o *OpData) Copy() *OpData {
	ret := *o
	ret.Set = append([]string(nil), o.Set...)
	ret.FMods = copyOps(o.FMods)
	ret.PMods = copyOps(o.PMods)
	ret.AMods = copyOps(o.AMods)
	return &ret
}

func copyOps(ops []*OpData) []*OpData {
	if ops == nil {
		return nil
	}
	ret := make([]*OpData, len(ops))
	for i, o := range ops {
		ret[i] = o.Copy()
	}
	return ret
}

// Validate checks the structural health of a script: non-negative
// waits, unique operator names, references that resolve to an earlier
// definition, and update field lists that name known fields. The
// compile step in package vm assumes a script that passes here.
func (s *Script) Validate() error {
	if len(s.Events) == 0 {
		return errors.New("script contains no events")
	}
	defined := map[string]bool{}
	for i, e := range s.Events {
		if e.Wait < 0 {
			return fmt.Errorf("event %d: wait time is negative", i)
		}
		for _, op := range e.Ops {
			if err := validateOp(op, defined); err != nil {
				return fmt.Errorf("event %d: %v", i, err)
			}
		}
	}
	return nil
}

func validateOp(op *OpData, defined map[string]bool) error {
	if op.Name != "" && op.Ref != "" {
		return fmt.Errorf("operator %q both defines a name and references %q", op.Name, op.Ref)
	}
	if op.Ref != "" {
		if !defined[op.Ref] {
			return fmt.Errorf("reference to undefined operator %q", op.Ref)
		}
		for _, f := range op.Set {
			if !knownField(f) {
				return fmt.Errorf("operator %q: unknown field %q in set list", op.Ref, f)
			}
		}
	} else {
		if len(op.Set) > 0 {
			return errors.New("set list given for an operator definition")
		}
		if op.Name != "" {
			if defined[op.Name] {
				return fmt.Errorf("operator %q defined twice", op.Name)
			}
			defined[op.Name] = true
		}
	}
	for _, list := range [][]*OpData{op.FMods, op.PMods, op.AMods} {
		for _, m := range list {
			if err := validateOp(m, defined); err != nil {
				return err
			}
		}
	}
	return nil
}

func knownField(name string) bool {
	for _, f := range OpFields {
		if f == name {
			return true
		}
	}
	return false
}
