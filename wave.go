package saugo

import (
	"encoding/json"
	"fmt"
)

type (
	// Wave enumerates the waveform shapes an operator can sample. The
	// actual lookup tables live in the vm package; the score side only
	// carries the selector.
	Wave int

	// Shape enumerates the curve shapes a Ramp can use to travel from its
	// state value toward its goal. It is only meaningful when the ramp
	// actually has a goal.
	Shape int
)

const (
	WaveSine Wave = iota
	WaveHalfSine
	WaveTriangle
	WaveSquare
	WaveSaw

	NumWaves = int(WaveSaw) + 1
)

const (
	ShapeLinear Shape = iota
	ShapeExponential
	ShapeLogarithmic
)

var waveNames = [NumWaves]string{"sine", "halfsine", "triangle", "square", "saw"}

var shapeNames = [...]string{"linear", "exp", "log"}

func (w Wave) String() string {
	if w < 0 || int(w) >= NumWaves {
		return fmt.Sprintf("Wave(%d)", int(w))
	}
	return waveNames[w]
}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return shapeNames[s]
}

// The enums marshal as their names so scripts and program dumps stay
// readable. The function-style UnmarshalYAML is understood by both
// yaml.v2 and yaml.v3, which this module uses in different corners the
// same way the rest of the toolchain does.

func (w Wave) MarshalYAML() (interface{}, error) { return w.String(), nil }

func (w *Wave) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	return w.fromString(name)
}

func (w Wave) MarshalJSON() ([]byte, error) { return json.Marshal(w.String()) }

func (w *Wave) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	return w.fromString(name)
}

func (w *Wave) fromString(name string) error {
	for i, n := range waveNames {
		if n == name {
			*w = Wave(i)
			return nil
		}
	}
	return fmt.Errorf("unknown wave shape %q", name)
}

func (s Shape) MarshalYAML() (interface{}, error) { return s.String(), nil }

func (s *Shape) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	return s.fromString(name)
}

func (s Shape) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Shape) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	return s.fromString(name)
}

func (s *Shape) fromString(name string) error {
	for i, n := range shapeNames {
		if n == name {
			*s = Shape(i)
			return nil
		}
	}
	return fmt.Errorf("unknown ramp shape %q", name)
}
