package vm

import (
	"github.com/chewxy/math32"
	"github.com/saugns/saugo"
	"github.com/viterin/vek/vek32"
)

// rampState is the runtime counterpart of a saugo.Ramp: the trajectory
// converted to sample counts at the generator's rate, plus the cursor.
// Once the goal is reached the state collapses to a constant at the
// goal value.
type rampState struct {
	v0, vt   float32
	pos, end int
	shape    saugo.Shape
	goal     bool
}

func (s *rampState) set(r saugo.Ramp, sampleRate int) {
	s.v0 = r.Value
	s.shape = r.Shape
	s.pos = 0
	s.end = 0
	s.goal = r.HasGoal
	if r.HasGoal {
		s.vt = r.Goal
		s.end = int(math32.Round(r.TimeMS * float32(sampleRate) / 1000))
	}
}

// fill writes the next len(buf) values of the trajectory into buf and
// advances the cursor. The value at cursor zero is exactly v0 and the
// first value at or past the goal duration is exactly the goal; a zero
// duration completes instantly.
func (s *rampState) fill(buf []float32) {
	if s.goal {
		n := s.end - s.pos
		if n > len(buf) {
			n = len(buf)
		}
		var inv float32
		if s.end > 0 {
			inv = 1 / float32(s.end)
		}
		switch s.shape {
		case saugo.ShapeExponential:
			for i := 0; i < n; i++ {
				x := float32(s.pos+i) * inv
				buf[i] = s.vt + (s.v0-s.vt)*rampShape(1-x)
			}
		case saugo.ShapeLogarithmic:
			for i := 0; i < n; i++ {
				x := float32(s.pos+i) * inv
				buf[i] = s.v0 + (s.vt-s.v0)*rampShape(x)
			}
		default:
			for i := 0; i < n; i++ {
				buf[i] = s.v0 + (s.vt-s.v0)*float32(s.pos+i)*inv
			}
		}
		s.pos += n
		if s.pos >= s.end {
			s.v0 = s.vt
			s.goal = false
			s.pos = 0
		}
		buf = buf[n:]
	}
	if len(buf) > 0 {
		vek32.Zeros_Into(buf, len(buf))
		vek32.AddNumber_Inplace(buf, s.v0)
	}
}

// rampShape is the smoothing curve shared by the exponential and
// logarithmic shapes, applied on complementary coordinates so the two
// mirror each other. Monotone on [0,1] with shape(0)=0 and shape(1)=1.
func rampShape(x float32) float32 {
	return x * x * x * (x*x + x + 1) / 3
}
