package vm

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

type (
	// voiceNode is the runtime state of one voice slot: the current
	// flattened graph, the pan ramp and the samples left before every
	// carrier has run out.
	voiceNode struct {
		graph       []OpRef
		pan         rampState
		remaining   int
		initialized bool
	}

	// Generator replays a Program at a fixed sample rate. It owns all of
	// its runtime state, so any number of Generators may replay the same
	// Program concurrently, but a single Generator must only be driven
	// from one goroutine.
	Generator struct {
		prog       *Program
		sampleRate int
		phaseCoeff float64 // 2^32 / sampleRate

		ops    []opNode
		voices []voiceNode

		nextEvent int
		untilNext int // samples until Events[nextEvent] is due
		finished  bool

		scratch []float32 // slotsPerLevel buffers per nesting level
		work    []float32 // mono voice mix-down
		panBuf  []float32
		visited []uint64 // operators on the render recursion stack

		// Warnings collects non-fatal render anomalies; OnWarning, when
		// set, additionally receives each one as it happens.
		Warnings  []string
		OnWarning func(string)
	}
)

// NewGenerator allocates the runtime state for replaying prog: operator
// and voice node arrays sized to the Program's counts and a scratch
// pool sized from its maximum nesting level. The Program is not
// mutated.
func NewGenerator(prog *Program, sampleRate int) (*Generator, error) {
	if prog == nil {
		return nil, errors.New("NewGenerator: nil program")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("NewGenerator: invalid sample rate %v", sampleRate)
	}
	if prog.NumVoices > MaxVoices || prog.NumOps > MaxOperators || prog.MaxLevel > MaxLevel {
		return nil, fmt.Errorf(
			"NewGenerator: program exceeds limits: %v voices (max %v), %v operators (max %v), nesting depth %v (max %v)",
			prog.NumVoices, MaxVoices, prog.NumOps, MaxOperators, prog.MaxLevel, MaxLevel)
	}
	g := &Generator{
		prog:       prog,
		sampleRate: sampleRate,
		phaseCoeff: (1 << 32) / float64(sampleRate),
		ops:        make([]opNode, prog.NumOps),
		voices:     make([]voiceNode, prog.NumVoices),
		scratch:    make([]float32, (prog.MaxLevel+1)*slotsPerLevel*renderBlock),
		work:       make([]float32, renderBlock),
		panBuf:     make([]float32, renderBlock),
		visited:    make([]uint64, (prog.NumOps+63)/64),
	}
	if len(prog.Events) > 0 {
		g.untilNext = g.samples(prog.Events[0].WaitMS)
	}
	return g, nil
}

func (g *Generator) SampleRate() int { return g.sampleRate }

// Run fills up to len(buffer)/2 frames of interleaved 16-bit stereo
// PCM, applying events sample-accurately: when an event falls inside
// the call, rendering stops at its boundary, the event is applied, and
// rendering resumes. Gaps where no voice is active render silence. The
// frame count is short of the request only at end of signal, after
// which more is false.
func (g *Generator) Run(buffer []int16) (frames int, more bool) {
	want := len(buffer) / 2
	rendered := 0
	for rendered < want {
		for g.nextEvent < len(g.prog.Events) && g.untilNext <= 0 {
			g.applyEvent(&g.prog.Events[g.nextEvent])
			g.nextEvent++
			if g.nextEvent < len(g.prog.Events) {
				g.untilNext = g.samples(g.prog.Events[g.nextEvent].WaitMS)
			}
		}
		if g.nextEvent >= len(g.prog.Events) && !g.anyActive() {
			g.finish()
			return rendered, false
		}
		n := want - rendered
		if n > renderBlock {
			n = renderBlock
		}
		if g.nextEvent < len(g.prog.Events) {
			if g.untilNext < n {
				n = g.untilNext
			}
		} else if rem := g.maxRemaining(); n > rem {
			// no further events: the signal ends with the longest-living
			// voice, and the frame count must end exactly there
			n = rem
		}
		g.renderChunk(buffer[rendered*2:(rendered+n)*2], n)
		rendered += n
		if g.nextEvent < len(g.prog.Events) {
			g.untilNext -= n
		}
	}
	return rendered, true
}

func (g *Generator) maxRemaining() int {
	remaining := 0
	for i := range g.voices {
		if len(g.voices[i].graph) > 0 && g.voices[i].remaining > remaining {
			remaining = g.voices[i].remaining
		}
	}
	return remaining
}

func (g *Generator) anyActive() bool {
	for i := range g.voices {
		if g.voices[i].remaining > 0 && len(g.voices[i].graph) > 0 {
			return true
		}
	}
	return false
}

// finish runs the end-of-signal checks once: a voice slot that never
// received its voice data got scheduled but never became audible,
// which is worth a notice.
func (g *Generator) finish() {
	if g.finished {
		return
	}
	g.finished = true
	for i := range g.voices {
		if !g.voices[i].initialized {
			g.warnf("voice #%d: never initialized before end of signal", i)
		}
	}
}

// applyEvent updates the runtime nodes from one Program event: the
// masked operator deltas first, then the voice data, then the voice's
// remaining time is recomputed as the longest countdown among its
// carriers.
func (g *Generator) applyEvent(e *Event) {
	for i := range e.Ops {
		g.applyDelta(&e.Ops[i])
	}
	v := &g.voices[e.Voice]
	if e.Data != nil {
		v.pan.set(e.Data.Pan, g.sampleRate)
		v.graph = e.Data.Graph
		v.initialized = true
	}
	remaining := 0
	for _, ref := range v.graph {
		if ref.Use != UseCarrier {
			continue
		}
		node := &g.ops[ref.Op]
		if node.timeLinked {
			continue
		}
		if r := node.silence + node.remaining; r > remaining {
			remaining = r
		}
	}
	v.remaining = remaining
}

func (g *Generator) applyDelta(d *OpDelta) {
	node := &g.ops[d.Op]
	if d.Fields&FieldWave != 0 {
		node.wave = d.Wave
	}
	if d.Fields&FieldTime != 0 {
		node.timeLinked = d.TimeLinked
		node.remaining = 0
		if !d.TimeLinked {
			node.remaining = g.samples(d.TimeMS)
		}
	}
	if d.Fields&FieldSilence != 0 {
		node.silence = g.samples(d.SilenceMS)
	}
	if d.Fields&FieldFreq != 0 {
		node.freq.set(d.Freq, g.sampleRate)
		node.freqRatio = d.Freq.Ratio
	}
	if d.Fields&FieldFreq2 != 0 {
		node.freq2.set(d.Freq2, g.sampleRate)
		node.freq2Ratio = d.Freq2.Ratio
	}
	if d.Fields&FieldAmp != 0 {
		node.amp.set(d.Amp, g.sampleRate)
	}
	if d.Fields&FieldAmp2 != 0 {
		node.amp2.set(d.Amp2, g.sampleRate)
	}
	if d.Fields&FieldPhase != 0 {
		node.osc.setPhase(d.Phase)
	}
	if d.Fields&FieldFMods != 0 {
		node.fmods = d.FMods
	}
	if d.Fields&FieldPMods != 0 {
		node.pmods = d.PMods
	}
	if d.Fields&FieldAMods != 0 {
		node.amods = d.AMods
	}
}

// renderChunk renders n frames of every active voice and mixes them
// into out, which it first clears. Sibling carriers of a voice sum
// into the same mono buffer; the stereo split rounds the right-channel
// contribution and gives the remainder to the left, so the two
// channels always sum back to the rounded mono sample.
func (g *Generator) renderChunk(out []int16, n int) {
	for i := range out[:n*2] {
		out[i] = 0
	}
	for vi := range g.voices {
		v := &g.voices[vi]
		if v.remaining <= 0 || len(v.graph) == 0 {
			continue
		}
		m := n
		if v.remaining < m {
			m = v.remaining
		}
		work := g.work[:m]
		first := true
		for _, ref := range v.graph {
			if ref.Use != UseCarrier {
				continue
			}
			for i := range g.visited {
				g.visited[i] = 0
			}
			g.renderOp(ref.Op, UseCarrier, 0, m, nil, work, !first)
			first = false
		}
		v.remaining -= m
		if first {
			continue
		}
		v.pan.fill(g.panBuf[:m])
		for i := 0; i < m; i++ {
			s := work[i] * 32767
			mono := int32(math32.Round(s))
			right := int32(math32.Round(s * g.panBuf[i]))
			left := mono - right
			out[2*i] = addSat16(out[2*i], left)
			out[2*i+1] = addSat16(out[2*i+1], right)
		}
	}
}

func (g *Generator) samples(ms float32) int {
	return int(float64(ms)*float64(g.sampleRate)/1000 + 0.5)
}

func addSat16(a int16, d int32) int16 {
	s := int32(a) + d
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return int16(s)
}

func (g *Generator) warnf(format string, args ...interface{}) {
	w := fmt.Sprintf(format, args...)
	g.Warnings = append(g.Warnings, w)
	if g.OnWarning != nil {
		g.OnWarning(w)
	}
}
