package vm

import (
	"github.com/saugns/saugo"
	"github.com/viterin/vek/vek32"
)

// renderBlock is the largest number of frames rendered in one pass; Run
// splits longer calls. It also sizes every scratch buffer.
const renderBlock = 1024

// scratch slots per nesting level: frequency, swing target, summed
// modulator output, phase offset, amplitude.
const (
	slotFreq = iota
	slotTarget
	slotMod
	slotPhase
	slotAmp
	slotsPerLevel
)

// opNode is the runtime state of one operator: the current parameters
// as last applied by an event, plus the oscillator phase, ramp cursors
// and countdowns the renderer mutates in place.
type opNode struct {
	wave       saugo.Wave
	timeLinked bool
	remaining  int // samples, unused when timeLinked
	silence    int // samples

	freq, freq2 rampState
	amp, amp2   rampState
	freqRatio   bool // base frequency scales by the parent's frequency
	freq2Ratio  bool
	osc         oscillator

	fmods, pmods, amods []int
}

func (g *Generator) slot(level, kind int) []float32 {
	off := (level*slotsPerLevel + kind) * renderBlock
	return g.scratch[off : off+renderBlock]
}

// renderOp renders n samples of one operator into out, recursing into
// its modulator lists first. Carriers render in audio mode (signed
// full-scale); every modulator renders in envelope mode (0..1) since
// its output scales a parameter. When acc is set the operator is a
// later sibling in a modulator list and sums into out instead of
// overwriting it.
//
// Scratch buffers are indexed by nesting level, so each recursion
// level works on disjoint memory; the visited bitset holds the
// operators currently on the recursion stack, and revisiting one means
// a cycle, which contributes silence.
func (g *Generator) renderOp(id int, use Use, level, n int, parentFreq, out []float32, acc bool) {
	node := &g.ops[id]

	if node.silence > 0 {
		k := node.silence
		if k > n {
			k = n
		}
		if !acc {
			vek32.Zeros_Into(out[:k], k)
		}
		node.silence -= k
		out = out[k:]
		if parentFreq != nil {
			parentFreq = parentFreq[k:]
		}
		n -= k
		if n == 0 {
			return
		}
	}

	word, bit := id>>6, uint64(1)<<(id&63)
	if g.visited[word]&bit != 0 {
		g.warnf("operator #%d: circular modulation, branch renders silence", id)
		if !acc {
			vek32.Zeros_Into(out[:n], n)
		}
		return
	}
	g.visited[word] |= bit
	defer func() { g.visited[word] &^= bit }()

	m := n
	if !node.timeLinked && node.remaining < m {
		m = node.remaining
	}
	if m > 0 {
		freq := g.slot(level, slotFreq)[:m]
		node.freq.fill(freq)
		if node.freqRatio && parentFreq != nil {
			vek32.Mul_Inplace(freq, parentFreq[:m])
		}
		if len(node.fmods) > 0 {
			target := g.slot(level, slotTarget)[:m]
			node.freq2.fill(target)
			if node.freq2Ratio && parentFreq != nil {
				vek32.Mul_Inplace(target, parentFreq[:m])
			}
			mod := g.slot(level, slotMod)[:m]
			for i, child := range node.fmods {
				g.renderOp(child, UseFreqMod, level+1, m, freq, mod, i > 0)
			}
			for i := range freq {
				freq[i] += (target[i] - freq[i]) * mod[i]
			}
		}

		var phase []float32
		if len(node.pmods) > 0 {
			phase = g.slot(level, slotPhase)[:m]
			for i, child := range node.pmods {
				g.renderOp(child, UsePhaseMod, level+1, m, freq, phase, i > 0)
			}
		}

		amp := g.slot(level, slotAmp)[:m]
		node.amp.fill(amp)
		if len(node.amods) > 0 {
			target := g.slot(level, slotTarget)[:m]
			node.amp2.fill(target)
			mod := g.slot(level, slotMod)[:m]
			for i, child := range node.amods {
				g.renderOp(child, UseAmpMod, level+1, m, freq, mod, i > 0)
			}
			for i := range amp {
				amp[i] += (target[i] - amp[i]) * mod[i]
			}
		}

		table := waveTable(node.wave)
		envelope := use != UseCarrier
		for i := 0; i < m; i++ {
			inc := phaseIncrement(g.phaseCoeff, freq[i])
			var off uint32
			if phase != nil {
				off = uint32(int64(float64(phase[i]) * (1 << 32)))
			}
			v := node.osc.sample(table, inc, off)
			if envelope {
				v = v*0.5 + 0.5
			}
			v *= amp[i]
			if acc {
				out[i] += v
			} else {
				out[i] = v
			}
		}
		if !node.timeLinked {
			node.remaining -= m
		}
	}
	if m < n && !acc {
		vek32.Zeros_Into(out[m:n], n-m)
	}
}
