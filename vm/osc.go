package vm

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/saugns/saugo"
)

// The oscillator is a 32-bit fixed-point phase accumulator over shared
// wave lookup tables. The high bits of the phase index the table, the
// low bits interpolate between adjacent entries; every table repeats
// its first entry at the end so interpolation never wraps.
const (
	waveTableBits = 12
	waveTableLen  = 1 << waveTableBits
	phaseFracBits = 32 - waveTableBits
	phaseFracLen  = 1 << phaseFracBits
)

var (
	waveTables     [saugo.NumWaves][waveTableLen + 1]float32
	waveTablesOnce sync.Once
)

func initWaveTables() {
	for i := 0; i < waveTableLen; i++ {
		x := float32(i) / waveTableLen
		waveTables[saugo.WaveSine][i] = math32.Sin(2 * math32.Pi * x)
		if x < 0.5 {
			waveTables[saugo.WaveHalfSine][i] = math32.Sin(2 * math32.Pi * x)
		}
		if x < 0.5 {
			waveTables[saugo.WaveTriangle][i] = 4*x - 1
			waveTables[saugo.WaveSquare][i] = 1
		} else {
			waveTables[saugo.WaveTriangle][i] = 3 - 4*x
			waveTables[saugo.WaveSquare][i] = -1
		}
		waveTables[saugo.WaveSaw][i] = 2*x - 1
	}
	for w := range waveTables {
		waveTables[w][waveTableLen] = waveTables[w][0]
	}
}

func waveTable(w saugo.Wave) *[waveTableLen + 1]float32 {
	waveTablesOnce.Do(initWaveTables)
	if w < 0 || int(w) >= saugo.NumWaves {
		w = saugo.WaveSine
	}
	return &waveTables[w]
}

type oscillator struct {
	acc uint32
}

// setPhase maps a 0..1 phase offset onto the 32-bit phase space.
func (o *oscillator) setPhase(phase float32) {
	o.acc = uint32(uint64(float64(phase) * (1 << 32)))
}

// sample looks up the interpolated table value at the current phase
// plus the modulation offset, then advances the accumulator. Both the
// offset add and the advance wrap, which is the point of the 32-bit
// space.
func (o *oscillator) sample(table *[waveTableLen + 1]float32, inc, phaseMod uint32) float32 {
	pos := o.acc + phaseMod
	idx := pos >> phaseFracBits
	frac := float32(pos&(phaseFracLen-1)) / phaseFracLen
	o.acc += inc
	return table[idx] + (table[idx+1]-table[idx])*frac
}

// phaseIncrement converts a frequency in Hz to the per-sample phase
// advance, using the 2^32/rate coefficient precomputed by the
// generator. Negative frequencies wrap to a backwards sweep.
func phaseIncrement(coeff float64, freq float32) uint32 {
	return uint32(int64(coeff * float64(freq)))
}
