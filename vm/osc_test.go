package vm

import (
	"testing"

	"github.com/saugns/saugo"
)

func TestOscillatorPhaseOffset(t *testing.T) {
	table := waveTable(saugo.WaveSquare)
	var o oscillator
	o.setPhase(0.25)
	if v := o.sample(table, 0, 0); v != 1 {
		t.Errorf("square at phase 0.25: expected 1, got %v", v)
	}
	o.setPhase(0.75)
	if v := o.sample(table, 0, 0); v != -1 {
		t.Errorf("square at phase 0.75: expected -1, got %v", v)
	}
}

func TestOscillatorAdvanceAndWrap(t *testing.T) {
	table := waveTable(saugo.WaveSine)
	var o oscillator
	inc := phaseIncrement((1<<32)/float64(4096), 1024) // a quarter of the sample rate
	if inc != 1<<30 {
		t.Fatalf("quarter-rate increment: expected %v, got %v", 1<<30, inc)
	}
	first := o.sample(table, inc, 0)
	o.sample(table, inc, 0)
	o.sample(table, inc, 0)
	o.sample(table, inc, 0)
	if o.acc != 0 {
		t.Errorf("accumulator did not wrap to 0, got %v", o.acc)
	}
	if again := o.sample(table, inc, 0); again != first {
		t.Errorf("wrapped oscillator diverged: %v vs %v", again, first)
	}
}

func TestOscillatorInterpolation(t *testing.T) {
	table := waveTable(saugo.WaveSine)
	var o oscillator
	o.acc = phaseFracLen / 2 // halfway between the first two entries
	want := table[0] + (table[1]-table[0])*0.5
	if v := o.sample(table, 0, 0); v != want {
		t.Errorf("interpolated sample: expected %v, got %v", want, v)
	}
}

func TestWaveTableSeam(t *testing.T) {
	for w := 0; w < saugo.NumWaves; w++ {
		table := waveTable(saugo.Wave(w))
		if table[waveTableLen] != table[0] {
			t.Errorf("wave %v: seam entry %v != first entry %v",
				saugo.Wave(w), table[waveTableLen], table[0])
		}
	}
}
