package vm_test

import (
	"strings"
	"testing"

	"github.com/saugns/saugo"
	"github.com/saugns/saugo/vm"
)

const beepScript = `
events:
  - wait: 0
    ops:
      - name: beep
        wave: sine
        time: 1000
        freq: 440
        amp: 1
`

func TestEndToEndFrameCount(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, beepScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	synth, err := vm.NewGenerator(prog, 44100)
	if err != nil {
		t.Fatalf("vm.NewGenerator failed: %v", err)
	}
	buffer := saugo.RenderAll(synth)
	if frames := len(buffer) / 2; frames != 44100 {
		t.Errorf("expected exactly 44100 frames, got %v", frames)
	}
	silent := true
	for _, s := range buffer {
		if s != 0 {
			silent = false
			break
		}
	}
	if silent {
		t.Error("rendered buffer is all silence")
	}
	if n, more := synth.Run(make([]int16, 128)); n != 0 || more {
		t.Errorf("after end of signal: expected (0, false), got (%v, %v)", n, more)
	}
}

func TestDeterminism(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, beepScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	sizes := []int{1, 7, 128, 1000, 4096}
	render := func() []int16 {
		synth, err := vm.NewGenerator(prog, 44100)
		if err != nil {
			t.Fatalf("vm.NewGenerator failed: %v", err)
		}
		var out []int16
		i := 0
		for {
			chunk := make([]int16, sizes[i%len(sizes)]*2)
			i++
			n, more := synth.Run(chunk)
			out = append(out, chunk[:n*2]...)
			if !more {
				return out
			}
		}
	}
	a, b := render(), render()
	if len(a) != len(b) {
		t.Fatalf("renders differ in length: %v vs %v", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("renders differ at sample %d: %v vs %v", i, a[i], b[i])
		}
	}
}

const splitScript = `
events:
  - wait: 0
    ops:
      - name: c
        wave: saw
        time: 100
        freq: 125
        amp: 1
  - wait: 50
    ops:
      - ref: c
        set: [wave]
        wave: sine
`

func TestMidBufferEventSplit(t *testing.T) {
	render := func(src string) []int16 {
		prog, err := vm.Compile(parseScript(t, src))
		if err != nil {
			t.Fatalf("vm.Compile failed: %v", err)
		}
		synth, err := vm.NewGenerator(prog, 1000)
		if err != nil {
			t.Fatalf("vm.NewGenerator failed: %v", err)
		}
		buffer := make([]int16, 200)
		if n, _ := synth.Run(buffer); n != 100 {
			t.Fatalf("expected 100 frames in one call, got %v", n)
		}
		return buffer
	}
	split := render(splitScript)
	allSaw := render(strings.Replace(splitScript, "wave: sine", "wave: saw", 1))
	allSine := render(strings.Replace(splitScript, "wave: saw", "wave: sine", 1))
	for i := 0; i < 100; i++ {
		if split[i] != allSaw[i] {
			t.Fatalf("sample %d before the event differs from the old wave", i)
		}
	}
	// same frequency, so the phase accumulators agree; only the table
	// changed at the split point
	for i := 100; i < 200; i++ {
		if split[i] != allSine[i] {
			t.Fatalf("sample %d after the event differs from the new wave", i)
		}
	}
}

const pannedScript = `
events:
  - wait: 0
    pan: 0
    ops:
      - name: c
        wave: saw
        time: 100
        freq: 125
        amp: 1
`

func TestHardLeftPan(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, pannedScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	synth, err := vm.NewGenerator(prog, 1000)
	if err != nil {
		t.Fatalf("vm.NewGenerator failed: %v", err)
	}
	buffer := saugo.RenderAll(synth)
	leftEnergy := false
	for i := 0; i+1 < len(buffer); i += 2 {
		if buffer[i] != 0 {
			leftEnergy = true
		}
		if buffer[i+1] != 0 {
			t.Fatalf("frame %d: right channel is %v with pan hard left", i/2, buffer[i+1])
		}
	}
	if !leftEnergy {
		t.Error("left channel is all silence")
	}
}

func TestRenderCycleWarning(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, cyclicScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	synth, err := vm.NewGenerator(prog, 1000)
	if err != nil {
		t.Fatalf("vm.NewGenerator failed: %v", err)
	}
	callbacks := 0
	synth.OnWarning = func(string) { callbacks++ }
	saugo.RenderAll(synth)
	found := false
	for _, w := range synth.Warnings {
		if strings.Contains(w, "circular") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a circular-modulation warning, got %v", synth.Warnings)
	}
	if callbacks != len(synth.Warnings) {
		t.Errorf("OnWarning saw %v warnings, Warnings holds %v", callbacks, len(synth.Warnings))
	}
}

func TestEventGapRendersSilence(t *testing.T) {
	script := parseScript(t, `
events:
  - wait: 0
    ops:
      - name: a
        wave: saw
        time: 50
        freq: 125
        amp: 1
  - wait: 100
    ops:
      - name: b
        wave: saw
        time: 50
        freq: 125
        amp: 1
`)
	prog, err := vm.Compile(script)
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	synth, err := vm.NewGenerator(prog, 1000)
	if err != nil {
		t.Fatalf("vm.NewGenerator failed: %v", err)
	}
	buffer := saugo.RenderAll(synth)
	if frames := len(buffer) / 2; frames != 150 {
		t.Fatalf("expected 150 frames, got %v", frames)
	}
	for i := 50 * 2; i < 100*2; i++ {
		if buffer[i] != 0 {
			t.Fatalf("sample %d inside the gap is %v, expected silence", i, buffer[i])
		}
	}
}

func TestNewGeneratorRejectsBadInput(t *testing.T) {
	if _, err := vm.NewGenerator(nil, 44100); err == nil {
		t.Error("expected an error for a nil program")
	}
	prog, err := vm.Compile(parseScript(t, beepScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	if _, err := vm.NewGenerator(prog, 0); err == nil {
		t.Error("expected an error for a zero sample rate")
	}
}
