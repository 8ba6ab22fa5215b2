package vm_test

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/saugns/saugo"
	"github.com/saugns/saugo/vm"
)

func parseScript(t *testing.T, src string) saugo.Script {
	t.Helper()
	var script saugo.Script
	if err := yaml.Unmarshal([]byte(src), &script); err != nil {
		t.Fatalf("could not parse script: %v", err)
	}
	return script
}

const voiceReuseScript = `
events:
  - wait: 0
    ops:
      - name: a
        wave: sine
        time: 100
        freq: 440
        amp: 1
  - wait: 200
    ops:
      - name: b
        wave: sine
        time: 100
        freq: 220
        amp: 1
`

func TestVoiceReuse(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, voiceReuseScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	if prog.NumVoices != 1 {
		t.Errorf("expected 1 voice slot, got %v", prog.NumVoices)
	}
	if prog.Events[1].Voice != prog.Events[0].Voice {
		t.Errorf("expected the expired voice ID to be reused, got %v and %v",
			prog.Events[0].Voice, prog.Events[1].Voice)
	}
	if prog.NumOps != 2 {
		t.Errorf("operator IDs must not be reused, expected 2 operators, got %v", prog.NumOps)
	}
}

const voiceOverlapScript = `
events:
  - wait: 0
    ops:
      - name: a
        wave: sine
        time: 500
        freq: 440
        amp: 1
  - wait: 200
    ops:
      - name: b
        wave: sine
        time: 500
        freq: 220
        amp: 1
`

func TestVoiceNoReuseWhileLive(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, voiceOverlapScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	if prog.NumVoices != 2 {
		t.Errorf("expected 2 voice slots for overlapping voices, got %v", prog.NumVoices)
	}
	if prog.Events[0].Voice == prog.Events[1].Voice {
		t.Errorf("live voice ID %v was reused", prog.Events[0].Voice)
	}
}

const lateReferenceScript = `
events:
  - wait: 0
    ops:
      - name: a
        wave: saw
        time: 100
        freq: 125
        amp: 1
  - wait: 200
    ops:
      - name: b
        wave: saw
        time: 100
        freq: 125
        amp: 1
  - wait: 50
    pan: 0.8
    ops:
      - ref: a
`

func TestNoVoiceReuseWhenReferencedLater(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, lateReferenceScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	// a is expired by the time b starts, but the pan event at 250 ms
	// still references a, so its slot must stay reserved until then
	if prog.NumVoices != 2 {
		t.Errorf("expected 2 voice slots, got %v", prog.NumVoices)
	}
	if prog.Events[1].Voice == prog.Events[0].Voice {
		t.Errorf("voice slot %v was recycled while a later event still references it", prog.Events[0].Voice)
	}
	if prog.Events[2].Voice != prog.Events[0].Voice {
		t.Errorf("the late reference landed on voice %v instead of %v",
			prog.Events[2].Voice, prog.Events[0].Voice)
	}
	synth, err := vm.NewGenerator(prog, 1000)
	if err != nil {
		t.Fatalf("vm.NewGenerator failed: %v", err)
	}
	buffer := saugo.RenderAll(synth)
	if frames := len(buffer) / 2; frames != 300 {
		t.Fatalf("expected 300 frames, got %v", frames)
	}
	silent := true
	for i := 250 * 2; i < 300*2; i++ {
		if buffer[i] != 0 {
			silent = false
			break
		}
	}
	if silent {
		t.Error("the late reference silenced the other voice after 250 ms")
	}
}

const nestedScript = `
events:
  - wait: 0
    ops:
      - name: carrier
        wave: sine
        time: 100
        freq: 440
        freq2: 880
        amp: 1
        fmods:
          - name: m1
            wave: sine
            freq: 110
            amp: 1
            pmods:
              - name: m2
                wave: triangle
                freq: 7
                amp: 0.2
`

func TestGraphPostOrderAndLevels(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, nestedScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	data := prog.Events[0].Data
	if data == nil {
		t.Fatal("first event carries no voice data")
	}
	if len(data.Graph) != 3 {
		t.Fatalf("expected 3 graph entries, got %v", len(data.Graph))
	}
	wantUses := []vm.Use{vm.UsePhaseMod, vm.UseFreqMod, vm.UseCarrier}
	wantLevels := []uint8{2, 1, 0}
	for i, ref := range data.Graph {
		if ref.Use != wantUses[i] {
			t.Errorf("entry %d: expected use %v, got %v", i, wantUses[i], ref.Use)
		}
		if ref.Level != wantLevels[i] {
			t.Errorf("entry %d: expected level %v, got %v", i, wantLevels[i], ref.Level)
		}
	}
	if prog.MaxLevel != 2 {
		t.Errorf("expected max nesting level 2, got %v", prog.MaxLevel)
	}
}

const ratioScript = `
events:
  - wait: 0
    ops:
      - name: carrier
        wave: sine
        time: 100
        freq: 440
        freq2: {value: 2, ratio: true}
        amp: 1
        fmods:
          - wave: sine
            freq: {value: 0.5, ratio: true}
            amp: 1
`

func TestRatioModulatorUseKind(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, ratioScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	graph := prog.Events[0].Data.Graph
	if graph[0].Use != vm.UseFreqRatioMod {
		t.Errorf("expected fmod.r use for a ratio swing target, got %v", graph[0].Use)
	}
}

const cyclicScript = `
events:
  - wait: 0
    ops:
      - name: x
        wave: sine
        time: 100
        freq: 100
        amp: 0.5
        amp2: 1
        amods:
          - name: y
            wave: sine
            freq: 10
            amp: 1
            fmods:
              - ref: x
`

func TestCycleBuildsWithWarning(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, cyclicScript))
	if err != nil {
		t.Fatalf("cyclic script must still compile, got: %v", err)
	}
	count := 0
	for _, w := range prog.Warnings {
		if strings.Contains(w, "circular") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 circular-reference warning, got %v: %v", count, prog.Warnings)
	}
	// the cyclic branch contributes nothing: y and x are still emitted
	if len(prog.Events[0].Data.Graph) != 2 {
		t.Errorf("expected 2 graph entries, got %v", len(prog.Events[0].Data.Graph))
	}
}

func TestCompileRejectsUndefinedRef(t *testing.T) {
	script := parseScript(t, `
events:
  - wait: 0
    ops:
      - ref: nope
        set: [wave]
        wave: saw
`)
	if _, err := vm.Compile(script); err == nil {
		t.Fatal("expected an error for a reference to an undefined operator")
	}
}

const chordScript = `
events:
  - wait: 0
    ops:
      - name: root
        wave: triangle
        time: 1800
        freq: 220
        amp: 0.6
  - wait: 300
    ops:
      - name: third
        wave: triangle
        time: 1500
        freq: 277.18
        amp: 0.6
  - wait: 300
    ops:
      - name: fifth
        wave: triangle
        time: 1200
        freq: 329.63
        amp: 0.6
`

func TestTotalDuration(t *testing.T) {
	prog, err := vm.Compile(parseScript(t, chordScript))
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	if prog.NumVoices != 3 {
		t.Errorf("expected 3 voices, got %v", prog.NumVoices)
	}
	if prog.TotalMS != 1800 {
		t.Errorf("expected total duration 1800 ms, got %v", prog.TotalMS)
	}
}

func TestImplicitDurations(t *testing.T) {
	script := parseScript(t, `
events:
  - wait: 0
    ops:
      - name: c
        wave: sine
        freq: 440
        amp: 1
        fmods:
          - wave: sine
            freq: 110
            amp: 1
`)
	prog, err := vm.Compile(script)
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	if prog.TotalMS != saugo.DefaultTimeMS {
		t.Errorf("implicit carrier duration: expected %v ms, got %v", saugo.DefaultTimeMS, prog.TotalMS)
	}
	// the modulator delta must come out linked, not with a duration
	for _, d := range prog.Events[0].Ops {
		if d.Op == 1 && !d.TimeLinked {
			t.Errorf("implicit modulator duration: expected linked")
		}
	}
}

func TestLinkedCarrierCoerced(t *testing.T) {
	script := parseScript(t, `
events:
  - wait: 0
    ops:
      - name: c
        wave: sine
        time: linked
        freq: 440
        amp: 1
`)
	prog, err := vm.Compile(script)
	if err != nil {
		t.Fatalf("vm.Compile failed: %v", err)
	}
	if len(prog.Warnings) == 0 {
		t.Error("expected a warning for a linked carrier duration")
	}
	if prog.TotalMS != saugo.DefaultTimeMS {
		t.Errorf("expected coercion to the default duration, got %v ms", prog.TotalMS)
	}
}
