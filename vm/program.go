// Package vm holds the compiled form of a saugo script — the Program —
// and the Generator that interprets it sample-by-sample. Compile turns
// the script event list into dense voice/operator IDs, flattened
// cycle-safe voice graphs and per-event parameter deltas; NewGenerator
// then sizes its runtime state exactly from the Program's counts.
package vm

import (
	"github.com/saugns/saugo"
)

type (
	// Fields is the changed-fields bitmask of an operator delta. Bit
	// order matches saugo.OpFields.
	Fields uint16

	// Use tells what role an operator plays at one position of a voice
	// graph: the carrier at the top of the chain, or a modulator feeding
	// the frequency, phase or amplitude of the operator it precedes. The
	// ratio variants mark modulation whose swing target scales the
	// consumer's base parameter instead of being an absolute value.
	Use uint8

	// OpRef is one entry of a flattened voice graph. Entries appear in
	// post-order: the modulators of an operator always precede it. Level
	// is the modulation nesting depth, zero for carriers; the deepest
	// level across the whole Program sizes the render scratch pool.
	OpRef struct {
		Op    int
		Use   Use
		Level uint8
	}

	// VoiceData is the voice-level part of an event: the pan ramp and
	// the current flattened operator graph. It is only present when the
	// voice's graph (or pan) changed at that event.
	VoiceData struct {
		Pan   saugo.Ramp
		Graph []OpRef
	}

	// OpDelta carries the parameter changes of one operator at one
	// event. Only fields whose bit is set in Fields are meaningful; the
	// first delta ever emitted for an operator has every bit set.
	OpDelta struct {
		Op     int
		Fields Fields

		Wave       saugo.Wave
		TimeMS     float32
		TimeLinked bool // duration follows the caller's; TimeMS unused
		SilenceMS  float32
		Freq       saugo.Ramp
		Freq2      saugo.Ramp
		Amp        saugo.Ramp
		Amp2       saugo.Ramp
		Phase      float32

		FMods []int
		PMods []int
		AMods []int
	}

	// Event is one scheduled mutation of the Program: a wait relative to
	// the previous event, the voice it belongs to, the optional voice
	// data and the operator deltas.
	Event struct {
		WaitMS float32
		Voice  int
		Data   *VoiceData
		Ops    []OpDelta
	}

	// Program is the immutable compiled form of a script. It owns all
	// events and the memory their deltas reference; any number of
	// Generators may replay it concurrently.
	Program struct {
		Events []Event

		NumVoices int
		NumOps    int
		MaxLevel  int
		TotalMS   float32

		// Warnings collects the non-fatal anomalies found during
		// compilation, such as skipped circular modulator references.
		Warnings []string
	}
)

const (
	FieldWave Fields = 1 << iota
	FieldTime
	FieldSilence
	FieldFreq
	FieldFreq2
	FieldAmp
	FieldAmp2
	FieldPhase
	FieldFMods
	FieldPMods
	FieldAMods

	FieldsAll = FieldAMods<<1 - 1
)

const (
	UseCarrier Use = iota
	UseFreqMod
	UsePhaseMod
	UseAmpMod
	UseFreqRatioMod
	UseAmpRatioMod
)

// Voice and operator IDs live in 16-bit spaces and nesting levels in an
// 8-bit space; Compile rejects programs that overflow them.
const (
	MaxVoices    = 1 << 16
	MaxOperators = 1 << 16
	MaxLevel     = 255
)

var useNames = [...]string{"carrier", "fmod", "pmod", "amod", "fmod.r", "amod.r"}

func (u Use) String() string {
	if int(u) >= len(useNames) {
		return "invalid"
	}
	return useNames[u]
}
