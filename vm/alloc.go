package vm

import (
	"errors"
	"fmt"

	"github.com/saugns/saugo"
)

type (
	// opInfo is the builder's view of one operator: its dense ID and the
	// current resolved state, updated as script events touch it. The
	// modulator lists hold the resolved children rather than IDs so the
	// graph walk can follow them directly.
	opInfo struct {
		id    int
		name  string
		isMod bool

		wave       saugo.Wave
		timeMS     float32
		timeLinked bool
		silenceMS  float32
		freq       saugo.Ramp
		freq2      saugo.Ramp
		amp        saugo.Ramp
		amp2       saugo.Ramp
		phase      float32

		fmods, pmods, amods []*opInfo

		// endAbsMS is the absolute time this operator's duration runs
		// out, refreshed whenever its time or silence is (re)set. Voice
		// lifetimes derive from it.
		endAbsMS float64
	}

	// voiceChain is one logical voice: the sequence of events linked by
	// previous-occurrence references to the same root operators. Slots
	// (the dense voice IDs) are assigned only after the whole script has
	// been scanned, because reusing an expired slot requires knowing
	// that no later event references it.
	voiceChain struct {
		slot    int
		firstMS float64
		endMS   float64
		// lastRefMS is the time of the latest event touching the chain,
		// even one that extends nothing; the slot stays reserved until
		// then, so the late event cannot land on a recycled voice.
		lastRefMS float64
		roots     []*opInfo
		pan       saugo.Ramp
	}

	programBuilder struct {
		ops     []*opInfo
		names   map[string]*opInfo
		chains  []*voiceChain
		chainOf map[*opInfo]*voiceChain

		events     []Event
		eventChain []*voiceChain

		deltas   []OpDelta
		touched  []*opInfo
		newOps   bool
		nowMS    float64
		maxLevel int
		warnings []string
	}
)

// Compile turns a parsed script into an immutable Program: dense voice
// and operator IDs, flattened post-order voice graphs and per-event
// parameter deltas. Expired voice IDs are reused; operator IDs are not,
// since an operator may still be referenced by several live voices. A
// failed compile returns no Program at all.
func Compile(script saugo.Script) (*Program, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}
	b := &programBuilder{
		names:   map[string]*opInfo{},
		chainOf: map[*opInfo]*voiceChain{},
	}
	for i := range script.Events {
		if err := b.addEvent(&script.Events[i]); err != nil {
			return nil, fmt.Errorf("event %d: %v", i, err)
		}
	}
	return b.finish()
}

func (b *programBuilder) addEvent(e *saugo.ScriptEvent) error {
	b.nowMS += float64(e.Wait)
	b.deltas = nil
	b.touched = nil
	b.newOps = false
	if len(e.Ops) == 0 {
		return errors.New("event lists no operators")
	}
	roots := make([]*opInfo, 0, len(e.Ops))
	for _, od := range e.Ops {
		info, err := b.resolveOp(od, false)
		if err != nil {
			return err
		}
		roots = append(roots, info)
	}

	// the event belongs to the chain of any operator it touches, root
	// or nested; only when none has a predecessor does it start a voice
	var chain *voiceChain
	for _, op := range b.touched {
		if c := b.chainOf[op]; c != nil {
			chain = c
			break
		}
	}
	first := chain == nil
	if first {
		chain = &voiceChain{firstMS: b.nowMS, pan: saugo.Ramp{Value: 0.5}}
		b.chains = append(b.chains, chain)
	}
	if first || e.NewGraph {
		chain.roots = roots
	}
	for _, op := range b.touched {
		b.chainOf[op] = chain
	}
	if e.Pan != nil {
		chain.pan = *e.Pan
	}
	if b.nowMS > chain.lastRefMS {
		chain.lastRefMS = b.nowMS
	}
	for _, r := range chain.roots {
		if r.endAbsMS > chain.endMS {
			chain.endMS = r.endAbsMS
		}
	}

	ev := Event{WaitMS: e.Wait, Ops: b.deltas}
	// the flattened graph is rebuilt whenever it could have changed:
	// carrier set swaps, new operators anywhere in the trees, or a pan
	// change that needs a voice record anyway
	if first || e.NewGraph || e.Pan != nil || b.newOps {
		ev.Data = &VoiceData{Pan: chain.pan, Graph: b.buildGraph(chain.roots)}
	}
	b.events = append(b.events, ev)
	b.eventChain = append(b.eventChain, chain)
	return nil
}

// resolveOp returns the opInfo for one script operator record,
// allocating a fresh ID for a definition and reusing the prior
// occurrence for a reference, and appends the resulting deltas for this
// event. Modulator children are resolved before their consumer so the
// delta stream stays in dependency order.
func (b *programBuilder) resolveOp(od *saugo.OpData, isMod bool) (*opInfo, error) {
	if od.Ref != "" {
		info := b.names[od.Ref]
		if info == nil {
			return nil, fmt.Errorf("reference to undefined operator %q", od.Ref)
		}
		b.touched = append(b.touched, info)
		mask, err := b.applyUpdate(info, od)
		if err != nil {
			return nil, err
		}
		if mask != 0 {
			b.deltas = append(b.deltas, info.delta(mask))
		}
		return info, nil
	}

	info := &opInfo{id: len(b.ops), name: od.Name, isMod: isMod}
	b.ops = append(b.ops, info)
	b.touched = append(b.touched, info)
	b.newOps = true
	if od.Name != "" {
		b.names[od.Name] = info
	}
	info.wave = od.Wave
	info.silenceMS = od.Silence
	info.freq, info.freq2 = od.Freq, od.Freq2
	info.amp, info.amp2 = od.Amp, od.Amp2
	info.phase = od.Phase
	b.setTime(info, od.Time)

	var err error
	if info.fmods, err = b.resolveList(od.FMods); err != nil {
		return nil, err
	}
	if info.pmods, err = b.resolveList(od.PMods); err != nil {
		return nil, err
	}
	if info.amods, err = b.resolveList(od.AMods); err != nil {
		return nil, err
	}
	b.deltas = append(b.deltas, info.delta(FieldsAll))
	return info, nil
}

func (b *programBuilder) resolveList(ops []*saugo.OpData) ([]*opInfo, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	infos := make([]*opInfo, len(ops))
	for i, od := range ops {
		info, err := b.resolveOp(od, true)
		if err != nil {
			return nil, err
		}
		infos[i] = info
	}
	return infos, nil
}

// setTime resolves the script's duration flags into the two modes the
// runtime knows: a concrete sample count, or linked-to-parent. An
// implicit duration becomes the default duration on a carrier and
// linked on a modulator; a linked duration on a carrier makes no sense
// (a carrier has no parent) and is coerced with a warning.
func (b *programBuilder) setTime(info *opInfo, t saugo.TimeSpec) {
	info.timeLinked = false
	switch t.Mode {
	case saugo.TimeSet:
		info.timeMS = t.MS
	case saugo.TimeLinked:
		if info.isMod {
			info.timeLinked = true
		} else {
			b.warnf("operator %v: linked duration on a carrier, using the default duration", info.logName())
			info.timeMS = saugo.DefaultTimeMS
		}
	default:
		if info.isMod {
			info.timeLinked = true
		} else {
			info.timeMS = saugo.DefaultTimeMS
		}
	}
	if !info.timeLinked {
		info.endAbsMS = b.nowMS + float64(info.silenceMS) + float64(info.timeMS)
	}
}

func (b *programBuilder) applyUpdate(info *opInfo, od *saugo.OpData) (Fields, error) {
	var mask Fields
	var err error
	for _, f := range od.Set {
		switch f {
		case "wave":
			info.wave = od.Wave
			mask |= FieldWave
		case "time":
			b.setTime(info, od.Time)
			mask |= FieldTime
		case "silence":
			info.silenceMS = od.Silence
			if !info.timeLinked {
				info.endAbsMS = b.nowMS + float64(info.silenceMS) + float64(info.timeMS)
			}
			mask |= FieldSilence
		case "freq":
			info.freq = od.Freq
			mask |= FieldFreq
		case "freq2":
			info.freq2 = od.Freq2
			mask |= FieldFreq2
		case "amp":
			info.amp = od.Amp
			mask |= FieldAmp
		case "amp2":
			info.amp2 = od.Amp2
			mask |= FieldAmp2
		case "phase":
			info.phase = od.Phase
			mask |= FieldPhase
		case "fmods":
			if info.fmods, err = b.resolveList(od.FMods); err != nil {
				return 0, err
			}
			mask |= FieldFMods
		case "pmods":
			if info.pmods, err = b.resolveList(od.PMods); err != nil {
				return 0, err
			}
			mask |= FieldPMods
		case "amods":
			if info.amods, err = b.resolveList(od.AMods); err != nil {
				return 0, err
			}
			mask |= FieldAMods
		default:
			return 0, fmt.Errorf("operator %q: unknown field %q in set list", od.Ref, f)
		}
	}
	return mask, nil
}

// buildGraph flattens the modulation trees of one voice into post-order
// OpRefs: the modulators of an operator are always emitted before the
// operator itself, in the fixed role order frequency, phase, amplitude.
// An operator revisited while still on the recursion stack closes a
// cycle; the branch is skipped with a warning and contributes nothing.
func (b *programBuilder) buildGraph(roots []*opInfo) []OpRef {
	visiting := map[*opInfo]bool{}
	var refs []OpRef
	var visit func(op *opInfo, use Use, level int)
	visit = func(op *opInfo, use Use, level int) {
		if visiting[op] {
			b.warnf("operator %v: circular modulator reference, branch skipped", op.logName())
			return
		}
		visiting[op] = true
		for _, m := range op.fmods {
			visit(m, freqUse(op), level+1)
		}
		for _, m := range op.pmods {
			visit(m, UsePhaseMod, level+1)
		}
		for _, m := range op.amods {
			visit(m, ampUse(op), level+1)
		}
		visiting[op] = false
		if level > b.maxLevel {
			b.maxLevel = level
		}
		byteLevel := level
		if byteLevel > MaxLevel {
			byteLevel = MaxLevel
		}
		refs = append(refs, OpRef{Op: op.id, Use: use, Level: uint8(byteLevel)})
	}
	for _, r := range roots {
		visit(r, UseCarrier, 0)
	}
	return refs
}

func freqUse(consumer *opInfo) Use {
	if consumer.freq2.Ratio {
		return UseFreqRatioMod
	}
	return UseFreqMod
}

func ampUse(consumer *opInfo) Use {
	if consumer.amp2.Ratio {
		return UseAmpRatioMod
	}
	return UseAmpMod
}

func (b *programBuilder) finish() (*Program, error) {
	// assign the dense voice IDs: chains are in first-event order, and a
	// slot is reusable once the chain holding it has fully expired AND
	// no later event references it before the new chain begins
	var slotEnds []float64
	for _, c := range b.chains {
		reserved := c.endMS
		if c.lastRefMS > reserved {
			reserved = c.lastRefMS
		}
		assigned := -1
		for i, end := range slotEnds {
			if end <= c.firstMS {
				assigned = i
				break
			}
		}
		if assigned < 0 {
			assigned = len(slotEnds)
			slotEnds = append(slotEnds, 0)
		}
		slotEnds[assigned] = reserved
		c.slot = assigned
	}
	for i := range b.events {
		b.events[i].Voice = b.eventChain[i].slot
	}
	var totalMS float64
	for _, c := range b.chains {
		if c.endMS > totalMS {
			totalMS = c.endMS
		}
	}
	if len(slotEnds) > MaxVoices || len(b.ops) > MaxOperators || b.maxLevel > MaxLevel {
		return nil, fmt.Errorf(
			"program exceeds limits: %v voices (max %v), %v operators (max %v), nesting depth %v (max %v)",
			len(slotEnds), MaxVoices, len(b.ops), MaxOperators, b.maxLevel, MaxLevel)
	}
	return &Program{
		Events:    b.events,
		NumVoices: len(slotEnds),
		NumOps:    len(b.ops),
		MaxLevel:  b.maxLevel,
		TotalMS:   float32(totalMS),
		Warnings:  b.warnings,
	}, nil
}

func (b *programBuilder) warnf(format string, args ...interface{}) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

func (o *opInfo) logName() string {
	if o.name != "" {
		return fmt.Sprintf("%q", o.name)
	}
	return fmt.Sprintf("#%d", o.id)
}

func (o *opInfo) delta(mask Fields) OpDelta {
	return OpDelta{
		Op:         o.id,
		Fields:     mask,
		Wave:       o.wave,
		TimeMS:     o.timeMS,
		TimeLinked: o.timeLinked,
		SilenceMS:  o.silenceMS,
		Freq:       o.freq,
		Freq2:      o.freq2,
		Amp:        o.amp,
		Amp2:       o.amp2,
		Phase:      o.phase,
		FMods:      opIDs(o.fmods),
		PMods:      opIDs(o.pmods),
		AMods:      opIDs(o.amods),
	}
}

func opIDs(ops []*opInfo) []int {
	if len(ops) == 0 {
		return nil
	}
	ids := make([]int, len(ops))
	for i, o := range ops {
		ids[i] = o.id
	}
	return ids
}
