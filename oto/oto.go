// Package oto implements saugo.AudioContext on top of the
// ebitengine/oto library.
package oto

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/saugns/saugo"
)

type OtoContext struct {
	context *oto.Context
}

// NewContext creates an audio context playing 16-bit stereo at the
// given sample rate. The underlying library allows only one context
// per process.
func NewContext(sampleRate int) (*OtoContext, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	context, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{context: context}, nil
}

// Play renders source to the audio device, returning once the source
// reports no more signal and the device has drained.
func (c *OtoContext) Play(source saugo.Generator) error {
	player := c.context.NewPlayer(&generatorReader{source: source})
	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	if err := player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// Close suspends the context; the library keeps its device handle for
// the lifetime of the process.
func (c *OtoContext) Close() error {
	return c.context.Suspend()
}

// generatorReader adapts a Generator to the io.Reader the oto player
// pulls from: interleaved 16-bit stereo, little-endian.
type generatorReader struct {
	source saugo.Generator
	tmp    []int16
	done   bool
}

func (r *generatorReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}
	if cap(r.tmp) < frames*2 {
		r.tmp = make([]int16, frames*2)
	}
	buffer := r.tmp[:frames*2]
	n, more := r.source.Run(buffer)
	if !more {
		r.done = true
	}
	if n == 0 && r.done {
		return 0, io.EOF
	}
	for i, s := range buffer[:n*2] {
		p[2*i] = byte(s)
		p[2*i+1] = byte(uint16(s) >> 8)
	}
	return n * 4, nil
}
