package saugo

// Generator produces interleaved 16-bit stereo PCM. Run fills at most
// len(buffer)/2 frames and returns the number of frames it actually
// produced, plus whether more signal remains; a short fill only happens
// at the end of the signal. Package vm provides the implementation.
type Generator interface {
	Run(buffer []int16) (frames int, more bool)
	SampleRate() int
}

// AudioContext is a handle to a playback backend. Package oto provides
// the real one.
type AudioContext interface {
	// Play renders the source to the audio device, blocking until the
	// source reports no more signal.
	Play(source Generator) error
	Close() error
}
