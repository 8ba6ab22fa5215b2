package saugo

// RenderAll drives a generator until it reports no more signal and
// returns everything it produced. Intended for offline use (file
// export, tests); playback should feed the generator to an
// AudioContext instead.
func RenderAll(g Generator) []int16 {
	const chunkFrames = 4096
	buffer := make([]int16, 0, chunkFrames*2)
	chunk := make([]int16, chunkFrames*2)
	stalls := 0
	for {
		frames, more := g.Run(chunk)
		buffer = append(buffer, chunk[:frames*2]...)
		if !more {
			return buffer
		}
		if frames == 0 {
			if stalls++; stalls > 100 {
				// a generator that reports more signal but produces none
				// would otherwise spin forever
				return buffer
			}
		} else {
			stalls = 0
		}
	}
}
