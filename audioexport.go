package saugo

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Wav wraps an interleaved 16-bit stereo buffer into a PCM .wav file.
func Wav(buffer []int16, sampleRate int) ([]byte, error) {
	buf := new(bytes.Buffer)
	wavHeader(len(buffer), sampleRate, buf)
	if err := binary.Write(buf, binary.LittleEndian, buffer); err != nil {
		return nil, fmt.Errorf("Wav failed: %v", err)
	}
	return buf.Bytes(), nil
}

// Raw returns the interleaved 16-bit stereo buffer as little-endian
// bytes, without any header.
func Raw(buffer []int16) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, buffer); err != nil {
		return nil, fmt.Errorf("Raw failed: %v", err)
	}
	return buf.Bytes(), nil
}

// wavHeader writes a wave header for an int16 .wav file into the
// bytes.Buffer. It needs to know the length of the buffer and assumes
// stereo sound, so the length in stereo samples (L + R) is bufferLength
// / 2.
func wavHeader(bufferLength, sampleRate int, buf *bytes.Buffer) {
	// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	const numChannels = 2
	const bytesPerSample = 2
	chunkSize := 36 + bytesPerSample*bufferLength
	buf.Write([]byte("RIFF"))
	binary.Write(buf, binary.LittleEndian, uint32(chunkSize))
	buf.Write([]byte("WAVE"))
	buf.Write([]byte("fmt "))
	binary.Write(buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*numChannels*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(numChannels*bytesPerSample))            // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample))                      // bits per sample
	buf.Write([]byte("data"))
	binary.Write(buf, binary.LittleEndian, uint32(bytesPerSample*bufferLength))
}
