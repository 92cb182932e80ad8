package play

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// decodeWAV reads a PCM WAV clip and returns it as mono 16-bit samples
func decodeWAV(r io.ReadSeeker) ([]int16, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV: %w", err)
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		return nil, 0, fmt.Errorf("unsupported channel count: %d", channels)
	}

	depth := int(dec.BitDepth)
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, 0, fmt.Errorf("no audio data found")
	}

	samples := make([]int16, frames)
	for f := 0; f < frames; f++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += to16(buf.Data[f*channels+ch], depth)
		}
		samples[f] = int16(sum / channels)
	}

	return samples, int(dec.SampleRate), nil
}

// to16 scales a sample of the given bit depth to the 16-bit range
func to16(v, depth int) int {
	switch {
	case depth == 8:
		// 8-bit WAV is unsigned
		return (v - 128) << 8
	case depth > 16:
		return v >> (depth - 16)
	default:
		return v
	}
}
