package play

import (
	"encoding/binary"
	"io"
	"math"
)

// rateReader streams mono 16-bit samples as s16le bytes, stepping through the
// source at rate*srcRate/outRate samples per output sample with linear
// interpolation. A rate above 1 plays faster and higher, below 1 slower and
// lower.
type rateReader struct {
	samples []int16
	pos     float64
	step    float64
}

func newRateReader(samples []int16, srcRate, outRate int, rate float64) *rateReader {
	return &rateReader{
		samples: samples,
		step:    rate * float64(srcRate) / float64(outRate),
	}
}

func (r *rateReader) Read(p []byte) (int, error) {
	n := 0
	for n+1 < len(p) {
		i := int(r.pos)
		if i >= len(r.samples) {
			break
		}

		s := float64(r.samples[i])
		if i+1 < len(r.samples) {
			frac := r.pos - float64(i)
			s += (float64(r.samples[i+1]) - s) * frac
		}

		binary.LittleEndian.PutUint16(p[n:], uint16(int16(math.Round(s))))
		n += 2
		r.pos += r.step
	}

	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
