package play

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildWAV writes a canonical 44-byte-header PCM WAV
func buildWAV(t *testing.T, sampleRate, channels, bits int, payload []byte) *bytes.Reader {
	t.Helper()

	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("binary.Write failed: %v", err)
		}
	}

	blockAlign := channels * bits / 8
	buf.WriteString("RIFF")
	w(uint32(36 + len(payload)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1))
	w(uint16(channels))
	w(uint32(sampleRate))
	w(uint32(sampleRate * blockAlign))
	w(uint16(blockAlign))
	w(uint16(bits))
	buf.WriteString("data")
	w(uint32(len(payload)))
	buf.Write(payload)

	return bytes.NewReader(buf.Bytes())
}

func pcm16(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestDecodeWAV_Mono16(t *testing.T) {
	r := buildWAV(t, 16000, 1, 16, pcm16(0, 1000, -1000, 32767))

	samples, rate, err := decodeWAV(r)
	if err != nil {
		t.Fatalf("decodeWAV failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected 16000 Hz, got %d", rate)
	}

	expected := []int16{0, 1000, -1000, 32767}
	if len(samples) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(samples))
	}
	for i := range expected {
		if samples[i] != expected[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, expected[i], samples[i])
		}
	}
}

func TestDecodeWAV_StereoDownmix(t *testing.T) {
	r := buildWAV(t, 48000, 2, 16, pcm16(100, 300, -200, 200))

	samples, _, err := decodeWAV(r)
	if err != nil {
		t.Fatalf("decodeWAV failed: %v", err)
	}
	if len(samples) != 2 || samples[0] != 200 || samples[1] != 0 {
		t.Errorf("Expected [200 0], got %v", samples)
	}
}

func TestDecodeWAV_NotWAV(t *testing.T) {
	if _, _, err := decodeWAV(bytes.NewReader([]byte("definitely not a wav file at all, no RIFF here"))); err == nil {
		t.Error("Expected error for non-WAV input")
	}
}

func TestTo16(t *testing.T) {
	if got := to16(255, 8); got != 127<<8 {
		t.Errorf("8-bit max: expected %d, got %d", 127<<8, got)
	}
	if got := to16(0, 8); got != -128<<8 {
		t.Errorf("8-bit min: expected %d, got %d", -128<<8, got)
	}
	if got := to16(1<<23-1, 24); got != 32767 {
		t.Errorf("24-bit max: expected 32767, got %d", got)
	}
	if got := to16(-5, 16); got != -5 {
		t.Errorf("16-bit passthrough: expected -5, got %d", got)
	}
}
