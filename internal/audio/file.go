package audio

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
)

// probeStreamInfo runs ffprobe on the first audio stream of a file
var probeStreamInfo = func(ctx context.Context, path string) ([]byte, error) {
	return exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "default=noprint_wrappers=1",
		path,
	).Output()
}

// OpenFile builds a handle for an existing clip on disk. The format is read
// from the WAV header, or from ffprobe for other containers.
func OpenFile(ctx context.Context, path string) (MediaHandle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return MediaHandle{}, fmt.Errorf("invalid path %s: %w", path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return MediaHandle{}, fmt.Errorf("audio file not found: %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return MediaHandle{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return MediaHandle{}, fmt.Errorf("%s is a directory", path)
	}

	h := MediaHandle{
		URI:  FileURI(abs),
		Path: abs,
		Size: info.Size(),
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if dec.Err() == nil && dec.IsValidFile() && dec.SampleRate > 0 {
		h.SampleRate = int(dec.SampleRate)
		h.Channels = int(dec.NumChans)
		return h, nil
	}

	out, err := probeStreamInfo(ctx, abs)
	if err != nil {
		return MediaHandle{}, fmt.Errorf("cannot read the audio format of %s (not WAV and ffprobe failed): %w", path, err)
	}
	h.SampleRate, h.Channels = parseStreamInfo(string(out))
	if h.SampleRate <= 0 {
		return MediaHandle{}, fmt.Errorf("no audio stream found in %s", path)
	}
	if h.Channels <= 0 {
		h.Channels = 1
	}

	return h, nil
}

// parseStreamInfo reads the key=value lines printed by ffprobe
func parseStreamInfo(output string) (sampleRate, channels int) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "sample_rate":
			if sampleRate == 0 {
				sampleRate = n
			}
		case "channels":
			if channels == 0 {
				channels = n
			}
		}
	}
	return sampleRate, channels
}
