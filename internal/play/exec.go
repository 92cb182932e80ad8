package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
)

// lookPath is replaced in tests
var lookPath = exec.LookPath

// ExecPlayer plays clips with an external player process
type ExecPlayer struct {
	name string
}

// NewExecPlayer creates a player for "mpv" or "ffplay"
func NewExecPlayer(name string) *ExecPlayer {
	return &ExecPlayer{name: name}
}

// Play starts the player process and returns immediately
func (p *ExecPlayer) Play(ctx context.Context, h audio.MediaHandle, opts Options) (Playback, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(h.Path); err != nil {
		return nil, fmt.Errorf("audio file not found: %s", h.Path)
	}

	args, err := playerArgs(p.name, h, opts)
	if err != nil {
		return nil, err
	}

	slog.Debug("Starting player", "command", strings.Join(args, " "))

	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("playback failed with %s: %w", p.name, err)
	}

	pb := &execPlayback{
		cmd:  cmd,
		done: make(chan Completion, 1),
	}
	go pb.wait(p.name)

	return pb, nil
}

type execPlayback struct {
	cmd  *exec.Cmd
	done chan Completion

	mu      sync.Mutex
	stopped bool
	exited  bool
}

func (pb *execPlayback) wait(name string) {
	err := pb.cmd.Wait()

	pb.mu.Lock()
	pb.exited = true
	interrupted := pb.stopped
	pb.mu.Unlock()

	c := Completion{Interrupted: interrupted}
	switch {
	case interrupted:
	case err != nil:
		c.Err = fmt.Errorf("playback failed with %s: %w", name, err)
	default:
		c.Finished = true
	}

	pb.done <- c
	close(pb.done)
}

func (pb *execPlayback) Done() <-chan Completion {
	return pb.done
}

func (pb *execPlayback) Stop() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.stopped || pb.exited {
		return nil
	}
	pb.stopped = true

	if err := pb.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop player: %w", err)
	}
	return nil
}

// playerArgs builds the command line playing h at opts.Rate
func playerArgs(name string, h audio.MediaHandle, opts Options) ([]string, error) {
	switch name {
	case "mpv":
		pitch := "no"
		if opts.CorrectPitch {
			pitch = "yes"
		}
		return []string{
			"mpv", "--no-video", "--really-quiet",
			fmt.Sprintf("--speed=%.3f", opts.Rate),
			"--audio-pitch-correction=" + pitch,
			fmt.Sprintf("--volume=%d", int(opts.Volume*100)),
			h.Path,
		}, nil
	case "ffplay":
		filter := RateFilter(h.SampleRate, opts.Rate, opts.CorrectPitch) + fmt.Sprintf(",volume=%.2f", opts.Volume)
		return []string{
			"ffplay", "-nodisp", "-autoexit", "-loglevel", "error",
			"-af", filter,
			h.Path,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported player: %s", name)
	}
}

// RateFilter returns the ffmpeg audio filter that plays a clip of the given
// sample rate at rate. Without pitch correction the clip is relabelled to a
// new sample rate and resampled back, so speed and pitch change together.
func RateFilter(sampleRate int, rate float64, correctPitch bool) string {
	if correctPitch {
		return fmt.Sprintf("atempo=%.3f", rate)
	}
	return fmt.Sprintf("asetrate=%d*%.3f,aresample=%d", sampleRate, rate, sampleRate)
}

func findAudioPlayer() (string, error) {
	// List of preferred audio players in order of preference
	players := []string{"mpv", "ffplay"}

	for _, player := range players {
		if _, err := lookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
