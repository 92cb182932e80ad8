package play

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
)

// oto allows a single context per process
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoErr     error
)

func sharedContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("cannot create oto context: %w", err)
			return
		}
		<-ready
		otoContext = ctx
	})
	return otoContext, otoErr
}

// OtoPlayer plays clips in-process through the system audio output
type OtoPlayer struct {
	sampleRate int
	poll       time.Duration
}

// NewOtoPlayer creates a player whose output runs at sampleRate
func NewOtoPlayer(sampleRate int) *OtoPlayer {
	return &OtoPlayer{sampleRate: sampleRate, poll: 20 * time.Millisecond}
}

// Play decodes the clip and starts streaming it at opts.Rate
func (p *OtoPlayer) Play(ctx context.Context, h audio.MediaHandle, opts Options) (Playback, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.CorrectPitch {
		slog.Warn("Pitch correction is not supported by the in-process player, ignoring")
	}

	f, err := os.Open(h.Path)
	if err != nil {
		return nil, fmt.Errorf("audio file not found: %s", h.Path)
	}
	defer f.Close()

	samples, srcRate, err := decodeWAV(f)
	if err != nil {
		return nil, err
	}

	octx, err := sharedContext(p.sampleRate)
	if err != nil {
		return nil, err
	}

	player := octx.NewPlayer(newRateReader(samples, srcRate, p.sampleRate, opts.Rate))
	player.SetVolume(opts.Volume)
	player.Play()

	slog.Debug("In-process playback started", "samples", len(samples), "source_rate", srcRate, "rate", opts.Rate)

	pb := &otoPlayback{
		player: player,
		stop:   make(chan struct{}),
		done:   make(chan Completion, 1),
	}
	go pb.watch(p.poll)

	return pb, nil
}

type otoPlayback struct {
	player   *oto.Player
	stop     chan struct{}
	stopOnce sync.Once
	done     chan Completion
}

func (pb *otoPlayback) watch(poll time.Duration) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-pb.stop:
			pb.player.Pause()
			pb.finish(Completion{Interrupted: true})
			return
		case <-ticker.C:
			if !pb.player.IsPlaying() {
				if err := pb.player.Err(); err != nil {
					pb.finish(Completion{Err: fmt.Errorf("in-process playback failed: %w", err)})
				} else {
					pb.finish(Completion{Finished: true})
				}
				return
			}
		}
	}
}

func (pb *otoPlayback) finish(c Completion) {
	pb.done <- c
	close(pb.done)
}

func (pb *otoPlayback) Done() <-chan Completion {
	return pb.done
}

func (pb *otoPlayback) Stop() error {
	pb.stopOnce.Do(func() { close(pb.stop) })
	return nil
}
