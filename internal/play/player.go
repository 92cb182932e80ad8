// Package play replays captured clips at a playback rate. Changing the rate
// without pitch correction changes the perceived pitch, which is the whole
// voice effect.
package play

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
	"github.com/audiolibrelab/funnyvoice/internal/config"
)

// Options controls one playback
type Options struct {
	Rate         float64
	Volume       float64
	CorrectPitch bool
}

// Completion is delivered exactly once when a playback ends
type Completion struct {
	// Finished is true when the clip played to the end
	Finished bool
	// Interrupted is true when Stop ended the playback
	Interrupted bool
	Err         error
}

// Playback is one running replay
type Playback interface {
	// Done delivers a single Completion and is then closed
	Done() <-chan Completion
	// Stop interrupts the playback; it is a no-op once finished
	Stop() error
}

// Player starts playbacks
type Player interface {
	Play(ctx context.Context, h audio.MediaHandle, opts Options) (Playback, error)
}

func (o Options) validate() error {
	if o.Rate <= 0 {
		return fmt.Errorf("playback rate must be positive, got %.2f", o.Rate)
	}
	if o.Volume < 0 || o.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %.2f", o.Volume)
	}
	return nil
}

// New creates the player selected in the configuration
func New(cfg *config.Config) (Player, error) {
	name := strings.ToLower(cfg.Playback.Player)

	switch name {
	case "oto":
		return NewOtoPlayer(cfg.Audio.SampleRate), nil
	case "mpv", "ffplay":
		if _, err := lookPath(name); err != nil {
			return nil, fmt.Errorf("player %s not found: %w", name, err)
		}
		return NewExecPlayer(name), nil
	}

	// auto: external players first, in-process output as the fallback
	if player, err := findAudioPlayer(); err == nil {
		slog.Debug("Using external audio player", "player", player)
		return NewExecPlayer(player), nil
	}

	slog.Debug("No external audio player found, using in-process output")
	return NewOtoPlayer(cfg.Audio.SampleRate), nil
}
