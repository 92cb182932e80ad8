package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
	"github.com/audiolibrelab/funnyvoice/internal/config"
	"github.com/audiolibrelab/funnyvoice/internal/effect"
	"github.com/audiolibrelab/funnyvoice/internal/play"
)

// Exporter renders a clip at an effect's playback rate into a new file
type Exporter struct {
	cfg  *config.Config
	open func(ctx context.Context, path string) (audio.MediaHandle, error)
	run  func(ctx context.Context, args []string) ([]byte, error)
}

func New(cfg *config.Config) *Exporter {
	return &Exporter{
		cfg:  cfg,
		open: audio.OpenFile,
		run: func(ctx context.Context, args []string) ([]byte, error) {
			return exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		},
	}
}

// Export writes inputFile played at the rate of effectID to outputFile.
// The output format follows the output file extension.
func (e *Exporter) Export(ctx context.Context, inputFile, outputFile, effectID string) error {
	eff, err := effect.Lookup(effectID)
	if err != nil {
		return err
	}

	h, err := e.open(ctx, inputFile)
	if err != nil {
		return fmt.Errorf("cannot open input: %w", err)
	}

	args := ffmpegArgs(h.Path, outputFile, h.SampleRate, eff.Rate, e.cfg.Playback.CorrectPitch)

	slog.Debug("Running FFmpeg for export", "command", strings.Join(args, " "))

	output, err := e.run(ctx, args)
	if err != nil {
		return fmt.Errorf("FFmpeg export failed: %w\nOutput: %s", err, string(output))
	}

	if _, err := os.Stat(outputFile); err != nil {
		return fmt.Errorf("output file not created: %s", outputFile)
	}

	slog.Info("Exported clip saved to", "file", outputFile, "effect", eff.ID, "rate", eff.Rate)
	return nil
}

func ffmpegArgs(inputFile, outputFile string, sampleRate int, rate float64, correctPitch bool) []string {
	return []string{
		"ffmpeg",
		"-i", inputFile,
		"-af", play.RateFilter(sampleRate, rate, correctPitch),
		"-y",
		outputFile,
	}
}
