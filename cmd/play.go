package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/funnyvoice/internal/audio"
	"github.com/audiolibrelab/funnyvoice/internal/effect"
	"github.com/audiolibrelab/funnyvoice/internal/play"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play an audio file with a voice effect",
	Long: `Play an existing audio file at the playback rate of a voice effect.
Uses the configured player (mpv, ffplay or the built-in output).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		effectID, _ := cmd.Flags().GetString("effect")
		if effectID == "" {
			effectID = cfg.Effects.Default
		}

		eff, err := effect.Lookup(effectID)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h, err := audio.OpenFile(ctx, args[0])
		if err != nil {
			return err
		}

		player, err := play.New(cfg)
		if err != nil {
			return err
		}

		fmt.Printf("Playing %s as %s (%.2fx)\n", args[0], eff.DisplayName, eff.Rate)

		pb, err := player.Play(ctx, h, play.Options{
			Rate:         eff.Rate,
			Volume:       cfg.Playback.Volume,
			CorrectPitch: cfg.Playback.CorrectPitch,
		})
		if err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}

		select {
		case c := <-pb.Done():
			if c.Err != nil {
				return fmt.Errorf("playback failed: %w", c.Err)
			}
		case <-ctx.Done():
			slog.Info("Stopping playback...")
			if err := pb.Stop(); err != nil {
				return err
			}
			<-pb.Done()
		}

		return nil
	},
}

func init() {
	playCmd.Flags().StringP("effect", "e", "", "voice effect (default from config)")
}
