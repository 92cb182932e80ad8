package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/audiolibrelab/funnyvoice/internal/service"
	"github.com/audiolibrelab/funnyvoice/internal/session"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Hold-to-talk recording with instant funny playback",
	Long: `Press Enter to start talking and Enter again to stop. The clip is played
back right away with the selected voice effect.

Recording also stops by itself after a few seconds of silence.
Type 'q' and Enter, or press Ctrl+C, to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		effectID, _ := cmd.Flags().GetString("effect")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Debug("Creating service instance")
		svc, err := service.New(cfg, childLogWriter())
		if err != nil {
			return err
		}
		defer svc.Close()

		if effectID != "" {
			if _, err := svc.SelectEffect(effectID); err != nil {
				return err
			}
		}

		// A denied microphone keeps the loop running; every press reports the denial
		if err := svc.Start(ctx); err != nil {
			slog.Warn("Microphone unavailable, recording is disabled", "error", err)
			fmt.Fprintf(cmd.OutOrStdout(), "Microphone unavailable: %v\nFix the cause and start again to record.\n", err)
		}

		return runRecordLoop(ctx, svc, os.Stdin, cmd.OutOrStdout())
	},
}

// runRecordLoop toggles press/release on every input line and renders
// session events until the input ends or ctx is cancelled.
func runRecordLoop(ctx context.Context, svc service.Service, in io.Reader, out io.Writer) error {
	events, unsubscribe := svc.Subscribe(svc.GetConfig().Server.EventBuffer)
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	st := svc.Status()
	fmt.Fprintf(out, "%s %s (%.2fx)\n", st.Effect.DisplayName, st.Effect.PitchLabel, st.Effect.Rate)
	fmt.Fprintf(out, "%s: press Enter\n", st.Instruction)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil

		case line, ok := <-lines:
			if !ok || line == "q" {
				return nil
			}
			if err := toggle(ctx, svc); err != nil && !reportedAsEvent(err) {
				fmt.Fprintf(out, "Error: %v\n", err)
			}

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			renderEvent(out, ev)
		}
	}
}

func toggle(ctx context.Context, svc service.Service) error {
	if svc.Status().Recording.State == session.RecordingActive {
		return svc.Release(ctx)
	}
	return svc.Press(ctx)
}

// reportedAsEvent tells whether the session already published err as an error event
func reportedAsEvent(err error) bool {
	return errors.Is(err, session.ErrPermissionDenied) ||
		errors.Is(err, session.ErrCaptureStart) ||
		errors.Is(err, session.ErrCaptureStop) ||
		errors.Is(err, session.ErrPlaybackStart)
}

func init() {
	recordCmd.Flags().StringP("effect", "e", "", "voice effect (see 'funnyvoice effects')")
}
