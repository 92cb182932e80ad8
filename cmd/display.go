package cmd

import (
	"fmt"
	"io"

	"github.com/audiolibrelab/funnyvoice/internal/service"
	"github.com/audiolibrelab/funnyvoice/internal/session"
)

// renderEvent prints one line per session event
func renderEvent(out io.Writer, ev session.Event) {
	rec := ev.Recording

	switch ev.Kind {
	case session.EventRecordingStarted:
		fmt.Fprintln(out, "● Talk now! Press Enter to stop")
	case session.EventTick:
		fmt.Fprintf(out, "  %s  %s\n", service.FormatTime(rec.ElapsedSeconds), service.FormatSize(int64(rec.SimulatedBytes)))
	case session.EventRecordingStopped:
		if ev.Reason == session.StopAuto {
			fmt.Fprintf(out, "■ Stopped after silence (%s)\n", service.FormatTime(rec.ElapsedSeconds))
		} else {
			fmt.Fprintf(out, "■ Stopped (%s)\n", service.FormatTime(rec.ElapsedSeconds))
		}
	case session.EventPlaybackStarted:
		if ev.Playback != nil {
			fmt.Fprintf(out, "▶ Playing at %.2fx (%s)\n", ev.Playback.Rate, ev.Playback.EffectID)
		}
	case session.EventPlaybackFinished:
		if ev.Error != "" {
			fmt.Fprintf(out, "Playback failed: %s\n", ev.Error)
		}
		fmt.Fprintln(out, "Press and hold to record: press Enter")
	case session.EventPlaybackPreempted:
		fmt.Fprintln(out, "Playback interrupted")
	case session.EventError:
		fmt.Fprintf(out, "Error: %s\n", ev.Error)
	}
}
