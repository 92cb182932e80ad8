package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/funnyvoice/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio sources",
	Long:  `List the capture nodes that can be used as audio.source with the PipeWire backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("🎵 Audio Sources (%s)\n", runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		backends := audio.GetAvailableBackends()
		fmt.Printf("Capture backends available: %v\n\n", backends)

		sources, err := audio.NewPipeWire().ListSources(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get PipeWire sources: %w", err)
		}

		fmt.Printf("📋 PIPEWIRE SOURCES (%d found):\n", len(sources))
		for i, source := range sources {
			marker := " "
			if source == cfg.Audio.Source {
				marker = "*"
			}
			fmt.Printf(" %s %d. %s\n", marker, i+1, source)
		}

		fmt.Printf("\n💡 Usage:\n")
		fmt.Printf("  • Set audio.source to one of the names above\n")
		fmt.Printf("  • Leave it empty to record from the default input\n")
		fmt.Printf("  • With the ALSA backend use a device such as \"hw:1,0\"\n\n")

		return nil
	},
}
