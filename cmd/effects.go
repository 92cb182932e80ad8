package cmd

import (
	"fmt"
	"io"

	"github.com/audiolibrelab/funnyvoice/internal/effect"

	"github.com/spf13/cobra"
)

var effectsCmd = &cobra.Command{
	Use:   "effects",
	Short: "List the voice effects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printEffects(cmd.OutOrStdout(), cfg.Effects.Default)
		return nil
	},
}

func printEffects(out io.Writer, selected string) {
	fmt.Fprintf(out, "🎭 Voice Effects\n")
	fmt.Fprintf(out, "═══════════════════════════════════════\n\n")

	for _, e := range effect.All() {
		marker := " "
		if e.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(out, " %s %-14s %-8s %.2fx  %s\n", marker, e.ID, e.DisplayName, e.Rate, e.PitchLabel)
	}

	fmt.Fprintf(out, "\n💡 Select with --effect or effects.default in the config file\n")
}
