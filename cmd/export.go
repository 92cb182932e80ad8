package cmd

import (
	"fmt"

	"github.com/audiolibrelab/funnyvoice/internal/export"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [input] [output]",
	Short: "Render an audio file with a voice effect",
	Long: `Render an audio file at the playback rate of a voice effect into a new file
using FFmpeg. The output format follows the output file extension.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		effectID, _ := cmd.Flags().GetString("effect")
		if effectID == "" {
			effectID = cfg.Effects.Default
		}

		if err := export.New(cfg).Export(cmd.Context(), args[0], args[1], effectID); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("Saved %s\n", args[1])
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("effect", "e", "", "voice effect (default from config)")
}
