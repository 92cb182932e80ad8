package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/funnyvoice/internal/server"
	"github.com/audiolibrelab/funnyvoice/internal/service"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the FunnyVoice web server: a hold-to-talk page, a JSON API and
Prometheus metrics. Open it from your smartphone or any device on the same network.

The server will display the local network URL for easy access from mobile devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = cfg.Server.Port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := service.New(cfg, childLogWriter())
		if err != nil {
			return err
		}
		defer svc.Close()

		// A denied microphone keeps the server up; presses report the error
		if err := svc.Start(ctx); err != nil {
			slog.Warn("Microphone unavailable, recording is disabled", "error", err)
		}

		slog.Info("FunnyVoice web server starting", "port", port, "config", cfgFile)

		if err := server.New(svc, port).Start(ctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port for the web server (default from config)")
}
