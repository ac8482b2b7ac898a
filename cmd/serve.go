package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/audiocast/internal/audio"
	"github.com/audiolibrelab/audiocast/internal/config"
	"github.com/audiolibrelab/audiocast/internal/keypress"
	"github.com/audiolibrelab/audiocast/internal/metrics"
	"github.com/audiolibrelab/audiocast/internal/server"
	"github.com/audiolibrelab/audiocast/internal/service"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the streaming web server",
	Long: `Start the audiocast web server. Open the printed local network URL in a
browser to pick a capture device and encoding, then play /stream from any
device on the same network.

When stdin is a terminal, pressing q (or Ctrl-C) stops the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			settings.Server.Port, _ = cmd.Flags().GetString("port")
		}
		if cmd.Flags().Changed("static-dir") {
			settings.Server.StaticDir, _ = cmd.Flags().GetString("static-dir")
		}
		if noKeys, _ := cmd.Flags().GetBool("no-keypress"); noKeys {
			settings.Keypress.Enabled = false
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, stop)
	},
}

func init() {
	serveCmd.Flags().String("port", "3000", "port for the web server (overrides settings)")
	serveCmd.Flags().String("static-dir", "public", "directory with the web UI (overrides settings)")
	serveCmd.Flags().Bool("no-keypress", false, "do not watch the terminal for a quit key")
}

func runServer(ctx context.Context, cancel context.CancelFunc) error {
	platform := settings.Platform()

	var stats *metrics.Stats
	if settings.Server.Metrics {
		stats = metrics.New()
	}

	store := config.NewStore(settings.State.File, platform)
	if _, err := store.Load(); err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	directory := audio.NewDirectory(audio.ExecProber{}, settings.Capture.FFmpegBinary,
		platform.Driver, settings.Capture.ProbeTimeout, stats)
	manager := audio.NewManager(audio.NewExecLauncher(settings.Capture.FFmpegBinary),
		stats, settings.Capture.KillGrace)

	svc := service.New(service.Options{
		Store:           store,
		Devices:         directory,
		Streamer:        manager,
		Logs:            logBuffer,
		AllowCustomArgs: settings.Server.AllowCustomArgs,
	})

	srv := server.New(svc, server.Options{
		Port:        settings.Server.Port,
		StaticDir:   settings.Server.StaticDir,
		CORSOrigins: settings.Server.CORSOrigins,
		Stats:       stats,
	})

	if settings.Keypress.Enabled {
		stopKeys, err := keypress.Start(os.Stdin, keypress.Options{
			QuitKeys: settings.Keypress.QuitKeys,
			Console:  console,
		}, func(key byte) {
			slog.Info("Quit key pressed")
			cancel()
		})
		if err != nil && !errors.Is(err, keypress.ErrNotTerminal) {
			slog.Warn("Keypress listener disabled", "error", err)
		}
		defer stopKeys()
	}

	slog.Info("audiocast starting",
		"driver", platform.Driver,
		"state_file", store.Path(),
		"settings", cfgFile)

	if err := srv.Run(ctx); err != nil {
		return err
	}
	slog.Info("Server stopped", "active_streams", manager.Active())
	return nil
}
