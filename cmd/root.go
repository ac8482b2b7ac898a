package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/audiolibrelab/audiocast/internal/config"
	"github.com/audiolibrelab/audiocast/internal/eventlog"
	"github.com/audiolibrelab/audiocast/internal/keypress"

	"github.com/spf13/cobra"
)

var (
	settings     *config.Settings
	cfgFile      string
	verboseLevel int

	// logBuffer backs GET /logs. It is replaced once settings are loaded.
	logBuffer = eventlog.NewBuffer(eventlog.DefaultCapacity)
	console   = keypress.NewConsole(os.Stderr)
)

var rootCmd = &cobra.Command{
	Use:   "audiocast",
	Short: "Stream a local audio capture device over HTTP",
	Long: `audiocast captures audio from a local input or system loopback device
with ffmpeg and streams it to any HTTP client, such as a browser or a media
player on the same network.

Run 'audiocast serve' to start the web server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// listen only needs a URL
		if cmd.Name() == "listen" {
			setupLogging(verboseLevel, eventlog.DefaultCapacity)
			return nil
		}

		if cfgFile == "" {
			cfgFile = config.DefaultSettingsFile()
		}

		var err error
		settings, err = config.LoadSettings(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}

		setupLogging(verboseLevel, settings.Logging.Capacity)
		slog.Debug("Settings loaded", "file", cfgFile, "state_file", settings.State.File)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default is $HOME/.config/audiocast.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=debug including ffmpeg output in /logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(listenCmd)
}

// setupLogging configures slog based on the verbose level. Every record the
// console shows at info or above also goes to the in-memory buffer served at
// /logs; level 2 lowers the buffer to debug as well.
func setupLogging(level, capacity int) {
	consoleLevel := slog.LevelInfo
	bufferLevel := slog.LevelInfo
	switch {
	case level >= 2:
		consoleLevel = slog.LevelDebug
		bufferLevel = slog.LevelDebug
	case level == 1:
		consoleLevel = slog.LevelDebug
	}

	if capacity != logBuffer.Cap() {
		logBuffer = eventlog.NewBuffer(capacity)
	}

	text := slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel})
	slog.SetDefault(slog.New(eventlog.NewHandler(logBuffer, text, bufferLevel)))
}
