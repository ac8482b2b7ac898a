package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/audiocast/internal/play"

	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen <url>",
	Short: "Play a running audiocast stream",
	Long: `Play an audiocast stream with the first available local player
(vlc, mpv or ffplay). A bare host:port plays its /stream endpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		streamURL, err := play.StreamURL(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return play.New().Play(ctx, streamURL)
	},
}
