package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/audiocast/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the persisted capture configuration",
	Long: `View and change the persisted device and encoding selection. The server
reads the same state file on every request, so changes apply to the next
stream.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the persisted configuration and settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := stateStore()
		state, err := store.Load()
		if err != nil {
			return err
		}

		if info, err := os.Stat(store.Path()); err == nil {
			fmt.Printf("# %s (updated %s)\n", store.Path(), humanize.Time(info.ModTime()))
		}
		out, err := yaml.Marshal(state)
		if err != nil {
			return fmt.Errorf("error marshaling configuration: %w", err)
		}
		fmt.Print(string(out))

		if all, _ := cmd.Flags().GetBool("settings"); all {
			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("error marshaling settings: %w", err)
			}
			fmt.Printf("---\n# settings\n%s", out)
		}
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the persisted configuration and recreate the default",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := stateStore().Reset()
		if err != nil {
			return err
		}
		fmt.Printf("Configuration reset: %s\n", strings.Join(state.InvocationArgs, " "))
		return nil
	},
}

var configSetDeviceCmd = &cobra.Command{
	Use:   "set-device <value>",
	Short: "Select the capture device",
	Long:  `Select the capture device by its value as printed by 'audiocast devices'.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := stateStore().SetDevice(strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("Device selected: %s\n", state.Device())
		return nil
	},
}

var configSetEncodingCmd = &cobra.Command{
	Use:   "set-encoding [ffmpeg args...]",
	Short: "Set the encoding arguments or a preset",
	Long: `Set the ffmpeg encoding arguments that follow the input, for example

  audiocast config set-encoding -- -ac 2 -c:a libopus -b:a 128k -f ogg

or pick a preset with --preset (` + strings.Join(config.PresetNames(), ", ") + `).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens := args
		if preset, _ := cmd.Flags().GetString("preset"); preset != "" {
			var ok bool
			tokens, ok = config.Presets[strings.ToLower(preset)]
			if !ok {
				return fmt.Errorf("%w: unknown preset %q (available: %s)",
					config.ErrInvalidEncoding, preset, strings.Join(config.PresetNames(), ", "))
			}
		}

		state, err := stateStore().SetEncoding(tokens)
		if err != nil {
			return err
		}
		fmt.Printf("Encoding updated: %s\n", strings.Join(state.InvocationArgs, " "))
		return nil
	},
}

func stateStore() *config.Store {
	return config.NewStore(settings.State.File, settings.Platform())
}

func init() {
	configShowCmd.Flags().Bool("settings", false, "also print the resolved server settings")
	configSetEncodingCmd.Flags().String("preset", "", "encoding preset name")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configSetDeviceCmd)
	configCmd.AddCommand(configSetEncodingCmd)
}
