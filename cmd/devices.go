package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/audiolibrelab/audiocast/internal/audio"
	"github.com/audiolibrelab/audiocast/internal/config"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"sources"},
	Short:   "List available capture devices",
	Long: `List the audio capture devices reported by the platform's capture driver.
The selected device is marked with '*' and the detected system audio
loopback device with 'L'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		platform := settings.Platform()
		directory := audio.NewDirectory(audio.ExecProber{}, settings.Capture.FFmpegBinary,
			platform.Driver, settings.Capture.ProbeTimeout, nil)

		devices, err := directory.List(context.Background())
		if err != nil {
			return err
		}

		var selected string
		state, err := config.NewStore(settings.State.File, platform).Load()
		if err == nil && state.HasDevice() {
			selected = state.Device()
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Driver   string         `json:"driver"`
				Devices  []audio.Device `json:"devices"`
				Selected string         `json:"selected,omitempty"`
			}{directory.Driver(), devices, selected})
		}

		printDevices(directory.Driver(), devices, selected)
		return nil
	},
}

func init() {
	devicesCmd.Flags().Bool("json", false, "print the device list as JSON")
}

func printDevices(driver string, devices []audio.Device, selected string) {
	fmt.Printf("Capture devices (%s, %d found)\n", driver, len(devices))
	fmt.Printf("═══════════════════════════════════════\n\n")

	if len(devices) == 0 {
		fmt.Printf("No devices found. Check that the %s capture driver is available.\n", driver)
		return
	}

	loopback, hasLoopback := audio.FindLoopback(devices)
	for i, d := range devices {
		mark := " "
		if d.Value == selected {
			mark = "*"
		}
		loop := " "
		if hasLoopback && d.Value == loopback.Value {
			loop = "L"
		}
		fmt.Printf(" %s%s %2d. %s\n", mark, loop, i+1, d.Label)
		if d.Label != d.Value {
			fmt.Printf("        %s\n", d.Value)
		}
	}

	fmt.Printf("\nSelect a device with: audiocast config set-device <value>\n")
}
