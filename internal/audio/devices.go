package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/audiolibrelab/audiocast/internal/config"
	"github.com/audiolibrelab/audiocast/internal/metrics"
)

// loopbackKeywords identify virtual sources that capture system output.
var loopbackKeywords = []string{
	"blackhole",
	"loopback",
	"stereo mix",
	"monitor",
	"soundflower",
	"what u hear",
	"wave out",
	"cable output",
}

type probeCommand struct {
	name string
	args []string
}

// Directory lists the capture devices available to one driver.
type Directory struct {
	prober  Prober
	driver  string
	ffmpeg  string
	timeout time.Duration
	stats   *metrics.Stats
}

func NewDirectory(prober Prober, ffmpegBinary, driver string, timeout time.Duration, stats *metrics.Stats) *Directory {
	return &Directory{
		prober:  prober,
		driver:  driver,
		ffmpeg:  ffmpegBinary,
		timeout: timeout,
		stats:   stats,
	}
}

// Driver returns the capture driver this directory probes.
func (d *Directory) Driver() string {
	return d.driver
}

func (d *Directory) probeCommands() []probeCommand {
	switch d.driver {
	case config.DriverDShow:
		return []probeCommand{{d.ffmpeg, []string{"-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy"}}}
	case config.DriverAVFoundation:
		return []probeCommand{{d.ffmpeg, []string{"-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""}}}
	case config.DriverALSA:
		return []probeCommand{{"arecord", []string{"-l"}}}
	default:
		return []probeCommand{
			{"pactl", []string{"list", "sources"}},
			{"pactl", []string{"list", "sinks"}},
		}
	}
}

// fallbackDevices is returned when a probe succeeds but nothing parses.
func fallbackDevices(driver string) []Device {
	switch driver {
	case config.DriverDShow:
		return nil
	case config.DriverAVFoundation:
		return []Device{{Value: ":default", Label: "default"}}
	default:
		return []Device{{Value: "default", Label: "default"}}
	}
}

// List probes the driver and returns the devices it reports. Probe failures
// are returned as ErrDeviceListingFailed.
func (d *Directory) List(ctx context.Context) ([]Device, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	var output strings.Builder
	for _, pc := range d.probeCommands() {
		out, err := d.prober.Probe(ctx, pc.name, pc.args...)
		if err != nil {
			d.stats.ProbeFinished(d.driver, time.Since(start).Seconds(), true)
			slog.Error("Device listing failed", "driver", d.driver, "command", pc.name, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrDeviceListingFailed, err)
		}
		output.WriteString(out)
		output.WriteByte('\n')
	}
	d.stats.ProbeFinished(d.driver, time.Since(start).Seconds(), false)

	devices := ParseDevices(d.driver, output.String())
	if len(devices) == 0 {
		slog.Debug("No devices parsed from probe output, using fallback", "driver", d.driver)
		return fallbackDevices(d.driver), nil
	}

	slog.Debug("Listed capture devices", "driver", d.driver, "count", len(devices))
	return devices, nil
}

// FindLoopback returns the first device whose label names a loopback or
// monitor source. Sources with other names are not detected.
func FindLoopback(devices []Device) (Device, bool) {
	for _, dev := range devices {
		label := strings.ToLower(dev.Label)
		for _, kw := range loopbackKeywords {
			if strings.Contains(label, kw) {
				return dev, true
			}
		}
	}
	return Device{}, false
}
