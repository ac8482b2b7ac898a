package audio

import (
	"testing"

	"github.com/audiolibrelab/audiocast/internal/config"
)

func assertDevices(t *testing.T, got, expected []Device) {
	t.Helper()
	if len(got) != len(expected) {
		t.Fatalf("Expected %d devices, got %d: %+v", len(expected), len(got), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected device[%d] %+v, got %+v", i, expected[i], got[i])
		}
	}
}

func TestParseDevices_DShowTagged(t *testing.T) {
	output := `[dshow @ 000001c3d9c0e2c0] "Integrated Camera" (video)
[dshow @ 000001c3d9c0e2c0]   Alternative name "@device_pnp_\\?\usb#vid_04f2"
[dshow @ 000001c3d9c0e2c0] "Microphone Array (Realtek(R) Audio)" (audio)
[dshow @ 000001c3d9c0e2c0]   Alternative name "@device_cm_{33D9A762-90C8-11D0-BD43-00A0C911CE86}\wave_{A1B2}"
[dshow @ 000001c3d9c0e2c0] "Stereo Mix (Realtek(R) Audio)" (audio)
[dshow @ 000001c3d9c0e2c0] "OBS Virtual Camera" (none)
dummy: Immediate exit requested`

	assertDevices(t, ParseDevices(config.DriverDShow, output), []Device{
		{Value: "audio=Microphone Array (Realtek(R) Audio)", Label: "Microphone Array (Realtek(R) Audio)"},
		{Value: "audio=Stereo Mix (Realtek(R) Audio)", Label: "Stereo Mix (Realtek(R) Audio)"},
	})
}

func TestParseDevices_DShowSections(t *testing.T) {
	output := `[dshow @ 0000020d] DirectShow video devices (some may be both video and audio devices)
[dshow @ 0000020d]  "Integrated Camera"
[dshow @ 0000020d]     Alternative name "@device_pnp_camera"
[dshow @ 0000020d] DirectShow audio devices
[dshow @ 0000020d]  "CABLE Output (VB-Audio Virtual Cable)"
[dshow @ 0000020d]     Alternative name "@device_cm_cable"
[dshow @ 0000020d]  ""
dummy: Immediate exit requested`

	assertDevices(t, ParseDevices(config.DriverDShow, output), []Device{
		{Value: "audio=CABLE Output (VB-Audio Virtual Cable)", Label: "CABLE Output (VB-Audio Virtual Cable)"},
	})
}

func TestParseDevices_AVFoundation(t *testing.T) {
	output := `[AVFoundation indev @ 0x7f8b0c004c00] AVFoundation video devices:
[AVFoundation indev @ 0x7f8b0c004c00] [0] FaceTime HD Camera
[AVFoundation indev @ 0x7f8b0c004c00] [1] Capture screen 0
[AVFoundation indev @ 0x7f8b0c004c00] AVFoundation audio devices:
[AVFoundation indev @ 0x7f8b0c004c00] [0] MacBook Pro Microphone
[AVFoundation indev @ 0x7f8b0c004c00] [1] BlackHole 2ch
[AVFoundation indev @ 0x7f8b0c004c00] [x] not an index
: Input/output error`

	assertDevices(t, ParseDevices(config.DriverAVFoundation, output), []Device{
		{Value: ":0", Label: "MacBook Pro Microphone"},
		{Value: ":1", Label: "BlackHole 2ch"},
	})
}

func TestParseDevices_PulseMonitorSynthesis(t *testing.T) {
	output := `Source #0
	State: SUSPENDED
	Name: alsa_output.pci-0000_00_1f.3.analog-stereo.monitor
	Description: Monitor of Built-in Audio Analog Stereo
	Driver: module-alsa-card.c
	Ports:
		analog-input-mic: Microphone (type: Mic, priority: 8700, available)
Source #1
	State: RUNNING
	Name: alsa_input.pci-0000_00_1f.3.analog-stereo
	Description: Built-in Audio Analog Stereo
	Properties:
		device.description = "Built-in Audio Analog Stereo"

Sink #0
	State: RUNNING
	Name: alsa_output.pci-0000_00_1f.3.analog-stereo
	Description: Built-in Audio Analog Stereo
	Monitor Source: alsa_output.pci-0000_00_1f.3.analog-stereo.monitor
Sink #3
	Name: bluez_sink.00_11_22
	Description: Headphones
Sink #4
	Name:
	Description: Broken sink
`

	assertDevices(t, ParseDevices(config.DriverPulse, output), []Device{
		{Value: "alsa_output.pci-0000_00_1f.3.analog-stereo.monitor", Label: "Monitor of Built-in Audio Analog Stereo"},
		{Value: "alsa_input.pci-0000_00_1f.3.analog-stereo", Label: "Built-in Audio Analog Stereo"},
		{Value: "bluez_sink.00_11_22.monitor", Label: "Monitor of Headphones"},
	})
}

func TestParseDevices_ALSA(t *testing.T) {
	output := `**** List of CAPTURE Hardware Devices ****
card 0: PCH [HDA Intel PCH], device 0: ALC3246 Analog [ALC3246 Analog]
  Subdevices: 1/1
  Subdevice #0: subdevice #0
card 2: Loopback [Loopback], device 1: Loopback PCM [Loopback PCM]
card x: broken line`

	assertDevices(t, ParseDevices(config.DriverALSA, output), []Device{
		{Value: "hw:CARD=PCH,DEV=0", Label: "HDA Intel PCH: ALC3246 Analog"},
		{Value: "hw:CARD=Loopback,DEV=1", Label: "Loopback: Loopback PCM"},
	})
}

func TestParseDevices_MalformedInputNeverYieldsBlanks(t *testing.T) {
	garbage := "\r\n\"\" (audio)\n[0]\n[AVFoundation indev @ 0x0] [1]  \nSource #1\n\tName: \n\tDescription:  \ncard : [], device :\n"
	for _, driver := range config.KnownDrivers {
		for _, d := range ParseDevices(driver, garbage) {
			if d.Value == "" || d.Label == "" {
				t.Errorf("Driver %s produced blank device %+v", driver, d)
			}
		}
	}
}

func TestParseDevices_UnknownDriver(t *testing.T) {
	if devices := ParseDevices("jack", "anything"); devices != nil {
		t.Errorf("Expected nil for unknown driver, got %+v", devices)
	}
}

func TestSplitLines_CarriageReturns(t *testing.T) {
	lines := splitLines("size=  1kB time=00:00:01\rsize=  2kB time=00:00:02\r\nError opening input\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d: %q", len(lines), lines)
	}
	if lines[2] != "Error opening input" {
		t.Errorf("Expected last line, got %q", lines[2])
	}
}
