package config

import "runtime"

// Capture drivers understood by the device directory and the default
// argument builder.
const (
	DriverDShow        = "dshow"
	DriverAVFoundation = "avfoundation"
	DriverPulse        = "pulse"
	DriverALSA         = "alsa"
)

var KnownDrivers = []string{DriverDShow, DriverAVFoundation, DriverPulse, DriverALSA}

// Platform describes how the capture tool addresses audio input on one OS.
type Platform struct {
	Driver        string // value of the leading -f token
	DefaultSource string // -i value used until a device has been selected
}

// currentOS is swapped in tests.
var currentOS = func() string { return runtime.GOOS }

// PlatformFor returns the default platform for a GOOS value.
func PlatformFor(goos string) Platform {
	switch goos {
	case "windows":
		return PlatformForDriver(DriverDShow)
	case "darwin":
		return PlatformForDriver(DriverAVFoundation)
	default:
		return PlatformForDriver(DriverPulse)
	}
}

// PlatformForDriver returns the platform for an explicit driver name.
// Unknown drivers fall back to PulseAudio.
func PlatformForDriver(driver string) Platform {
	switch driver {
	case DriverDShow:
		return Platform{Driver: DriverDShow, DefaultSource: "audio=Stereo Mix (Realtek(R) Audio)"}
	case DriverAVFoundation:
		return Platform{Driver: DriverAVFoundation, DefaultSource: ":default"}
	case DriverALSA:
		return Platform{Driver: DriverALSA, DefaultSource: "default"}
	default:
		return Platform{Driver: DriverPulse, DefaultSource: "default"}
	}
}

// IsKnownDriver reports whether driver is one of KnownDrivers.
func IsKnownDriver(driver string) bool {
	for _, d := range KnownDrivers {
		if d == driver {
			return true
		}
	}
	return false
}
