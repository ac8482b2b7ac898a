package audio

import "errors"

var (
	// ErrNoDeviceSelected is returned by Stream when the configuration has
	// no capture device.
	ErrNoDeviceSelected = errors.New("no capture device selected")

	// ErrDeviceListingFailed wraps probe launch failures and timeouts.
	ErrDeviceListingFailed = errors.New("device listing failed")

	// ErrSubprocessLaunch wraps failures to start the capture process.
	ErrSubprocessLaunch = errors.New("capture process failed to start")
)
