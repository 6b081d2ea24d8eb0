package scanner

import "errors"

var (
	// ErrScanInProgress is returned by Start while a scan window is still open.
	ErrScanInProgress = errors.New("scanner: scan already in progress")

	// ErrDeviceUnavailable is returned by Open when the HCI device cannot be opened.
	ErrDeviceUnavailable = errors.New("scanner: bluetooth device unavailable")

	// ErrInvalidDuration is returned by Start for a non-positive scan window.
	ErrInvalidDuration = errors.New("scanner: scan duration must be positive")
)
