package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrInvalidAddress) {
//	    // handle bad journal input
//	}
var (
	// ErrInvalidAddress is returned when a journal entry has no hardware address.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidReason is returned when a journal entry has an unknown forwarding reason.
	ErrInvalidReason = errors.New("device: invalid journal reason")
)
