package connectivity

import "errors"

var (
	// ErrAssociationFailed is returned by Check when the wireless link could
	// not be associated within the retry budget.
	ErrAssociationFailed = errors.New("connectivity: association failed")

	// ErrSessionFailed is returned by Check when the broker session could not
	// be established within the retry budget.
	ErrSessionFailed = errors.New("connectivity: session failed")
)
