package wifi

import "errors"

var (
	// ErrInterfaceNotFound is returned when the configured interface does not exist.
	ErrInterfaceNotFound = errors.New("wifi: interface not found")

	// ErrNotAssociated is returned by Associate when the link did not come up in time.
	ErrNotAssociated = errors.New("wifi: not associated")

	// ErrInvalidCredentials is returned for an SSID or passphrase that cannot be
	// written to a supplicant configuration.
	ErrInvalidCredentials = errors.New("wifi: invalid ssid or passphrase")
)
