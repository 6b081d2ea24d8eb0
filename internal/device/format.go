package device

import (
	"encoding/hex"
	"strings"
)

// Format builds the outbound wire message: the address as given by the
// driver followed by the payload as uppercase hex, two digits per byte,
// no separators.
//
// Example: Format("AA:BB:CC:DD:EE:FF", Payload{1, 2, 3, 4, 5, 6, 7, 8, 9})
// returns "AA:BB:CC:DD:EE:FF010203040506070809".
func Format(address string, p Payload) string {
	var b strings.Builder
	b.Grow(len(address) + PayloadSize*2)
	b.WriteString(address)
	b.WriteString(p.Hex())
	return b.String()
}

// Hex returns the payload as 18 uppercase hex characters.
func (p Payload) Hex() string {
	return strings.ToUpper(hex.EncodeToString(p[:]))
}

// String renders the payload space-separated ("01 02 ..."), for diagnostics.
func (p Payload) String() string {
	parts := make([]string, PayloadSize)
	for i, b := range p {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{b}))
	}
	return strings.Join(parts, " ")
}
