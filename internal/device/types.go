package device

// PayloadSize is the only manufacturer payload length the gateway forwards.
const PayloadSize = 9

// Payload is an accepted manufacturer payload.
type Payload [PayloadSize]byte

// Observation is one advertisement report as delivered by the scanner.
// It is ephemeral: nothing keeps it after classification.
type Observation struct {
	// Address is the transmitter's hardware address exactly as the driver formats it.
	Address string

	// Payload is the raw manufacturer data. Its length is not checked yet.
	Payload []byte

	// HasPayload reports whether the advertisement carried manufacturer data at all.
	HasPayload bool
}

// Classification is the outcome of ClassifyAndStore.
type Classification int

const (
	// ClassUnchanged means the stored payload already matched; nothing happens.
	ClassUnchanged Classification = iota

	// ClassNew means the address was seen for the first time.
	ClassNew

	// ClassChanged means the stored payload was overwritten with a different one.
	ClassChanged
)

// String returns the lowercase name used in logs, metrics and the journal.
func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassChanged:
		return "changed"
	case ClassUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Forward reports whether the classification should be published.
func (c Classification) Forward() bool {
	return c == ClassNew || c == ClassChanged
}
