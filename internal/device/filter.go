package device

// Filter decides whether an observation is in scope.
//
// An observation is in scope only when it declares manufacturer data and
// that data is exactly PayloadSize bytes long. The returned Payload is a
// copy, so later reuse of the driver's buffer cannot alter it.
func Filter(obs Observation) (Payload, bool) {
	var p Payload
	if !obs.HasPayload || len(obs.Payload) != PayloadSize {
		return p, false
	}
	copy(p[:], obs.Payload)
	return p, true
}
