package connectivity

// State is the combined condition of the wireless link and broker session.
type State int

const (
	// AssocDown means the wireless link is not associated.
	AssocDown State = iota

	// AssocUpSessionDown means the link is up but no broker session exists.
	AssocUpSessionDown

	// AssocUpSessionUp means both links are up and messages may be sent.
	AssocUpSessionUp
)

// String returns the state name used in logs, metrics and the status API.
func (s State) String() string {
	switch s {
	case AssocDown:
		return "assoc_down"
	case AssocUpSessionDown:
		return "assoc_up_session_down"
	case AssocUpSessionUp:
		return "assoc_up_session_up"
	default:
		return "unknown"
	}
}

// CanPublish reports whether outbound messages are allowed in this state.
func (s State) CanPublish() bool {
	return s == AssocUpSessionUp
}
