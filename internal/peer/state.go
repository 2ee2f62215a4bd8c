package peer

// State is the lifecycle of one connection attempt.
type State int

const (
	StateIdle State = iota
	StateSignaling
	StateNegotiating
	StateConnected
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSignaling:
		return "signaling"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

// canTransition lists the legal edges. Any live state may close or error.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StateSignaling:
		return from == StateIdle
	case StateNegotiating:
		return from == StateSignaling
	case StateConnected:
		return from == StateNegotiating
	case StateClosed, StateErrored:
		return true
	default:
		return false
	}
}

// Role is fixed for one connection attempt. The room creator initiates.
type Role int

const (
	RoleNone Role = iota
	RoleInitiator
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "none"
	}
}
