package sync

// State is the lifecycle state of the notification stream.
type State int

const (
	StateDisabled State = iota
	StateConnecting
	StateLive
	StateReconnecting
)

// States lists every state in lifecycle order.
var States = []State{StateDisabled, StateConnecting, StateLive, StateReconnecting}

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateDisabled:     {StateConnecting},
	StateConnecting:   {StateLive, StateReconnecting, StateDisabled},
	StateLive:         {StateReconnecting, StateDisabled},
	StateReconnecting: {StateConnecting, StateDisabled},
}

// CanTransition reports whether moving from s to next is allowed.
// Staying in the same state is always allowed.
func (s State) CanTransition(next State) bool {
	if s == next {
		return true
	}
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}
