package session

import "fmt"

type State int

const (
	Idle State = iota
	Spawning
	AwaitingSelection
	Capturing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Spawning:
		return "Spawning"
	case AwaitingSelection:
		return "AwaitingSelection"
	case Capturing:
		return "Capturing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// isAllowedTransition encodes the capture session lifecycle. Idle ->
// Capturing is a direct capture with no overlays involved.
func isAllowedTransition(from, to State) bool {
	switch from {
	case Idle:
		return to == Spawning || to == Capturing
	case Spawning:
		return to == AwaitingSelection || to == Idle
	case AwaitingSelection:
		return to == Capturing || to == Idle
	case Capturing:
		return to == Idle
	default:
		return false
	}
}
