package pro

import "fmt"

// State is a pro session manager lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLaunching
	StateWaitingForReady
	StateRunning
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateWaitingForReady:
		return "waiting-for-ready"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
