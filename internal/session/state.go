package session

import "fmt"

type State int

const (
	Idle State = iota
	Recording
	Stopping
	Transcribing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	case Transcribing:
		return "transcribing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Active reports whether the state holds the controller's single slot.
func (s State) Active() bool {
	return s == Recording || s == Stopping || s == Transcribing
}
