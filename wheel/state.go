package wheel

import "fmt"

// State is the gesture lifecycle phase of an Engine.
type State int

const (
	// Idle means no gesture is in progress.
	Idle State = iota
	// Opening means the pointer is down but has not yet travelled far enough
	// from the center to open the wheel.
	Opening
	// Scrubbing means the wheel is open and angular motion is being reported.
	Scrubbing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opening:
		return "opening"
	case Scrubbing:
		return "scrubbing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name so it reads well in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	switch s {
	case Idle, Opening, Scrubbing:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid state %d", int(s))
	}
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "opening":
		*s = Opening
	case "scrubbing":
		*s = Scrubbing
	default:
		return fmt.Errorf("unknown state: %q", string(b))
	}
	return nil
}
