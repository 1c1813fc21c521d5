package stream

import "fmt"

// State is the lifecycle stage of a Session. The only legal order is
// StateOpen -> StateStreaming -> StateClosed; StateClosed is terminal.
type State int

const (
	StateOpen State = iota
	StateStreaming
	StateClosed
)

var stateNames = map[State]string{
	StateOpen:      "open",
	StateStreaming: "streaming",
	StateClosed:    "closed",
}

var stateFromName = map[string]State{
	"open":      StateOpen,
	"streaming": StateStreaming,
	"closed":    StateClosed,
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(data []byte) error {
	v, ok := stateFromName[string(data)]
	if !ok {
		return fmt.Errorf("unknown stream state %q", data)
	}
	*s = v
	return nil
}
