package coordinator

// State is the lifecycle phase of a Coordinator.
type State int32

const (
	Idle State = iota
	SessionOpen
	Listening
	Draining
	Closed
)

var stateNames = map[State]string{
	Idle:        "idle",
	SessionOpen: "session_open",
	Listening:   "listening",
	Draining:    "draining",
	Closed:      "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
