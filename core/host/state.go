package host

// State represents the state of a plugin host.
type State int

// Host states.
const (
	// StateNotLoaded - Discovery has not run yet.
	StateNotLoaded State = iota

	// StateLoaded - Plugins were discovered and are owned by the host.
	StateLoaded

	// StateTornDown - Every plugin was torn down and released. Terminal.
	StateTornDown
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not_loaded"
	case StateLoaded:
		return "loaded"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Event is an input to the host state machine.
type Event int

// Host events.
const (
	EventLoad Event = iota
	EventTeardown
)

func (e Event) String() string {
	switch e {
	case EventLoad:
		return "load"
	case EventTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

var transitions = map[State]map[Event]State{
	StateNotLoaded: {EventLoad: StateLoaded},
	StateLoaded:    {EventTeardown: StateTornDown},
}

// Next returns the state reached from s on e, and false if the edge does not
// exist.
func Next(s State, e Event) (State, bool) {
	to, ok := transitions[s][e]
	return to, ok
}
