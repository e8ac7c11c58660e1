package lifecycle

// State represents the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateUninitialized - Plugin was constructed but not set up.
	StateUninitialized State = iota

	// StateSetUp - Setup hook ran; the plugin is ready to be activated.
	StateSetUp

	// StateActive - Plugin is doing its work.
	StateActive

	// StateTornDown - Teardown hook ran. Terminal.
	StateTornDown
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSetUp:
		return "set_up"
	case StateActive:
		return "active"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Event is an input to the lifecycle state machine.
type Event int

// Lifecycle events.
const (
	EventSetup Event = iota
	EventActivate
	EventTeardown
)

func (e Event) String() string {
	switch e {
	case EventSetup:
		return "setup"
	case EventActivate:
		return "activate"
	case EventTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// transitions is the complete set of legal edges.
var transitions = map[State]map[Event]State{
	StateUninitialized: {EventSetup: StateSetUp},
	StateSetUp:         {EventActivate: StateActive},
	StateActive:        {EventTeardown: StateTornDown},
}

// Next returns the state reached from s on e, and false if the edge does not
// exist.
func Next(s State, e Event) (State, bool) {
	to, ok := transitions[s][e]
	return to, ok
}
