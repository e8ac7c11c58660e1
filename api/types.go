package api

import (
	"time"
)

// Event types published by the host
const (
	EventPluginSetup      = "plugin.setup"
	EventPluginActivate   = "plugin.activate"
	EventPluginTeardown   = "plugin.teardown"
	EventHostLoad         = "host.load"
	EventHostTeardown     = "host.teardown"
	EventDiscoveryChanged = "discovery.changed"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventFilter defines criteria for filtering events
type EventFilter struct {
	Sources []string          `json:"sources,omitempty"`
	Types   []string          `json:"types,omitempty"`
	Regex   map[string]string `json:"regex,omitempty"`
}

// EventHandler is a function that processes events
type EventHandler func(event Event) error

// Transition records one attempt to move a state machine along an edge.
// Err is nil when the transition happened.
type Transition struct {
	Machine string // "plugin" or "host"
	Name    string
	Event   string
	From    string
	To      string
	Err     error
}

// Type returns the event type matching the transition, e.g. "plugin.setup".
func (t Transition) Type() string {
	return t.Machine + "." + t.Event
}

// Observer is notified of every lifecycle transition attempt
type Observer interface {
	Observe(t Transition)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(t Transition)

func (f ObserverFunc) Observe(t Transition) { f(t) }

// Observers fans a transition out to several observers in order
type Observers []Observer

func (o Observers) Observe(t Transition) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(t)
		}
	}
}
