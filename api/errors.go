package api

import (
	"errors"
	"fmt"
)

// Plugin host errors.
var (
	// ErrIllegalTransition is returned when a lifecycle operation is invoked
	// from a state that does not permit it.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrDiscovery is returned when a candidate module cannot be loaded or
	// introspected.
	ErrDiscovery = errors.New("plugin discovery failed")

	// ErrConstruction is returned when a discovered plugin cannot be
	// instantiated.
	ErrConstruction = errors.New("plugin construction failed")

	// ErrHook is returned when a plugin's own setup, activate or teardown hook
	// fails.
	ErrHook = errors.New("plugin hook failed")
)

// TransitionError describes a rejected state machine transition.
type TransitionError struct {
	Machine string // "plugin" or "host"
	Name    string
	From    string
	Event   string
}

func (e *TransitionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: cannot %s from state %s: %v", e.Machine, e.Event, e.From, ErrIllegalTransition)
	}
	return fmt.Sprintf("%s %q: cannot %s from state %s: %v", e.Machine, e.Name, e.Event, e.From, ErrIllegalTransition)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// DiscoveryError reports a candidate file that could not be loaded.
type DiscoveryError struct {
	Path string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("failed to load plugin module %s: %v", e.Path, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

func (e *DiscoveryError) Is(target error) bool {
	return target == ErrDiscovery
}

// ConstructionError reports a plugin implementation that could not be
// instantiated.
type ConstructionError struct {
	Path   string
	Symbol string
	Err    error
}

func (e *ConstructionError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("failed to construct plugin from %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to construct plugin %s from %s: %v", e.Symbol, e.Path, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

func (e *ConstructionError) Is(target error) bool {
	return target == ErrConstruction
}

// HookError wraps a failure raised by a plugin hook.
type HookError struct {
	Plugin string
	Event  string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("plugin %q %s hook: %v", e.Plugin, e.Event, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

func (e *HookError) Is(target error) bool {
	return target == ErrHook
}
