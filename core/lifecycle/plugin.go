// Package lifecycle enforces the setup, activate, teardown call order of a
// single plugin.
//
//	uninitialized --Setup--> set_up --Activate--> active --Teardown--> torn_down
//
// Any other call order is rejected with api.ErrIllegalTransition before the
// plugin's hook runs. Teardown of a plugin that is already torn down is a
// no-op. A Plugin is not safe for concurrent use; callers serialize access.
package lifecycle

import (
	"fmt"

	"github.com/sammwyy/ploogz/api"
)

// Plugin drives a plugin's hooks through the lifecycle state machine.
type Plugin struct {
	hooks    api.Hooks
	name     string
	state    State
	options  api.Options
	observer api.Observer
	released bool
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithObserver reports every transition attempt to o.
func WithObserver(o api.Observer) Option {
	return func(p *Plugin) {
		p.observer = o
	}
}

// New wraps hooks in a Plugin in the uninitialized state. The name is read
// once here and never changes afterwards.
func New(hooks api.Hooks, opts ...Option) *Plugin {
	return newPlugin(hooks, hooks.Name(), opts)
}

// Wrap is New for untrusted implementations: a Name method that panics is
// reported as a construction failure instead of crashing the caller, and the
// implementation is released.
func Wrap(hooks api.Hooks, opts ...Option) (*Plugin, error) {
	var name string
	err := callHook(func() error {
		name = hooks.Name()
		return nil
	})
	if err != nil {
		if r, ok := hooks.(api.Releaser); ok {
			_ = callHook(r.Release)
		}
		return nil, &api.ConstructionError{Path: fmt.Sprintf("%T", hooks), Symbol: "Name", Err: err}
	}
	return newPlugin(hooks, name, opts), nil
}

func newPlugin(hooks api.Hooks, name string, opts []Option) *Plugin {
	p := &Plugin{
		hooks: hooks,
		name:  name,
		state: StateUninitialized,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return p.name
}

// State returns the current lifecycle state.
func (p *Plugin) State() State {
	return p.state
}

// Hooks returns the wrapped implementation.
func (p *Plugin) Hooks() api.Hooks {
	return p.hooks
}

// Options returns the options the plugin was set up with.
func (p *Plugin) Options() api.Options {
	return p.options.Clone()
}

// Setup runs the setup hook with opts. Legal only from uninitialized.
func (p *Plugin) Setup(opts api.Options) error {
	err := p.fire(EventSetup, func() error {
		return p.hooks.OnSetup(opts)
	})
	if err == nil {
		p.options = opts.Clone()
	}
	return err
}

// Activate runs the activation hook. Legal only from set_up.
func (p *Plugin) Activate() error {
	return p.fire(EventActivate, p.hooks.OnActivate)
}

// Teardown runs the teardown hook. Legal from active; a no-op once torn down.
// The plugin is torn down even when the hook fails, so the hook never runs
// twice.
func (p *Plugin) Teardown() error {
	if p.state == StateTornDown {
		return nil
	}
	return p.fire(EventTeardown, p.hooks.OnTeardown)
}

// Release frees resources the loader attached to the implementation, whatever
// state the plugin reached. Only the first call reaches the implementation.
func (p *Plugin) Release() error {
	if p.released {
		return nil
	}
	p.released = true

	r, ok := p.hooks.(api.Releaser)
	if !ok {
		return nil
	}
	if err := callHook(r.Release); err != nil {
		return &api.HookError{Plugin: p.name, Event: "release", Err: err}
	}
	return nil
}

func (p *Plugin) fire(ev Event, hook func() error) error {
	from := p.state
	to, ok := Next(from, ev)
	if !ok {
		err := &api.TransitionError{
			Machine: "plugin",
			Name:    p.name,
			From:    from.String(),
			Event:   ev.String(),
		}
		p.notify(ev, from, from, err)
		return err
	}

	if err := callHook(hook); err != nil {
		if ev == EventTeardown {
			p.state = to
		}
		herr := &api.HookError{Plugin: p.name, Event: ev.String(), Err: err}
		p.notify(ev, from, p.state, herr)
		return herr
	}

	p.state = to
	p.notify(ev, from, to, nil)
	return nil
}

func (p *Plugin) notify(ev Event, from, to State, err error) {
	if p.observer == nil {
		return
	}
	p.observer.Observe(api.Transition{
		Machine: "plugin",
		Name:    p.name,
		Event:   ev.String(),
		From:    from.String(),
		To:      to.String(),
		Err:     err,
	})
}

// callHook runs third-party code; a panic is reported as an error.
func callHook(hook func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook()
}
