// Package host owns a collection of plugins discovered on a search path.
//
//	not_loaded --Load--> loaded --Teardown--> torn_down
//
// Load runs discovery exactly once. Teardown tears down every owned plugin,
// best effort, and releases the collection; calling it again is a no-op. A
// Host is not safe for concurrent use; callers serialize Load, Teardown and
// Plugins.
package host

import (
	"errors"
	"iter"
	"reflect"

	"github.com/sammwyy/ploogz/api"
	"github.com/sammwyy/ploogz/core/lifecycle"
)

// Discoverer finds plugin implementations on a search path. The returned
// error reports soft failures only: plugins that could be constructed are
// returned alongside it.
type Discoverer interface {
	Discover(paths []string) ([]api.Hooks, error)
}

// DiscovererFunc adapts a function to Discoverer.
type DiscovererFunc func(paths []string) ([]api.Hooks, error)

func (f DiscovererFunc) Discover(paths []string) ([]api.Hooks, error) {
	return f(paths)
}

// Host manages plugin discovery and bulk teardown.
type Host struct {
	searchPaths []string
	discoverer  Discoverer
	logger      api.Logger
	observer    api.Observer
	filter      func(name string) bool
	report      func(err error)

	state   State
	plugins []*lifecycle.Plugin
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger.
func WithLogger(logger api.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithObserver reports host transitions and the transitions of every owned
// plugin to o.
func WithObserver(o api.Observer) Option {
	return func(h *Host) {
		h.observer = o
	}
}

// WithFilter drops discovered plugins whose name is rejected by keep.
func WithFilter(keep func(name string) bool) Option {
	return func(h *Host) {
		h.filter = keep
	}
}

// WithReporter calls fn for every discovered instance the host cannot wrap.
func WithReporter(fn func(err error)) Option {
	return func(h *Host) {
		h.report = fn
	}
}

// New creates a host that will search the given directories, in order.
func New(searchPaths []string, discoverer Discoverer, opts ...Option) *Host {
	h := &Host{
		searchPaths: append([]string(nil), searchPaths...),
		discoverer:  discoverer,
		logger:      api.NewLogger("host"),
		state:       StateNotLoaded,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SearchPaths returns a copy of the configured search path.
func (h *Host) SearchPaths() []string {
	return append([]string(nil), h.searchPaths...)
}

// State returns the current host state.
func (h *Host) State() State {
	return h.state
}

// Load discovers plugins and takes ownership of them. Legal only once.
func (h *Host) Load() error {
	if err := h.check(EventLoad); err != nil {
		return err
	}

	discovered, err := h.discoverer.Discover(h.SearchPaths())
	if err != nil {
		h.logger.Warn("Some plugins could not be loaded", "error", err)
	}

	plugins := make([]*lifecycle.Plugin, 0, len(discovered))
	seen := make(map[api.Hooks]struct{}, len(discovered))
	for _, hooks := range discovered {
		if hooks == nil {
			continue
		}
		if reflect.TypeOf(hooks).Comparable() {
			if _, dup := seen[hooks]; dup {
				continue
			}
			seen[hooks] = struct{}{}
		}

		p, err := lifecycle.Wrap(hooks, lifecycle.WithObserver(h.observer))
		if err != nil {
			h.logger.Error("Failed to load plugin", "error", err)
			if h.report != nil {
				h.report(err)
			}
			continue
		}
		if h.filter != nil && !h.filter(p.Name()) {
			h.logger.Info("Plugin disabled, skipping", "name", p.Name())
			h.release(p)
			continue
		}
		plugins = append(plugins, p)
		h.logger.Debug("Loaded plugin", "name", p.Name())
	}

	h.plugins = plugins
	h.state = StateLoaded
	h.notify(EventLoad, StateNotLoaded, StateLoaded, nil)

	h.logger.Info("Loaded plugins", "count", len(plugins), "paths", h.searchPaths)
	return nil
}

// Teardown tears down every owned plugin in load order, releases each one
// whatever state it reached, and clears the collection. A failing plugin does
// not stop the others; all failures are returned joined. Calling Teardown
// again is a no-op.
func (h *Host) Teardown() error {
	if h.state == StateTornDown {
		return nil
	}
	if err := h.check(EventTeardown); err != nil {
		return err
	}

	var errs []error
	for _, p := range h.plugins {
		if err := p.Teardown(); err != nil {
			if errors.Is(err, api.ErrIllegalTransition) {
				h.logger.Debug("Plugin was never activated", "name", p.Name(), "state", p.State().String())
			} else {
				h.logger.Error("Failed to tear down plugin", "name", p.Name(), "error", err)
			}
			errs = append(errs, err)
		} else {
			h.logger.Debug("Tore down plugin", "name", p.Name())
		}
		if err := h.release(p); err != nil {
			errs = append(errs, err)
		}
	}

	count := len(h.plugins)
	h.plugins = nil
	h.state = StateTornDown

	err := errors.Join(errs...)
	h.notify(EventTeardown, StateLoaded, StateTornDown, err)

	h.logger.Info("Tore down plugins", "count", count, "failed", len(errs))
	return err
}

// Plugins returns a sequence over the owned plugins in load order. It is
// empty before Load and after Teardown, and can be ranged over repeatedly.
func (h *Host) Plugins() iter.Seq[*lifecycle.Plugin] {
	return func(yield func(*lifecycle.Plugin) bool) {
		for _, p := range h.plugins {
			if !yield(p) {
				return
			}
		}
	}
}

// Lookup returns the first owned plugin with the given name.
func (h *Host) Lookup(name string) (*lifecycle.Plugin, bool) {
	for _, p := range h.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Len returns the number of owned plugins.
func (h *Host) Len() int {
	return len(h.plugins)
}

// release frees p's loader resources, logging a failure
func (h *Host) release(p *lifecycle.Plugin) error {
	err := p.Release()
	if err != nil {
		h.logger.Error("Failed to release plugin", "name", p.Name(), "error", err)
	}
	return err
}

func (h *Host) check(ev Event) error {
	if _, ok := Next(h.state, ev); ok {
		return nil
	}
	err := &api.TransitionError{
		Machine: "host",
		From:    h.state.String(),
		Event:   ev.String(),
	}
	h.notify(ev, h.state, h.state, err)
	return err
}

func (h *Host) notify(ev Event, from, to State, err error) {
	if h.observer == nil {
		return
	}
	h.observer.Observe(api.Transition{
		Machine: "host",
		Event:   ev.String(),
		From:    from.String(),
		To:      to.String(),
		Err:     err,
	})
}
