// Package builtin holds plugins compiled into the host binary. The registry
// acts as a discoverer, so built-in plugins are owned and driven exactly like
// plugins found on the search path.
package builtin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sammwyy/ploogz/api"
)

// Factory constructs a fresh plugin instance
type Factory func() api.Hooks

// Registry manages built-in plugin factories
type Registry struct {
	factories map[string]Factory
	order     []string
	mutex     sync.RWMutex
	logger    api.Logger
	report    func(err error)
}

// Option configures a Registry
type Option func(*Registry)

// WithReporter calls fn for every factory that fails during Discover
func WithReporter(fn func(err error)) Option {
	return func(r *Registry) {
		r.report = fn
	}
}

// NewRegistry creates a new built-in plugin registry
func NewRegistry(logger api.Logger, opts ...Option) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a factory under a registration key
func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("built-in plugin %s has no factory", name)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("built-in plugin %s already exists", name)
	}

	r.factories[name] = factory
	r.order = append(r.order, name)
	r.logger.Debug("Registered built-in plugin", "name", name)
	return nil
}

// RegisterHooks registers plain hook functions as a plugin
func (r *Registry) RegisterHooks(hooks api.HookFuncs) error {
	return r.Register(hooks.PluginName, func() api.Hooks {
		h := hooks
		return &h
	})
}

// Names returns the registration keys in registration order
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered factories
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.order)
}

// Discover constructs one instance per factory in registration order. The
// search paths are ignored. A factory that panics or returns nil is reported
// and skipped.
func (r *Registry) Discover(paths []string) ([]api.Hooks, error) {
	r.mutex.RLock()
	names := append([]string(nil), r.order...)
	factories := make(map[string]Factory, len(r.factories))
	for k, v := range r.factories {
		factories[k] = v
	}
	r.mutex.RUnlock()

	var (
		plugins []api.Hooks
		errs    []error
	)
	for _, name := range names {
		hooks, err := construct(factories[name])
		if err != nil {
			err = &api.ConstructionError{Path: "builtin", Symbol: name, Err: err}
			r.logger.Error("Failed to construct built-in plugin", "name", name, "error", err)
			errs = append(errs, err)
			if r.report != nil {
				r.report(err)
			}
			continue
		}
		plugins = append(plugins, hooks)
	}

	return plugins, errors.Join(errs...)
}

func construct(factory Factory) (hooks api.Hooks, err error) {
	defer func() {
		if r := recover(); r != nil {
			hooks, err = nil, fmt.Errorf("factory panicked: %v", r)
		}
	}()

	hooks = factory()
	if hooks == nil {
		return nil, errors.New("factory returned nil")
	}
	return hooks, nil
}
