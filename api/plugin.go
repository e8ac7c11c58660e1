package api

// Options carries user-defined setup options for a plugin
type Options map[string]interface{}

// Clone returns a shallow copy of the options
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Hooks is the interface that all plugins must implement.
//
// The host never calls these methods directly; it drives them through a
// lifecycle state machine that guarantees OnSetup, OnActivate and OnTeardown
// run at most once each and in that order.
type Hooks interface {
	// Name returns a human-readable plugin name
	Name() string

	// OnSetup prepares the plugin so that it is ready to be activated
	OnSetup(opts Options) error

	// OnActivate is called when the plugin should start doing its work
	OnActivate() error

	// OnTeardown releases everything acquired by OnSetup and OnActivate
	OnTeardown() error
}

// Releaser is implemented by plugins that hold resources owned by their
// loader, such as a script interpreter. The host calls Release exactly once
// when it drops the plugin, whatever lifecycle state the plugin reached.
type Releaser interface {
	Release() error
}

// HookFuncs registers lifecycle hooks as plain functions. Nil hooks are
// treated as no-ops.
type HookFuncs struct {
	PluginName string
	Setup      func(opts Options) error
	Activate   func() error
	Teardown   func() error
}

var _ Hooks = (*HookFuncs)(nil)

func (h *HookFuncs) Name() string {
	return h.PluginName
}

func (h *HookFuncs) OnSetup(opts Options) error {
	if h.Setup == nil {
		return nil
	}
	return h.Setup(opts)
}

func (h *HookFuncs) OnActivate() error {
	if h.Activate == nil {
		return nil
	}
	return h.Activate()
}

func (h *HookFuncs) OnTeardown() error {
	if h.Teardown == nil {
		return nil
	}
	return h.Teardown()
}
