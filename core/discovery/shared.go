package discovery

import (
	"errors"
	"fmt"
	"plugin"

	"github.com/sammwyy/ploogz/api"
)

// Constructor symbols a Go plugin may export. NewPlugin builds a single
// plugin; NewPlugins builds several.
const (
	ConstructorSymbol      = "NewPlugin"
	MultiConstructorSymbol = "NewPlugins"
)

type symbolTable interface {
	Lookup(name string) (plugin.Symbol, error)
}

// SharedObjectBackend loads Go plugins built with -buildmode=plugin
type SharedObjectBackend struct {
	open func(path string) (symbolTable, error)
}

// NewSharedObjectBackend creates a backend that opens .so files
func NewSharedObjectBackend() *SharedObjectBackend {
	return &SharedObjectBackend{
		open: func(path string) (symbolTable, error) {
			return plugin.Open(path)
		},
	}
}

func (b *SharedObjectBackend) Extensions() []string {
	return []string{".so"}
}

// Load opens the plugin and calls its exported constructor
func (b *SharedObjectBackend) Load(path string) ([]api.Hooks, error) {
	p, err := b.open(path)
	if err != nil {
		return nil, &api.DiscoveryError{Path: path, Err: fmt.Errorf("failed to open plugin: %w", err)}
	}

	if sym, err := p.Lookup(ConstructorSymbol); err == nil {
		newPlugin, ok := sym.(func() api.Hooks)
		if !ok {
			return nil, &api.ConstructionError{Path: path, Symbol: ConstructorSymbol, Err: fmt.Errorf("is %T, want func() api.Hooks", sym)}
		}
		hooks, err := construct(func() []api.Hooks { return []api.Hooks{newPlugin()} })
		if err != nil {
			return nil, &api.ConstructionError{Path: path, Symbol: ConstructorSymbol, Err: err}
		}
		return hooks, nil
	}

	sym, err := p.Lookup(MultiConstructorSymbol)
	if err != nil {
		return nil, &api.ConstructionError{Path: path, Err: fmt.Errorf("plugin does not export %s or %s", ConstructorSymbol, MultiConstructorSymbol)}
	}
	newPlugins, ok := sym.(func() []api.Hooks)
	if !ok {
		return nil, &api.ConstructionError{Path: path, Symbol: MultiConstructorSymbol, Err: fmt.Errorf("is %T, want func() []api.Hooks", sym)}
	}
	hooks, err := construct(newPlugins)
	if err != nil {
		return nil, &api.ConstructionError{Path: path, Symbol: MultiConstructorSymbol, Err: err}
	}
	return hooks, nil
}

// construct calls a plugin constructor, turning a panic or a nil instance
// into an error.
func construct(ctor func() []api.Hooks) (hooks []api.Hooks, err error) {
	defer func() {
		if r := recover(); r != nil {
			hooks, err = nil, fmt.Errorf("constructor panicked: %v", r)
		}
	}()

	hooks = ctor()
	for _, h := range hooks {
		if h == nil {
			return nil, errors.New("constructor returned nil")
		}
	}
	return hooks, nil
}
