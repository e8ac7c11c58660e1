package builtin

import (
	"errors"
	"testing"

	"github.com/sammwyy/ploogz/api"
)

func TestRegisterAndDiscover(t *testing.T) {
	r := NewRegistry(api.NopLogger())

	if err := r.RegisterHooks(api.HookFuncs{PluginName: "first"}); err != nil {
		t.Fatalf("RegisterHooks: %v", err)
	}
	if err := r.Register("second", func() api.Hooks { return &api.HookFuncs{PluginName: "Second"} }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if got := r.Names(); len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("Names = %v", got)
	}

	plugins, err := r.Discover([]string{"ignored"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(plugins) != 2 || plugins[0].Name() != "first" || plugins[1].Name() != "Second" {
		t.Fatalf("Discover returned %v", plugins)
	}

	// Every discovery constructs fresh instances.
	again, _ := r.Discover(nil)
	if again[0] == plugins[0] {
		t.Error("Discover reused an instance")
	}
}

func TestRegisterRejectsDuplicatesAndNil(t *testing.T) {
	r := NewRegistry(api.NopLogger())
	factory := func() api.Hooks { return &api.HookFuncs{PluginName: "a"} }

	if err := r.Register("a", factory); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("a", factory); err == nil {
		t.Error("expected error for duplicate name")
	}
	if err := r.Register("b", nil); err == nil {
		t.Error("expected error for nil factory")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestDiscoverSkipsBrokenFactories(t *testing.T) {
	r := NewRegistry(api.NopLogger())
	r.Register("nil", func() api.Hooks { return nil })
	r.Register("panics", func() api.Hooks { panic("boom") })
	r.Register("ok", func() api.Hooks { return &api.HookFuncs{PluginName: "ok"} })

	plugins, err := r.Discover(nil)
	if len(plugins) != 1 || plugins[0].Name() != "ok" {
		t.Errorf("Discover returned %v", plugins)
	}
	if !errors.Is(err, api.ErrConstruction) {
		t.Errorf("err = %v, want ErrConstruction", err)
	}

	var cerr *api.ConstructionError
	if !errors.As(err, &cerr) || cerr.Symbol != "nil" {
		t.Errorf("first construction error = %v", cerr)
	}
}

func TestDiscoverReportsBrokenFactories(t *testing.T) {
	var reported []error
	r := NewRegistry(api.NopLogger(), WithReporter(func(err error) { reported = append(reported, err) }))
	r.Register("nil", func() api.Hooks { return nil })
	r.Register("ok", func() api.Hooks { return &api.HookFuncs{PluginName: "ok"} })
	r.Register("panics", func() api.Hooks { panic("boom") })

	if _, err := r.Discover(nil); err == nil {
		t.Fatal("expected a construction error")
	}
	if len(reported) != 2 {
		t.Fatalf("reported %d errors, want 2", len(reported))
	}
	for i, symbol := range []string{"nil", "panics"} {
		var cerr *api.ConstructionError
		if !errors.As(reported[i], &cerr) || cerr.Symbol != symbol {
			t.Errorf("reported[%d] = %v, want construction error for %s", i, reported[i], symbol)
		}
	}
}
