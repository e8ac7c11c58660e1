package lifecycle

import (
	"errors"
	"reflect"
	"testing"

	"github.com/sammwyy/ploogz/api"
)

type recordingHooks struct {
	name  string
	calls []string
	opts  api.Options

	setupErr    error
	activateErr error
	teardownErr error
}

func (r *recordingHooks) Name() string { return r.name }

func (r *recordingHooks) OnSetup(opts api.Options) error {
	r.calls = append(r.calls, "setup")
	r.opts = opts
	return r.setupErr
}

func (r *recordingHooks) OnActivate() error {
	r.calls = append(r.calls, "activate")
	return r.activateErr
}

func (r *recordingHooks) OnTeardown() error {
	r.calls = append(r.calls, "teardown")
	return r.teardownErr
}

func TestNewPlugin(t *testing.T) {
	p := New(&recordingHooks{name: "Test Ploog"})

	if p.Name() != "Test Ploog" {
		t.Errorf("Name() = %q, want %q", p.Name(), "Test Ploog")
	}
	if p.State() != StateUninitialized {
		t.Errorf("State() = %v, want %v", p.State(), StateUninitialized)
	}
}

func TestPluginFullLifecycle(t *testing.T) {
	hooks := &recordingHooks{name: "test"}
	p := New(hooks)

	opts := api.Options{"greeting": "hello"}
	if err := p.Setup(opts); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if p.State() != StateSetUp {
		t.Errorf("State() after Setup = %v, want %v", p.State(), StateSetUp)
	}
	if hooks.opts["greeting"] != "hello" {
		t.Errorf("setup hook opts = %v, want greeting=hello", hooks.opts)
	}

	if err := p.Activate(); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if p.State() != StateActive {
		t.Errorf("State() after Activate = %v, want %v", p.State(), StateActive)
	}

	if err := p.Teardown(); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if p.State() != StateTornDown {
		t.Errorf("State() after Teardown = %v, want %v", p.State(), StateTornDown)
	}

	want := []string{"setup", "activate", "teardown"}
	if !reflect.DeepEqual(hooks.calls, want) {
		t.Errorf("calls = %v, want %v", hooks.calls, want)
	}
}

func TestPluginSetupOnlyCallsSetupHook(t *testing.T) {
	hooks := &recordingHooks{name: "test"}
	p := New(hooks)

	if err := p.Setup(nil); err != nil {
		t.Fatalf("Setup(nil) error = %v", err)
	}
	if !reflect.DeepEqual(hooks.calls, []string{"setup"}) {
		t.Errorf("calls = %v, want [setup]", hooks.calls)
	}
}

func TestPluginActivateBeforeSetup(t *testing.T) {
	hooks := &recordingHooks{name: "test"}
	p := New(hooks)

	err := p.Activate()
	if !errors.Is(err, api.ErrIllegalTransition) {
		t.Fatalf("Activate() error = %v, want ErrIllegalTransition", err)
	}
	if p.State() != StateUninitialized {
		t.Errorf("State() = %v, want %v", p.State(), StateUninitialized)
	}
	if len(hooks.calls) != 0 {
		t.Errorf("calls = %v, want none", hooks.calls)
	}

	var terr *api.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("error %T is not *api.TransitionError", err)
	}
	if terr.From != "uninitialized" || terr.Event != "activate" {
		t.Errorf("TransitionError = %+v", terr)
	}
}

func TestPluginSetupTwice(t *testing.T) {
	hooks := &recordingHooks{name: "test"}
	p := New(hooks)

	if err := p.Setup(nil); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := p.Setup(nil); !errors.Is(err, api.ErrIllegalTransition) {
		t.Fatalf("second Setup() error = %v, want ErrIllegalTransition", err)
	}
	if !reflect.DeepEqual(hooks.calls, []string{"setup"}) {
		t.Errorf("calls = %v, want setup hook exactly once", hooks.calls)
	}
	if p.State() != StateSetUp {
		t.Errorf("State() = %v, want %v", p.State(), StateSetUp)
	}
}

func TestPluginIllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		drive func(p *Plugin)
		call  func(p *Plugin) error
	}{
		{"teardown from uninitialized", func(p *Plugin) {}, (*Plugin).Teardown},
		{"teardown from set_up", func(p *Plugin) { _ = p.Setup(nil) }, (*Plugin).Teardown},
		{"activate twice", func(p *Plugin) { _ = p.Setup(nil); _ = p.Activate() }, (*Plugin).Activate},
		{"setup from active", func(p *Plugin) { _ = p.Setup(nil); _ = p.Activate() }, func(p *Plugin) error { return p.Setup(nil) }},
		{"setup after teardown", func(p *Plugin) { _ = p.Setup(nil); _ = p.Activate(); _ = p.Teardown() }, func(p *Plugin) error { return p.Setup(nil) }},
		{"activate after teardown", func(p *Plugin) { _ = p.Setup(nil); _ = p.Activate(); _ = p.Teardown() }, (*Plugin).Activate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hooks := &recordingHooks{name: "test"}
			p := New(hooks)
			tt.drive(p)

			before := p.State()
			calls := len(hooks.calls)

			if err := tt.call(p); !errors.Is(err, api.ErrIllegalTransition) {
				t.Fatalf("error = %v, want ErrIllegalTransition", err)
			}
			if p.State() != before {
				t.Errorf("State() = %v, want unchanged %v", p.State(), before)
			}
			if len(hooks.calls) != calls {
				t.Errorf("hook invoked on illegal transition: %v", hooks.calls)
			}
		})
	}
}

func TestPluginTeardownIdempotent(t *testing.T) {
	hooks := &recordingHooks{name: "test"}
	p := New(hooks)
	_ = p.Setup(nil)
	_ = p.Activate()

	if err := p.Teardown(); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if err := p.Teardown(); err != nil {
		t.Fatalf("second Teardown() error = %v, want nil", err)
	}

	count := 0
	for _, c := range hooks.calls {
		if c == "teardown" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("teardown hook called %d times, want 1", count)
	}
}

func TestPluginHookFailure(t *testing.T) {
	boom := errors.New("boom")

	t.Run("setup failure keeps state", func(t *testing.T) {
		p := New(&recordingHooks{name: "test", setupErr: boom})
		err := p.Setup(nil)
		if !errors.Is(err, api.ErrHook) || !errors.Is(err, boom) {
			t.Fatalf("Setup() error = %v, want hook error wrapping boom", err)
		}
		if p.State() != StateUninitialized {
			t.Errorf("State() = %v, want %v", p.State(), StateUninitialized)
		}
	})

	t.Run("activate failure keeps state", func(t *testing.T) {
		p := New(&recordingHooks{name: "test", activateErr: boom})
		_ = p.Setup(nil)
		if err := p.Activate(); !errors.Is(err, boom) {
			t.Fatalf("Activate() error = %v, want boom", err)
		}
		if p.State() != StateSetUp {
			t.Errorf("State() = %v, want %v", p.State(), StateSetUp)
		}
	})

	t.Run("teardown failure is terminal", func(t *testing.T) {
		hooks := &recordingHooks{name: "test", teardownErr: boom}
		p := New(hooks)
		_ = p.Setup(nil)
		_ = p.Activate()
		if err := p.Teardown(); !errors.Is(err, boom) {
			t.Fatalf("Teardown() error = %v, want boom", err)
		}
		if p.State() != StateTornDown {
			t.Errorf("State() = %v, want %v", p.State(), StateTornDown)
		}
		if err := p.Teardown(); err != nil {
			t.Errorf("second Teardown() error = %v, want nil", err)
		}
		if len(hooks.calls) != 3 {
			t.Errorf("calls = %v, want teardown hook once", hooks.calls)
		}
	})
}

func TestPluginHookPanic(t *testing.T) {
	p := New(&api.HookFuncs{
		PluginName: "panicky",
		Setup: func(api.Options) error {
			panic("bad plugin")
		},
	})

	err := p.Setup(nil)
	if !errors.Is(err, api.ErrHook) {
		t.Fatalf("Setup() error = %v, want ErrHook", err)
	}
	if p.State() != StateUninitialized {
		t.Errorf("State() = %v, want %v", p.State(), StateUninitialized)
	}
}

func TestPluginObserver(t *testing.T) {
	var seen []api.Transition
	p := New(&recordingHooks{name: "observed"}, WithObserver(api.ObserverFunc(func(tr api.Transition) {
		seen = append(seen, tr)
	})))

	_ = p.Activate()
	_ = p.Setup(nil)
	_ = p.Activate()

	if len(seen) != 3 {
		t.Fatalf("observed %d transitions, want 3", len(seen))
	}
	if seen[0].Err == nil || seen[0].To != "uninitialized" {
		t.Errorf("rejected transition = %+v", seen[0])
	}
	if seen[2].Type() != "plugin.activate" || seen[2].From != "set_up" || seen[2].To != "active" {
		t.Errorf("activate transition = %+v", seen[2])
	}
	for _, tr := range seen {
		if tr.Name != "observed" {
			t.Errorf("transition name = %q, want observed", tr.Name)
		}
	}
}

func TestPluginOptionsCopied(t *testing.T) {
	p := New(&recordingHooks{name: "test"})
	opts := api.Options{"a": 1}
	_ = p.Setup(opts)
	opts["a"] = 2

	if got := p.Options()["a"]; got != 1 {
		t.Errorf("Options()[a] = %v, want 1", got)
	}
}

func TestHookFuncsNilHooks(t *testing.T) {
	p := New(&api.HookFuncs{PluginName: "empty"})

	if err := p.Setup(nil); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := p.Activate(); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if err := p.Teardown(); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
}

type releasingHooks struct {
	recordingHooks
	releases   int
	releaseErr error
	namePanic  bool
}

func (r *releasingHooks) Name() string {
	if r.namePanic {
		panic("no name")
	}
	return r.name
}

func (r *releasingHooks) Release() error {
	r.releases++
	return r.releaseErr
}

func TestPluginReleaseOnce(t *testing.T) {
	hooks := &releasingHooks{recordingHooks: recordingHooks{name: "held"}}
	p := New(hooks)

	if err := p.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := p.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
	if hooks.releases != 1 {
		t.Errorf("releases = %d, want 1", hooks.releases)
	}
	if p.State() != StateUninitialized {
		t.Errorf("State() = %v, want %v", p.State(), StateUninitialized)
	}
}

func TestPluginReleaseError(t *testing.T) {
	hooks := &releasingHooks{recordingHooks: recordingHooks{name: "held"}, releaseErr: errors.New("busy")}
	p := New(hooks)

	err := p.Release()
	if !errors.Is(err, api.ErrHook) {
		t.Fatalf("Release() error = %v, want ErrHook", err)
	}
	var hookErr *api.HookError
	if !errors.As(err, &hookErr) || hookErr.Event != "release" || hookErr.Plugin != "held" {
		t.Errorf("Release() error = %#v", err)
	}
}

func TestPluginReleaseWithoutReleaser(t *testing.T) {
	p := New(&recordingHooks{name: "plain"})
	if err := p.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}

func TestWrapNamePanic(t *testing.T) {
	hooks := &releasingHooks{namePanic: true}
	p, err := Wrap(hooks)
	if !errors.Is(err, api.ErrConstruction) {
		t.Fatalf("Wrap() error = %v, want ErrConstruction", err)
	}
	if p != nil {
		t.Errorf("Wrap() plugin = %v, want nil", p)
	}
	if hooks.releases != 1 {
		t.Errorf("releases = %d, want 1", hooks.releases)
	}
}

func TestWrap(t *testing.T) {
	p, err := Wrap(&recordingHooks{name: "fine"})
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}
	if p.Name() != "fine" || p.State() != StateUninitialized {
		t.Errorf("Wrap() = %s in %v", p.Name(), p.State())
	}
}
