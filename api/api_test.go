package api

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "host", slog.LevelInfo)

	l.Debug("hidden")
	l.With("name", "Alpha").Info("Loaded plugin", "count", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
	for _, want := range []string{"component=host", "name=Alpha", "count=2", `msg="Loaded plugin"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"crit":    slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLogLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"transition", &TransitionError{Machine: "plugin", Name: "a", From: "uninitialized", Event: "activate"}, ErrIllegalTransition},
		{"discovery", &DiscoveryError{Path: "a.lua", Err: cause}, ErrDiscovery},
		{"construction", &ConstructionError{Path: "a.so", Symbol: "NewPlugin", Err: cause}, ErrConstruction},
		{"hook", &HookError{Plugin: "a", Event: "setup", Err: cause}, ErrHook},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("%v does not match %v", tt.err, tt.sentinel)
			}
			if tt.name != "transition" && !errors.Is(tt.err, cause) {
				t.Errorf("%v does not unwrap to its cause", tt.err)
			}
		})
	}
}

func TestHookFuncsAndOptions(t *testing.T) {
	var empty HookFuncs
	if err := empty.OnSetup(nil); err != nil {
		t.Errorf("nil Setup returned %v", err)
	}
	if err := empty.OnActivate(); err != nil {
		t.Errorf("nil Activate returned %v", err)
	}
	if err := empty.OnTeardown(); err != nil {
		t.Errorf("nil Teardown returned %v", err)
	}

	opts := Options{"a": 1}
	clone := opts.Clone()
	clone["a"] = 2
	if opts["a"] != 1 {
		t.Error("Clone shares storage with the original")
	}
	if Options(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestObserversFanOut(t *testing.T) {
	var got []string
	record := func(prefix string) Observer {
		return ObserverFunc(func(tr Transition) { got = append(got, prefix+tr.Type()) })
	}

	Observers{record("a:"), nil, record("b:")}.Observe(Transition{Machine: "host", Event: "load"})
	if strings.Join(got, ",") != "a:host.load,b:host.load" {
		t.Errorf("got %v", got)
	}
}
