// Package discovery finds plugin implementations on a filesystem search path.
//
// Every regular file under each search directory is offered to the backend
// registered for its extension: Go shared objects (.so) built with
// -buildmode=plugin, and Lua scripts (.lua). A file that cannot be loaded is
// logged and skipped; discovery of the remaining files continues.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sammwyy/ploogz/api"
)

// Backend loads plugin instances from one kind of module file.
type Backend interface {
	// Extensions returns the file extensions handled, including the dot
	Extensions() []string

	// Load loads the module at path and constructs one instance per plugin
	// implementation it provides. It may return instances together with an
	// error describing implementations that could not be constructed.
	Load(path string) ([]api.Hooks, error)
}

// Loader walks search paths and dispatches candidate files to backends
type Loader struct {
	backends map[string]Backend
	logger   api.Logger
	report   func(err error)
}

// Option configures a Loader
type Option func(*Loader)

// WithBackend registers b for its extensions, replacing any backend already
// registered for them.
func WithBackend(b Backend) Option {
	return func(l *Loader) {
		for _, ext := range b.Extensions() {
			l.backends[strings.ToLower(ext)] = b
		}
	}
}

// WithoutDefaultBackends removes the shared object and Lua backends
func WithoutDefaultBackends() Option {
	return func(l *Loader) {
		l.backends = make(map[string]Backend)
	}
}

// WithReporter calls fn for every file that fails to load
func WithReporter(fn func(err error)) Option {
	return func(l *Loader) {
		l.report = fn
	}
}

// NewLoader creates a new plugin loader with the shared object and Lua
// backends registered.
func NewLoader(logger api.Logger, opts ...Option) *Loader {
	l := &Loader{
		backends: make(map[string]Backend),
		logger:   logger,
	}
	WithBackend(NewSharedObjectBackend())(l)
	WithBackend(NewLuaBackend())(l)

	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Extensions returns the sorted list of extensions with a backend
func (l *Loader) Extensions() []string {
	exts := make([]string, 0, len(l.backends))
	for ext := range l.backends {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsCandidate reports whether path would be offered to a backend
func (l *Loader) IsCandidate(path string) bool {
	_, ok := l.backends[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Discover loads every plugin found under paths, in walk order.
// The returned error joins every file that failed to load; the plugins that
// did load are returned regardless.
func (l *Loader) Discover(paths []string) ([]api.Hooks, error) {
	var (
		plugins []api.Hooks
		errs    []error
	)

	for _, dir := range paths {
		for _, path := range l.candidates(dir) {
			found, err := l.LoadFile(path)
			if err != nil {
				l.logger.Error("Failed to load plugin", "path", path, "error", err)
				errs = append(errs, err)
				if l.report != nil {
					l.report(err)
				}
			}
			for _, hooks := range found {
				l.logger.Debug("Found plugin", "name", hooks.Name(), "path", path)
			}
			plugins = append(plugins, found...)
		}
	}

	l.logger.Info("Discovered plugins", "count", len(plugins), "failed", len(errs))
	return plugins, errors.Join(errs...)
}

// LoadFile loads the plugins provided by a single module file
func (l *Loader) LoadFile(path string) ([]api.Hooks, error) {
	backend, ok := l.backends[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, &api.DiscoveryError{Path: path, Err: fmt.Errorf("no backend for extension %q", filepath.Ext(path))}
	}
	return backend.Load(path)
}

// candidates returns the candidate module files under dir, recursively
func (l *Loader) candidates(dir string) []string {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		l.logger.Warn("Plugin directory does not exist", "dir", dir)
		return nil
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.logger.Warn("Failed to read plugin path", "path", path, "error", err)
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if l.IsCandidate(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		l.logger.Warn("Failed to walk plugin directory", "dir", dir, "error", err)
	}

	return files
}
