// Package filewatcher reports changes to plugin modules on the search path.
// Plugins are never reloaded; a change only produces a discovery.changed
// event and a log line.
package filewatcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sammwyy/ploogz/api"
)

// Emitter receives discovery.changed events
type Emitter interface {
	EmitEvent(event api.Event) error
}

// FileWatcher watches plugin search directories for module changes
type FileWatcher struct {
	watcher     *fsnotify.Watcher
	watched     map[string]bool
	mutex       sync.Mutex
	logger      api.Logger
	emitter     Emitter
	isCandidate func(path string) bool
	stopChannel chan struct{}
	done        chan struct{}
}

// NewFileWatcher creates a new file watcher. isCandidate decides which
// files count as plugin modules.
func NewFileWatcher(logger api.Logger, emitter Emitter, isCandidate func(path string) bool) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:     watcher,
		watched:     make(map[string]bool),
		logger:      logger,
		emitter:     emitter,
		isCandidate: isCandidate,
		stopChannel: make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Watch adds every directory under each path. Missing paths are skipped.
func (fw *FileWatcher) Watch(paths []string) error {
	for _, dir := range paths {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			fw.logger.Warn("Not watching missing plugin directory", "dir", dir)
			continue
		}
		if err := fw.addTree(dir); err != nil {
			return err
		}
	}
	return nil
}

// Start starts the file watcher
func (fw *FileWatcher) Start() error {
	go fw.watchLoop()
	fw.logger.Info("FileWatcher started")
	return nil
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	close(fw.stopChannel)
	if err := fw.watcher.Close(); err != nil {
		fw.logger.Error("Failed to close fsnotify watcher", "error", err)
	}
	<-fw.done

	fw.logger.Info("FileWatcher stopped")
	return nil
}

// addTree adds dir and its subdirectories to the watcher
func (fw *FileWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			fw.logger.Warn("Failed to read plugin path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		fw.mutex.Lock()
		defer fw.mutex.Unlock()
		if fw.watched[path] {
			return nil
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to add directory %s to watcher: %w", path, err)
		}
		fw.watched[path] = true
		fw.logger.Debug("Started watching directory", "path", path)
		return nil
	})
}

// watchLoop is the main event loop for file watching
func (fw *FileWatcher) watchLoop() {
	defer close(fw.done)
	for {
		select {
		case <-fw.stopChannel:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.addTree(event.Name); err != nil {
				fw.logger.Error("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		fw.mutex.Lock()
		delete(fw.watched, event.Name)
		fw.mutex.Unlock()
	}

	if event.Op == fsnotify.Chmod || !fw.isCandidate(event.Name) {
		return
	}

	fw.logger.Info("Plugin module changed, restart to load it", "path", event.Name, "op", event.Op.String())
	err := fw.emitter.EmitEvent(api.Event{
		Source:    "filewatcher",
		Type:      api.EventDiscoveryChanged,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"path": event.Name,
			"op":   event.Op.String(),
		},
	})
	if err != nil {
		fw.logger.Error("Failed to emit change event", "path", event.Name, "error", err)
	}
}
