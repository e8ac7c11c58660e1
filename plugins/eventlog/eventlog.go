// Command eventlog is an example plugin that records its own lifecycle to a
// file. Build it with:
//
//	go build -buildmode=plugin -o eventlog.so ./plugins/eventlog
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sammwyy/ploogz/api"
)

// EventLogConfig represents the setup options of the plugin
type EventLogConfig struct {
	File      string `toml:"file"`
	Format    string `toml:"format"`    // "json" or "text"
	Timestamp bool   `toml:"timestamp"` // Include timestamp
	Append    bool   `toml:"append"`    // Append to file or overwrite
}

// LogEntry represents a log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Plugin    string                 `json:"plugin"`
	Hook      string                 `json:"hook"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

// EventLog writes one line per lifecycle hook
type EventLog struct {
	config EventLogConfig
	logger api.Logger
	file   *os.File
	mutex  sync.Mutex
	now    func() time.Time
}

// NewPlugin creates a new event log plugin instance
func NewPlugin() api.Hooks {
	return &EventLog{
		logger: api.NewLogger("eventlog"),
		now:    time.Now,
	}
}

func (p *EventLog) Name() string {
	return "Event Log"
}

// OnSetup parses the options and opens the log file
func (p *EventLog) OnSetup(opts api.Options) error {
	cfg, err := parseConfig(opts)
	if err != nil {
		return err
	}
	p.config = cfg

	if err := p.openLogFile(); err != nil {
		return fmt.Errorf("failed to initialize log file: %w", err)
	}
	return p.write(LogEntry{Hook: "setup", Options: opts})
}

func (p *EventLog) OnActivate() error {
	return p.write(LogEntry{Hook: "activate"})
}

// OnTeardown writes the last entry and closes the file
func (p *EventLog) OnTeardown() error {
	werr := p.write(LogEntry{Hook: "teardown"})

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.file == nil {
		return werr
	}
	cerr := p.file.Close()
	p.file = nil
	return errors.Join(werr, cerr)
}

// parseConfig reads the setup options, applying defaults
func parseConfig(opts api.Options) (EventLogConfig, error) {
	cfg := EventLogConfig{Format: "json", Timestamp: true, Append: true}

	file, ok := opts["file"].(string)
	if !ok || file == "" {
		return cfg, errors.New("eventlog options must specify a non-empty 'file'")
	}
	cfg.File = file

	if format, exists := opts["format"]; exists {
		cfg.Format = fmt.Sprintf("%v", format)
	}
	switch cfg.Format {
	case "json", "text":
	default:
		return cfg, fmt.Errorf("invalid log format '%s', supported formats: json, text", cfg.Format)
	}

	if ts, ok := opts["timestamp"].(bool); ok {
		cfg.Timestamp = ts
	}
	if app, ok := opts["append"].(bool); ok {
		cfg.Append = app
	}
	return cfg, nil
}

// openLogFile initializes the log file
func (p *EventLog) openLogFile() error {
	dir := filepath.Dir(p.config.File)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if p.config.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(p.config.File, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", p.config.File, err)
	}

	p.mutex.Lock()
	p.file = file
	p.mutex.Unlock()

	p.logger.Info("Initialized log file", "path", p.config.File, "format", p.config.Format, "append", p.config.Append)
	return nil
}

func (p *EventLog) write(entry LogEntry) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.file == nil {
		return errors.New("log file is not open")
	}

	entry.Plugin = p.Name()
	if p.config.Timestamp {
		entry.Timestamp = p.now()
	}

	var output string
	switch p.config.Format {
	case "text":
		output = formatText(entry)
	default:
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to format log entry: %w", err)
		}
		output = string(data)
	}

	if _, err := p.file.WriteString(output + "\n"); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}
	if err := p.file.Sync(); err != nil {
		p.logger.Error("Failed to sync log file", "error", err)
	}
	return nil
}

// formatText formats the log entry as human-readable text
func formatText(entry LogEntry) string {
	var b strings.Builder
	if !entry.Timestamp.IsZero() {
		fmt.Fprintf(&b, "[%s] ", entry.Timestamp.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "%s: %s", entry.Plugin, entry.Hook)

	if len(entry.Options) > 0 {
		keys := make([]string, 0, len(entry.Options))
		for k := range entry.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, entry.Options[k]))
		}
		fmt.Fprintf(&b, " | Options: {%s}", strings.Join(pairs, " "))
	}
	return b.String()
}

// main is required for package main to link under the default build mode;
// it is unused when built with -buildmode=plugin.
func main() {}
