package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sammwyy/ploogz/api"
	"github.com/sammwyy/ploogz/core/builtin"
	"github.com/sammwyy/ploogz/core/config"
	"github.com/sammwyy/ploogz/core/discovery"
	"github.com/sammwyy/ploogz/core/eventbus"
	"github.com/sammwyy/ploogz/core/filewatcher"
	"github.com/sammwyy/ploogz/core/host"
	"github.com/sammwyy/ploogz/core/metrics"
)

// Daemon represents the main ploogz daemon
type Daemon struct {
	config        *config.Config
	logger        api.Logger
	eventBus      *eventbus.EventBus
	metrics       *metrics.Metrics
	loader        *discovery.Loader
	builtins      *builtin.Registry
	host          *host.Host
	metricsServer *http.Server
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewDaemon creates a new daemon instance from a validated configuration
func NewDaemon(cfg *config.Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := api.SetLogLevel(cfg.Core.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to set log level: %w", err)
	}

	// Create context
	ctx, cancel := context.WithCancel(context.Background())

	daemon := &Daemon{
		config: cfg,
		logger: api.NewLogger("core"),
		ctx:    ctx,
		cancel: cancel,
	}

	// Initialize components
	daemon.eventBus = eventbus.NewEventBus(cfg.Core.SocketPath, api.NewLogger("eventbus"))
	daemon.metrics = metrics.New()
	daemon.loader = discovery.NewLoader(api.NewLogger("discovery"),
		discovery.WithReporter(daemon.metrics.DiscoveryFailed))
	daemon.builtins = builtin.NewRegistry(api.NewLogger("builtin"),
		builtin.WithReporter(daemon.metrics.DiscoveryFailed))
	daemon.host = host.New(cfg.Core.SearchPaths, host.DiscovererFunc(daemon.discover),
		host.WithLogger(api.NewLogger("host")),
		host.WithFilter(cfg.IsPluginEnabled),
		host.WithReporter(daemon.metrics.DiscoveryFailed),
		host.WithObserver(api.Observers{daemon.eventBus, daemon.metrics}),
	)

	return daemon, nil
}

// RegisterBuiltin adds a plugin compiled into the binary. Built-in plugins
// are loaded before those on the search path. Must be called before Start.
func (d *Daemon) RegisterBuiltin(name string, factory builtin.Factory) error {
	return d.builtins.Register(name, factory)
}

// discover returns the built-in plugins followed by those on the search path
func (d *Daemon) discover(paths []string) ([]api.Hooks, error) {
	plugins, berr := d.builtins.Discover(paths)
	found, lerr := d.loader.Discover(paths)
	return append(plugins, found...), errors.Join(berr, lerr)
}

// Host returns the plugin host driven by the daemon
func (d *Daemon) Host() *host.Host {
	return d.host
}

// EventBus returns the daemon event bus
func (d *Daemon) EventBus() *eventbus.EventBus {
	return d.eventBus
}

// Metrics returns the daemon metrics
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// Start starts the daemon and blocks until a shutdown signal or Stop
func (d *Daemon) Start() error {
	d.logger.Info("Starting ploogz daemon")

	// Check and create PID file
	if err := d.createPIDFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer d.removePIDFile()

	// Start event bus
	if err := d.eventBus.Start(); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer d.eventBus.Stop()

	if err := d.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	defer d.stopMetricsServer()

	// Start file watcher
	if d.config.WatchEnabled() {
		fileWatcher, err := filewatcher.NewFileWatcher(api.NewLogger("filewatcher"), d.eventBus, d.loader.IsCandidate)
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		if err := fileWatcher.Watch(d.config.Core.SearchPaths); err != nil {
			return fmt.Errorf("failed to watch search paths: %w", err)
		}
		if err := fileWatcher.Start(); err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		defer fileWatcher.Stop()
	}

	// Load, set up and activate plugins
	if err := d.startPlugins(); err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}
	defer d.stopPlugins()

	d.logger.Info("ploogz daemon started successfully")

	// Wait for shutdown signal
	d.waitForShutdown()

	d.logger.Info("ploogz daemon shutting down")
	return nil
}

// Stop asks a running Start to return
func (d *Daemon) Stop() {
	d.cancel()
}

// startPlugins loads the host, then sets up and activates every plugin in
// load order. A plugin that fails is logged and left where it stopped.
func (d *Daemon) startPlugins() error {
	if err := d.host.Load(); err != nil {
		return err
	}
	d.metrics.SetPluginsLoaded(d.host.Len())

	active := 0
	for p := range d.host.Plugins() {
		if err := p.Setup(d.config.PluginOptions(p.Name())); err != nil {
			d.logger.Error("Failed to set up plugin", "name", p.Name(), "error", err)
			continue
		}
		if err := p.Activate(); err != nil {
			d.logger.Error("Failed to activate plugin", "name", p.Name(), "error", err)
			continue
		}
		active++
	}

	d.logger.Info("Plugins activated", "active", active, "loaded", d.host.Len())
	return nil
}

// stopPlugins tears down the host
func (d *Daemon) stopPlugins() {
	if err := d.host.Teardown(); err != nil {
		d.logger.Error("Some plugins failed to tear down", "error", err)
	}
}

// ListPlugins loads the host, writes the name of every enabled plugin to w
// without setting any of them up, and tears the host down again.
func (d *Daemon) ListPlugins(w io.Writer) error {
	if err := d.host.Load(); err != nil {
		return err
	}
	defer func() {
		// Nothing was activated; teardown only releases loader resources.
		if err := d.host.Teardown(); err != nil {
			d.logger.Debug("Released listed plugins", "error", err)
		}
	}()

	for p := range d.host.Plugins() {
		if _, err := fmt.Fprintln(w, p.Name()); err != nil {
			return err
		}
	}
	return nil
}

// startMetricsServer serves /metrics when core.metrics_addr is set
func (d *Daemon) startMetricsServer() error {
	if d.config.Core.MetricsAddr == "" {
		return nil
	}

	listener, err := net.Listen("tcp", d.config.Core.MetricsAddr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	d.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := d.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("Metrics server failed", "error", err)
		}
	}()

	d.logger.Info("Serving metrics", "addr", listener.Addr().String())
	return nil
}

func (d *Daemon) stopMetricsServer() {
	if d.metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.metricsServer.Shutdown(ctx); err != nil {
		d.logger.Error("Failed to stop metrics server", "error", err)
	}
}

// createPIDFile creates a PID file
func (d *Daemon) createPIDFile() error {
	if d.config.Core.PIDFile == "" {
		return nil
	}

	// Check if PID file already exists
	if data, err := os.ReadFile(d.config.Core.PIDFile); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid != os.Getpid() {
			// Check if process is running
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("daemon is already running with PID %d", pid)
				}
			}
		}
	}

	// Write current PID
	pid := os.Getpid()
	if err := os.WriteFile(d.config.Core.PIDFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.logger.Debug("Created PID file", "path", d.config.Core.PIDFile, "pid", pid)
	return nil
}

// removePIDFile removes the PID file
func (d *Daemon) removePIDFile() {
	if d.config.Core.PIDFile != "" {
		if err := os.Remove(d.config.Core.PIDFile); err != nil && !os.IsNotExist(err) {
			d.logger.Error("Failed to remove PID file", "path", d.config.Core.PIDFile, "error", err)
		}
	}
}

// waitForShutdown waits for a shutdown signal
func (d *Daemon) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		d.logger.Info("Received shutdown signal", "signal", sig)
	case <-d.ctx.Done():
		d.logger.Info("Context cancelled")
	}

	d.cancel()
}
