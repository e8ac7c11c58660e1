package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sammwyy/ploogz/api"
	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure
type Config struct {
	Core    CoreConfig              `toml:"core" yaml:"core"`
	Plugins map[string]PluginConfig `toml:"plugins" yaml:"plugins"`
	Include []IncludeConfig         `toml:"include" yaml:"include"`
}

// CoreConfig contains core daemon configuration
type CoreConfig struct {
	SearchPaths []string `toml:"search_paths" yaml:"search_paths"`
	LogLevel    string   `toml:"log_level" yaml:"log_level"`
	SocketPath  string   `toml:"socket_path" yaml:"socket_path"`
	MetricsAddr string   `toml:"metrics_addr" yaml:"metrics_addr"`
	PIDFile     string   `toml:"pid_file" yaml:"pid_file"`
	Watch       *bool    `toml:"watch" yaml:"watch"`
}

// PluginConfig contains plugin-specific configuration, keyed by plugin name
type PluginConfig struct {
	Enabled *bool                  `toml:"enabled" yaml:"enabled"`
	Options map[string]interface{} `toml:"options" yaml:"options"`
}

// IncludeConfig specifies additional configuration files to include
type IncludeConfig struct {
	Files []string `toml:"files" yaml:"files"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			LogLevel: "info",
		},
		Plugins: make(map[string]PluginConfig),
		Include: []IncludeConfig{},
	}
}

// LoadConfig loads configuration from the specified file. TOML and YAML files
// are told apart by extension.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// Load main config file
	if err := loadConfigFile(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}

	// Load included files, including those pulled in by other includes
	baseDir := filepath.Dir(configPath)
	loaded := map[string]bool{filepath.Clean(configPath): true}
	for i := 0; i < len(config.Include); i++ {
		for _, pattern := range config.Include[i].Files {
			fullPattern := pattern
			if !filepath.IsAbs(pattern) {
				fullPattern = filepath.Join(baseDir, pattern)
			}
			matches, err := filepath.Glob(fullPattern)
			if err != nil {
				return nil, fmt.Errorf("failed to glob pattern %s: %w", fullPattern, err)
			}

			for _, match := range matches {
				if loaded[filepath.Clean(match)] {
					continue // Skip the main config file and repeated includes
				}
				loaded[filepath.Clean(match)] = true

				if err := loadConfigFile(match, config); err != nil {
					return nil, fmt.Errorf("failed to load included config %s: %w", match, err)
				}
			}
		}
	}

	config.cleanPaths()
	return config, nil
}

// loadConfigFile loads a single configuration file and merges it into the existing config
func loadConfigFile(path string, config *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", path)
	}

	var tempConfig Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &tempConfig); err != nil {
			return fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	default:
		if _, err := toml.DecodeFile(path, &tempConfig); err != nil {
			return fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	// Included files resolve their relative search paths against their own directory
	dir := filepath.Dir(path)
	for i, p := range tempConfig.Core.SearchPaths {
		if !filepath.IsAbs(p) {
			tempConfig.Core.SearchPaths[i] = filepath.Join(dir, p)
		}
	}

	mergeConfigs(config, &tempConfig)
	return nil
}

// mergeConfigs merges tempConfig into config
func mergeConfigs(config, tempConfig *Config) {
	// Merge core config (tempConfig takes precedence for non-empty values)
	if len(tempConfig.Core.SearchPaths) > 0 {
		config.Core.SearchPaths = tempConfig.Core.SearchPaths
	}
	if tempConfig.Core.LogLevel != "" {
		config.Core.LogLevel = tempConfig.Core.LogLevel
	}
	if tempConfig.Core.SocketPath != "" {
		config.Core.SocketPath = tempConfig.Core.SocketPath
	}
	if tempConfig.Core.MetricsAddr != "" {
		config.Core.MetricsAddr = tempConfig.Core.MetricsAddr
	}
	if tempConfig.Core.PIDFile != "" {
		config.Core.PIDFile = tempConfig.Core.PIDFile
	}
	if tempConfig.Core.Watch != nil {
		config.Core.Watch = tempConfig.Core.Watch
	}

	// Merge plugins
	for k, v := range tempConfig.Plugins {
		config.Plugins[k] = v
	}

	// Append includes
	config.Include = append(config.Include, tempConfig.Include...)
}

func (c *Config) cleanPaths() {
	for i, p := range c.Core.SearchPaths {
		c.Core.SearchPaths[i] = filepath.Clean(p)
	}
}

// Validate checks the configuration for values the daemon cannot run with
func (c *Config) Validate() error {
	var errs []error
	if len(c.Core.SearchPaths) == 0 {
		errs = append(errs, errors.New("core.search_paths must list at least one directory"))
	}
	for i, p := range c.Core.SearchPaths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("core.search_paths[%d] is empty", i))
		}
	}
	if _, err := api.ParseLogLevel(c.Core.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("core.log_level: %w", err))
	}
	return errors.Join(errs...)
}

// WatchEnabled reports whether search path changes should be reported
func (c *Config) WatchEnabled() bool {
	return c.Core.Watch != nil && *c.Core.Watch
}

// PluginOptions returns a copy of the setup options for a plugin
func (c *Config) PluginOptions(name string) api.Options {
	pluginConfig, exists := c.Plugins[name]
	if !exists || pluginConfig.Options == nil {
		return api.Options{}
	}
	return api.Options(pluginConfig.Options).Clone()
}

// IsPluginEnabled checks if a plugin is enabled
func (c *Config) IsPluginEnabled(name string) bool {
	if pluginConfig, exists := c.Plugins[name]; exists && pluginConfig.Enabled != nil {
		return *pluginConfig.Enabled
	}
	return true // Default to enabled if not specified
}
