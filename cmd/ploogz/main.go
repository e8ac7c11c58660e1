package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/sammwyy/ploogz/core"
	"github.com/sammwyy/ploogz/core/config"
)

const defaultConfigPath = "/etc/ploogz/config.toml"

// pathList collects repeated -path flags
type pathList []string

func (p *pathList) String() string {
	return strings.Join(*p, ",")
}

func (p *pathList) Set(value string) error {
	*p = append(*p, value)
	return nil
}

func main() {
	var paths pathList
	var configPath = flag.String("config", defaultConfigPath, "Path to configuration file (TOML or YAML)")
	var list = flag.Bool("list", false, "List discovered plugins and exit")
	var version = flag.Bool("version", false, "Show version information")
	var help = flag.Bool("help", false, "Show help information")
	flag.Var(&paths, "path", "Plugin search directory, may be repeated")

	flag.Parse()

	if *help {
		showHelp()
		return
	}

	if *version {
		showVersion()
		return
	}

	cfg, err := loadConfig(*configPath, paths)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create and start daemon
	daemon, err := core.NewDaemon(cfg)
	if err != nil {
		log.Fatalf("Failed to create daemon: %v", err)
	}

	if *list {
		if err := daemon.ListPlugins(os.Stdout); err != nil {
			log.Fatalf("Failed to list plugins: %v", err)
		}
		return
	}

	if err := daemon.Start(); err != nil {
		log.Fatalf("Daemon failed: %v", err)
	}
}

// loadConfig reads the config file and appends -path directories to its
// search path. A missing default config file is allowed when -path is given.
func loadConfig(configPath string, paths []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if _, statErr := os.Stat(configPath); !os.IsNotExist(statErr) || len(paths) == 0 {
			return nil, err
		}
		cfg = config.DefaultConfig()
	}

	cfg.Core.SearchPaths = append(cfg.Core.SearchPaths, paths...)
	return cfg, nil
}

func showHelp() {
	fmt.Println("ploogz plugin host")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ploogz [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Printf("  -config string    Path to configuration file (default %q)\n", defaultConfigPath)
	fmt.Println("  -path string      Plugin search directory, may be repeated")
	fmt.Println("  -list             List discovered plugins and exit")
	fmt.Println("  -version          Show version information")
	fmt.Println("  -help             Show this help message")
	fmt.Println()
	fmt.Println("For more information, visit: https://github.com/sammwyy/ploogz")
}

func showVersion() {
	fmt.Println("ploogz plugin host")
	fmt.Println("Version: 1.0.0")
	fmt.Println("Repository: https://github.com/sammwyy/ploogz")
}
