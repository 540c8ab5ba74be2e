// sortify organizes files into categorized directories and keeps a full,
// undoable history of every move.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/arvidh/sortify/internal/categorize"
	"github.com/arvidh/sortify/internal/cli"
	"github.com/arvidh/sortify/internal/config"
	"github.com/arvidh/sortify/internal/database"
	"github.com/arvidh/sortify/internal/history"
	"github.com/arvidh/sortify/internal/organizer"
	"github.com/arvidh/sortify/internal/safety"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sortify %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", buildDate)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if err := run(*configPath, args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func printUsage() {
	fmt.Println("sortify - File organizer with full undo")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sortify [-config <file>] <command> [args]")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  sortify preview ~/Downloads")
	fmt.Println("  sortify organize ~/Downloads --into=~/Organized")
	fmt.Println("  sortify watch ~/Downloads")
	fmt.Println("  sortify history --status=failed")
	fmt.Println("  sortify undo last")
	fmt.Println()
	fmt.Println("Run 'sortify help' for the full command list.")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func run(configPath string, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	mgr := database.NewManager(cfg.HistoryPath())
	defer mgr.CloseAll()

	store, err := history.NewStore(mgr, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}
	defer store.Close()

	// Config hot-reload matters for the long-running commands; for a
	// one-shot command the reloader just never fires.
	if cfg.Path() != "" {
		reloader, err := config.NewReloader(cfg)
		if err != nil {
			log.Printf("Warning: config reloading unavailable: %v", err)
		} else {
			reloader.OnReload(func(*config.Config) {
				log.Println("Config reloaded")
			})
			if err := reloader.Start(); err != nil {
				log.Printf("Warning: failed to start config reloader: %v", err)
			} else {
				defer reloader.Stop()
			}
		}
	}

	backups := safety.NewBackups(cfg.BackupDir(), cfg.Safety.Backups)
	if cfg.Safety.Backups && cfg.Safety.BackupRetentionDays > 0 {
		if removed := backups.CleanupOld(cfg.Safety.BackupRetentionDays); removed > 0 {
			log.Printf("removed %d old backups", removed)
		}
	}

	rules := categorize.NewRules(cfg.Rules.Extensions, cfg.Rules.Fallback)
	executor := organizer.NewExecutor(store, backups)
	org := organizer.New(rules, executor, store)
	engine := history.NewEngine(store)

	handler := cli.NewHandler(cfg, store, engine, org, executor, backups, version)
	return handler.Handle(args, os.Stdout, os.Stderr)
}

// loadConfig loads the named config file, or falls back to defaults
// with the standard locations tried in order.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	for _, candidate := range defaultConfigPaths() {
		if _, err := os.Stat(candidate); err == nil {
			cfg, err := config.Load(candidate)
			if err != nil {
				return nil, fmt.Errorf("failed to load config %s: %w", candidate, err)
			}
			return cfg, nil
		}
	}

	return config.DefaultConfig(), nil
}

func defaultConfigPaths() []string {
	paths := []string{"sortify.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			home+"/.config/sortify/config.yaml",
			home+"/.sortify.yaml")
	}
	return paths
}
