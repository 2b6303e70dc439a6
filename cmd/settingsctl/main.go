// Command settingsctl inspects and edits a settings store on disk.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/larixai/settingsstore"
	"github.com/larixai/settingsstore/backend/boltstore"
	"github.com/larixai/settingsstore/backend/sqlitestore"
	"github.com/larixai/settingsstore/internal/config"
	"github.com/larixai/settingsstore/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "help", "-h", "--help":
		printUsage()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(os.Getenv("SETTINGS_CONFIG"))
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: settingsctl <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  keys                         List keys in the namespace")
	fmt.Println("  get <key>                    Print a stored value")
	fmt.Println("  set <key> <value> [ttl]      Store a JSON (or plain string) value")
	fmt.Println("  rm <key>                     Remove a key")
	fmt.Println("  usage                        Show estimated storage usage")
	fmt.Println("  settings [field=value ...]   Show or update application settings")
	fmt.Println("  theme [field=value ...]      Show or update theme settings")
	fmt.Println("  prefs <user> [field=value]   Show or update a user's preferences")
	fmt.Println("  cache-get <key>              Print a cached value")
	fmt.Println("  cache-set <key> <value> [ttl]")
	fmt.Println("                               Cache a value (default TTL from config)")
	fmt.Println("  clear-cache                  Remove all cache entries")
	fmt.Println("  sweep                        Remove expired cache entries")
	fmt.Println("  sweeper                      Sweep on the configured interval until interrupted")
	fmt.Println("  export [file]                Write all settings as JSON (stdout by default)")
	fmt.Println("  import <file|->              Load settings from an export")
	fmt.Println("  clear                        Remove every key in the namespace")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  SETTINGS_CONFIG              Path to a YAML or TOML config file")
	fmt.Println("  SETTINGS_STORAGE_BACKEND     memory, sqlite or bolt")
	fmt.Println("  SETTINGS_STORAGE_PATH        Database file")
	fmt.Println("  SETTINGS_STORAGE_PREFIX      Namespace prefix")
	fmt.Println("  SETTINGS_LOG_LEVEL           debug, info, warn, error")
	fmt.Println()
}

// openBackend opens the configured backend. The returned close func is
// never nil.
func openBackend(cfg *config.Config, logger *slog.Logger) (settingsstore.Backend, func() error, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		b, err := sqlitestore.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case config.BackendBolt:
		b, err := boltstore.Open(cfg.Storage.Path, boltstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return settingsstore.NewMemory(), func() error { return nil }, nil
	}
}

// run opens the store described by cfg and executes one command.
func run(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	logger, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		return err
	}

	backend, closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening %s backend: %w", cfg.Storage.Backend, err)
	}
	defer closeBackend()

	settings := settingsstore.Open(ctx, backend, cfg.ResolveHost(),
		settingsstore.WithPrefix(cfg.Storage.Prefix),
		settingsstore.WithQuota(cfg.Storage.QuotaBytes),
		settingsstore.WithMaxCacheEntries(cfg.Cache.MaxEntries),
		settingsstore.WithDefaultCacheTTL(cfg.Cache.DefaultTTL),
		settingsstore.WithLogger(logger),
		settingsstore.WithLogTag("settingsctl"),
	)
	if !settings.Store().IsAvailable(ctx) {
		return fmt.Errorf("storage backend is unavailable")
	}

	c := &cli{settings: settings, store: settings.Store(), out: stdout, sweepInterval: cfg.Cache.SweepInterval}
	return c.dispatch(ctx, args)
}
