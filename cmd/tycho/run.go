package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"skyline-data/tycho/pkg/config"
	"skyline-data/tycho/pkg/database"
	"skyline-data/tycho/pkg/export"
	"skyline-data/tycho/pkg/export/retention"
	"skyline-data/tycho/pkg/server"
	"skyline-data/tycho/pkg/storage"
	"skyline-data/tycho/pkg/web/handlers"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watchConfig   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Tycho server",
	Long: `Start the Tycho server with the specified configuration.

Examples:
  # Start with default config
  tycho run

  # Start with custom config
  tycho run --config /etc/tycho/config.yaml

  # Override listen address
  tycho run --listen 0.0.0.0:8080

  # Validate config without starting server
  tycho run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.watchConfig, "watch-config", true, "reload export limits when the config file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	setupLogging(&cfg.Logging)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Tycho v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.ConnStorePath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Connection store and manager
	connStore, err := storage.NewConnStore(cfg.Database.ConnStorePath)
	if err != nil {
		return fmt.Errorf("failed to open connection store: %w", err)
	}
	defer connStore.Close()

	manager := database.NewManager(connStore, database.PoolConfig{
		MinPoolSize:    cfg.Database.MinPoolSize,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		CommandTimeout: cfg.Database.CommandTimeout,
	})
	defer manager.Close()
	fmt.Println("✓ Connection store initialized")

	// Audit store (optional)
	var audit *storage.AuditStore
	if cfg.Audit.Enabled {
		audit, err = storage.NewAuditStore(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("failed to open audit store: %w", err)
		}
		defer audit.Close()
		fmt.Println("✓ Audit store initialized")
	}

	// Export service
	var recorder export.TaskRecorder
	if audit != nil {
		recorder = audit
	}
	exportSvc := export.NewService(export.Config{
		ExportDir:        cfg.Export.Dir,
		MaxFileSizeBytes: cfg.Export.MaxFileSizeBytes(),
		TaskTimeout:      cfg.Export.TaskTimeout,
		PerUserTaskLimit: cfg.Export.PerUserTaskLimit,
	}, export.NewMetrics(), recorder)
	defer exportSvc.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Retention sweep for old export files
	reaper := retention.NewReaper(&retention.Config{
		ExportDir:     cfg.Export.Dir,
		RetentionDays: cfg.Export.RetentionDays,
		SweepSchedule: cfg.Export.SweepSchedule,
	})
	scheduler := retention.NewScheduler(reaper)
	if err := scheduler.Start(ctx); err != nil {
		slog.Warn("failed to start retention scheduler", "error", err)
	} else {
		defer scheduler.Stop()
	}

	// Config hot reload for export limits
	if runFlags.watchConfig {
		watcher, err := config.NewWatcher(cfgFile)
		if err != nil {
			slog.Warn("failed to create config watcher", "error", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx, func(next *config.Config) {
					exportSvc.SetLimits(next.Export.MaxFileSizeBytes(), next.Export.TaskTimeout)
				}); err != nil {
					slog.Warn("config watcher stopped", "error", err)
				}
			}()
		}
	}

	srv := server.NewServer(&cfg.Server, handlers.New(manager, exportSvc, audit))

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	// Blocks until a shutdown signal or server error
	return srv.Start(ctx)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if _, statErr := os.Stat(cfgFile); os.IsNotExist(statErr) {
		cfg = config.DefaultConfig()
	} else {
		cfg, err = config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return nil, err
		}
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func setupLogging(cfg *config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
