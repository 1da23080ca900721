package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sydlexius/driftwood/internal/analysis"
	"github.com/sydlexius/driftwood/internal/api"
	"github.com/sydlexius/driftwood/internal/backup"
	"github.com/sydlexius/driftwood/internal/config"
	"github.com/sydlexius/driftwood/internal/database"
	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/issue"
	"github.com/sydlexius/driftwood/internal/library"
	"github.com/sydlexius/driftwood/internal/logging"
	"github.com/sydlexius/driftwood/internal/maintenance"
	"github.com/sydlexius/driftwood/internal/metadata"
	"github.com/sydlexius/driftwood/internal/playback"
	"github.com/sydlexius/driftwood/internal/scanner"
	"github.com/sydlexius/driftwood/internal/settings"
	"github.com/sydlexius/driftwood/internal/show"
	"github.com/sydlexius/driftwood/internal/task"
	"github.com/sydlexius/driftwood/internal/version"
	"github.com/sydlexius/driftwood/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	configPath := os.Getenv("DW_CONFIG_PATH")
	if configPath == "" {
		configPath = "/data/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Set up structured logging via the logging Manager
	logManager, logger := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.File,
	})
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	// Open database
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	// Run migrations
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	settingsService := settings.NewService(db)

	// Persisted logging settings override config file values
	applyDBLoggingSettings(settingsService, logManager, logger)

	// Initialize library service and backfill the default library
	libraryService := library.NewService(db)
	backfillDefaultLibrary(context.Background(), libraryService, cfg.TV.LibraryPath, logger)

	// Graceful shutdown context; also the base context for background tasks
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Core services
	showService := show.NewService(db)
	issueService := issue.NewService(db)
	playbackService := playback.NewService(db)

	// Event bus
	eventBus := event.NewBus(logger, 256)
	go eventBus.Start()
	defer eventBus.Stop()

	// Task engine: the persisted ceiling wins over the config file
	ceiling := settingsService.GetInt(context.Background(), settings.KeyTaskCeiling, cfg.Tasks.MaxConcurrent)
	if ceiling < task.MinConcurrent || ceiling > task.MaxConcurrent {
		logger.Warn("ignoring out-of-range persisted task ceiling", slog.Int("value", ceiling))
		ceiling = cfg.Tasks.MaxConcurrent
	}
	taskRegistry := task.NewRegistry(task.DefaultRetention)
	cancelRegistry := task.NewCancelRegistry()
	scheduler := task.NewScheduler(ctx, taskRegistry, cancelRegistry, ceiling, logger)

	scannerService := scanner.NewService(db, showService, libraryService, scheduler, cancelRegistry, eventBus, logger)
	analysisService := analysis.NewService(showService, analysis.NewFFprobeAnalyzer(cfg.Analysis.FFprobePath), scheduler, cancelRegistry, eventBus, logger)
	metadataService := metadata.NewService(showService, metadata.Unconfigured{}, cfg.Metadata.CallsPerSecond, scheduler, cancelRegistry, eventBus, logger)

	backupDir := cfg.Backup.Dir
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	}
	backupService := backup.NewService(db, backupDir, cfg.Backup.Keep, logger)
	maintenanceService := maintenance.NewService(db, cfg.Database.Path, settingsService, logger)

	logger.Info("starting driftwood",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.Int("task_ceiling", ceiling))

	router := api.NewRouter(api.RouterDeps{
		Libraries:   libraryService,
		Shows:       showService,
		Issues:      issueService,
		Playback:    playbackService,
		Scanner:     scannerService,
		Analysis:    analysisService,
		Metadata:    metadataService,
		Settings:    settingsService,
		Backup:      backupService,
		Maintenance: maintenanceService,
		Scheduler:   scheduler,
		Tasks:       taskRegistry,
		Bus:         eventBus,
		LogManager:  logManager,
		Logger:      logger,
		BasePath:    cfg.Server.BasePath,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Backup scheduler (opt-in via config)
	if cfg.Backup.Enabled {
		go backupService.StartScheduler(ctx, time.Duration(cfg.Backup.IntervalHours)*time.Hour)
	}

	// Maintenance scheduler (opt-out via settings)
	if settingsService.GetBool(ctx, maintenance.KeyEnabled, true) {
		hours := settingsService.GetInt(ctx, maintenance.KeyIntervalHours, 24)
		if hours < 1 {
			hours = 24
		}
		go maintenanceService.StartScheduler(ctx, time.Duration(hours)*time.Hour)
	}

	scanFn := func(ctx context.Context) error {
		_, err := scannerService.StartScan(ctx)
		return err
	}

	// Filesystem watcher (opt-out via settings)
	if settingsService.GetBool(ctx, settings.KeyWatcherEnabled, true) {
		watcherService := watcher.NewService(scanFn, libraryService, eventBus, logger)
		go watcherService.Start(ctx)
	}

	// Optional scan on startup
	if settingsService.GetBool(ctx, settings.KeyScanOnStart, false) {
		if _, err := scannerService.StartScan(ctx); err != nil {
			logger.Warn("startup scan not admitted", "error", err)
		}
	}

	// Periodic metadata refresh for shows missing episode data (0 = disabled)
	if hours := settingsService.GetInt(ctx, settings.KeyMetadataInterval, 0); hours > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(hours) * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := metadataService.RefreshMissing(ctx); err != nil {
						logger.Warn("scheduled metadata refresh not admitted", "error", err)
					}
				}
			}
		}()
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// applyDBLoggingSettings reconfigures the log manager from persisted
// settings, if any are present. Called once after migrations.
func applyDBLoggingSettings(s *settings.Service, mgr *logging.Manager, logger *slog.Logger) {
	ctx := context.Background()
	level := s.Get(ctx, settings.KeyLogLevel, "")
	format := s.Get(ctx, settings.KeyLogFormat, "")
	if level == "" && format == "" {
		return
	}

	if level != "" && logging.ValidLevel(level) {
		if err := mgr.SetLevel(level); err != nil {
			logger.Warn("applying persisted log level", "error", err)
		}
	}
	if format != "" && logging.ValidFormat(format) {
		if err := mgr.SetFormat(format); err != nil {
			logger.Warn("applying persisted log format", "error", err)
		}
	}
	logger.Info("applied persisted logging settings",
		slog.String("level", level), slog.String("format", format))
}

// backfillDefaultLibrary ensures at least one library exists so first-run
// installs can scan without touching the API. No-op when any library is
// already configured or the path does not exist.
func backfillDefaultLibrary(ctx context.Context, libs *library.Service, tvPath string, logger *slog.Logger) {
	existing, err := libs.List(ctx)
	if err != nil {
		logger.Error("listing libraries for backfill", "error", err)
		return
	}
	if len(existing) > 0 || tvPath == "" {
		return
	}

	if info, err := os.Stat(tvPath); err != nil || !info.IsDir() {
		logger.Warn("default library path unavailable; skipping backfill",
			slog.String("path", tvPath))
		return
	}

	lib := &library.Library{
		Name: "Default",
		Path: filepath.Clean(tvPath),
	}
	if err := libs.Create(ctx, lib); err != nil {
		logger.Error("creating default library", "error", err)
		return
	}
	logger.Info("created default library",
		slog.String("id", lib.ID), slog.String("path", lib.Path))
}
