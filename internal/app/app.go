// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cartoforge/tilecutter/internal/adapters/gdal"
	"github.com/cartoforge/tilecutter/internal/adapters/imaging"
	"github.com/cartoforge/tilecutter/internal/adapters/mbtiles"
	"github.com/cartoforge/tilecutter/internal/adapters/metrics"
	"github.com/cartoforge/tilecutter/internal/adapters/pyramid"
	"github.com/cartoforge/tilecutter/internal/adapters/storage"
	"github.com/cartoforge/tilecutter/internal/adapters/watcher"
	"github.com/cartoforge/tilecutter/internal/application"
	"github.com/cartoforge/tilecutter/internal/config"
	"github.com/cartoforge/tilecutter/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Storage       output.ObjectStorage
	Pipeline      *application.Pipeline
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector
	MetricsServer *metrics.Server
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize metrics
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("tilecutter")
		app.MetricsServer = metrics.NewServer(
			cfg.Metrics.Port,
			cfg.Metrics.Path,
			logger,
		)
	}

	var metricsCollector output.MetricsCollector
	if app.Metrics != nil {
		metricsCollector = app.Metrics
	} else {
		metricsCollector = &output.NoOpMetrics{}
	}

	// Initialize publish storage
	if cfg.Publish.Enabled() {
		store, err := initStorage(ctx, cfg.Publish)
		if err != nil {
			return nil, fmt.Errorf("initializing storage: %w", err)
		}
		app.Storage = store
	}

	raster := gdal.NewProcessor(gdal.Config{})
	packager := application.NewPackager(mbtiles.NewFactory(), metricsCollector, logger)

	cells := application.NewCellProcessor(
		raster,
		imaging.NewFilter(),
		pyramid.NewOpener(),
		packager,
		metricsCollector,
		logger,
		application.CellOptions{
			Format:        cfg.Tiles.TileFormat(),
			Quality:       cfg.Tiles.Quality,
			MinZoom:       cfg.Tiles.MinZoom,
			MaxZoom:       cfg.Tiles.MaxZoom,
			ClipSize:      cfg.Tiles.ClipSize,
			KeepArtifacts: cfg.KeepArtifacts,
		},
	)

	app.Pipeline = application.NewPipeline(
		raster,
		cells,
		app.Storage,
		metricsCollector,
		logger,
		application.PipelineOptions{
			WorkDir:       workDir(cfg),
			OutputDir:     cfg.OutputDir,
			ReferenceZoom: cfg.Tiles.ReferenceZoom,
			Workers:       cfg.Workers,
			SkipExisting:  cfg.Publish.SkipExisting,
		},
	)

	// Initialize source watcher for watch mode
	if cfg.Watch.Enabled {
		w, err := watcher.New(
			watcher.Config{
				Paths:    []string{watchDir(cfg.Source)},
				Debounce: cfg.Watch.Debounce,
			},
			app.handleSourceChange,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing watcher: %w", err)
		}
		app.Watcher = w
	}

	return app, nil
}

// Run executes one pipeline run for the configured source and writes
// the run manifest next to the produced databases.
func (a *App) Run(ctx context.Context) error {
	if a.MetricsServer != nil {
		a.MetricsServer.Start()
	}

	result, err := a.Pipeline.Run(ctx, a.Config.Source)
	if err != nil {
		return err
	}

	manifest := application.NewManifest(
		result,
		a.Config.Tiles.TileFormat(),
		a.Config.Tiles.MinZoom,
		a.Config.Tiles.MaxZoom,
		a.Config.Tiles.ReferenceZoom,
	)
	if err := manifest.Write(a.Config.OutputDir); err != nil {
		return err
	}

	a.Logger.Info("run manifest written",
		"path", filepath.Join(a.Config.OutputDir, application.ManifestFileName))
	return nil
}

// Watch starts watch mode: every raster dropped into the source
// directory triggers a pipeline run. Blocks until the context is
// canceled.
func (a *App) Watch(ctx context.Context) error {
	if a.Watcher == nil {
		return fmt.Errorf("watch mode is not enabled")
	}

	if a.MetricsServer != nil {
		a.MetricsServer.Start()
	}

	if err := a.Watcher.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

// Shutdown gracefully shuts down long-running components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	if a.MetricsServer != nil {
		if err := a.MetricsServer.Stop(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	return nil
}

// handleSourceChange runs the pipeline for a settled source raster.
func (a *App) handleSourceChange(ctx context.Context, path string) error {
	a.Logger.Info("source raster changed, starting run", "source", path)

	result, err := a.Pipeline.Run(ctx, path)
	if err != nil {
		return err
	}

	manifest := application.NewManifest(
		result,
		a.Config.Tiles.TileFormat(),
		a.Config.Tiles.MinZoom,
		a.Config.Tiles.MaxZoom,
		a.Config.Tiles.ReferenceZoom,
	)
	return manifest.Write(a.Config.OutputDir)
}

// workDir resolves the scratch directory for clipped rasters and
// rendered pyramids.
func workDir(cfg *config.Config) string {
	if cfg.WorkDir != "" {
		return cfg.WorkDir
	}
	return filepath.Join(os.TempDir(), "tilecutter")
}

// watchDir returns the directory to watch for a configured source. A
// directory source is watched as-is; a file source watches its parent.
func watchDir(source string) string {
	info, err := os.Stat(source)
	if err == nil && info.IsDir() {
		return source
	}
	return filepath.Dir(source)
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.PublishConfig) (output.ObjectStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(cfg.LocalPath)

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	default:
		return nil, fmt.Errorf("unknown publish type: %s", cfg.Type)
	}
}
