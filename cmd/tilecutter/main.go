// Package main provides the entry point for the tilecutter pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartoforge/tilecutter/internal/app"
	"github.com/cartoforge/tilecutter/internal/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tilecutter",
	Short: "Tilecutter - raster to MBTiles tiling pipeline",
	Long: `Tilecutter slices large georeferenced rasters into Web Mercator
tile pyramids and packages them as MBTiles databases.

The source extent is partitioned into a grid of reference-zoom cells.
Each cell is clipped out of the source, rendered into an XYZ pyramid
with the GDAL tools, post-processed per tile format and written to its
own <x>_<y>.mbtiles file.

Features:
  - png, png8 and jpeg tile formats with transparency keying
  - parallel cell processing on a fixed worker pool
  - publish to local directory, AWS S3 or Azure Blob Storage
  - watch mode for automatic runs on new source rasters
  - Prometheus metrics`,
	RunE: run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("tilecutter %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (json, text)")

	// Pipeline flags
	rootCmd.Flags().String("source", "", "source raster (GeoTIFF, VRT)")
	rootCmd.Flags().String("output", "", "output directory for .mbtiles files")
	rootCmd.Flags().String("work-dir", "", "scratch directory for intermediate artifacts")
	rootCmd.Flags().Int("workers", 0, "number of parallel cell workers (default: NumCPU)")
	rootCmd.Flags().Bool("keep-artifacts", false, "keep clipped rasters and pyramids after packaging")

	// Tiling flags
	rootCmd.Flags().String("format", "png", "tile format (png, png8, jpeg)")
	rootCmd.Flags().Int("quality", 0, "JPEG quality 1-100 (jpeg format only)")
	rootCmd.Flags().Int("minzoom", 16, "first rendered zoom level")
	rootCmd.Flags().Int("maxzoom", 20, "last rendered zoom level")
	rootCmd.Flags().Int("reference-zoom", 16, "grid partitioning zoom level")
	rootCmd.Flags().Int("clip-size", 4096, "square clip size in pixels")

	// Publish flags
	rootCmd.Flags().String("publish-type", "none", "publish backend (none, local, s3, azure)")
	rootCmd.Flags().String("publish-path", "", "local publish directory")
	rootCmd.Flags().Bool("publish-skip-existing", false, "skip objects that are already published")

	// Watch flags
	rootCmd.Flags().Bool("watch", false, "watch the source directory and run on changes")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("source", rootCmd.Flags().Lookup("source"))
	_ = viper.BindPFlag("output_dir", rootCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("work_dir", rootCmd.Flags().Lookup("work-dir"))
	_ = viper.BindPFlag("workers", rootCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("keep_artifacts", rootCmd.Flags().Lookup("keep-artifacts"))
	_ = viper.BindPFlag("tiles.format", rootCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("tiles.quality", rootCmd.Flags().Lookup("quality"))
	_ = viper.BindPFlag("tiles.minzoom", rootCmd.Flags().Lookup("minzoom"))
	_ = viper.BindPFlag("tiles.maxzoom", rootCmd.Flags().Lookup("maxzoom"))
	_ = viper.BindPFlag("tiles.reference_zoom", rootCmd.Flags().Lookup("reference-zoom"))
	_ = viper.BindPFlag("tiles.clip_size", rootCmd.Flags().Lookup("clip-size"))
	_ = viper.BindPFlag("publish.type", rootCmd.Flags().Lookup("publish-type"))
	_ = viper.BindPFlag("publish.local_path", rootCmd.Flags().Lookup("publish-path"))
	_ = viper.BindPFlag("publish.skip_existing", rootCmd.Flags().Lookup("publish-skip-existing"))
	_ = viper.BindPFlag("watch.enabled", rootCmd.Flags().Lookup("watch"))

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting tilecutter",
		"version", version,
		"source", cfg.Source,
		"format", cfg.Tiles.Format,
		"zoom", fmt.Sprintf("%d-%d", cfg.Tiles.MinZoom, cfg.Tiles.MaxZoom),
		"workers", cfg.Workers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	if cfg.Watch.Enabled {
		err = application.Watch(ctx)
	} else {
		err = application.Run(ctx)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if shutdownErr := application.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("shutdown error", "error", shutdownErr)
	}

	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
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

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
