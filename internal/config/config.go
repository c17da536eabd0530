// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cartoforge/tilecutter/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Source        string        `mapstructure:"source"`
	OutputDir     string        `mapstructure:"output_dir"`
	WorkDir       string        `mapstructure:"work_dir"`
	Workers       int           `mapstructure:"workers"`
	KeepArtifacts bool          `mapstructure:"keep_artifacts"`
	Tiles         TilesConfig   `mapstructure:"tiles"`
	Publish       PublishConfig `mapstructure:"publish"`
	Metrics       MetricsConfig `mapstructure:"metrics"`
	Logging       LoggingConfig `mapstructure:"logging"`
	Watch         WatchConfig   `mapstructure:"watch"`
}

// TilesConfig holds the tiling parameters.
type TilesConfig struct {
	Format        string `mapstructure:"format"`         // png, png8, jpeg
	Quality       int    `mapstructure:"quality"`        // JPEG only, 1-100
	MinZoom       int    `mapstructure:"minzoom"`        // first rendered zoom level
	MaxZoom       int    `mapstructure:"maxzoom"`        // last rendered zoom level
	ReferenceZoom int    `mapstructure:"reference_zoom"` // partitioning grid zoom
	ClipSize      int    `mapstructure:"clip_size"`      // square clip size in pixels
}

// TileFormat returns the parsed tile format. Validate has already
// checked it parses.
func (t TilesConfig) TileFormat() domain.TileFormat {
	format, _ := domain.ParseTileFormat(t.Format)
	return format
}

// PublishConfig holds object storage publish configuration.
type PublishConfig struct {
	Type         string      `mapstructure:"type"` // none, local, s3, azure
	LocalPath    string      `mapstructure:"local_path"`
	SkipExisting bool        `mapstructure:"skip_existing"`
	S3           S3Config    `mapstructure:"s3"`
	Azure        AzureConfig `mapstructure:"azure"`
}

// Enabled returns true if a publish backend is configured.
func (p *PublishConfig) Enabled() bool {
	return p.Type != "" && p.Type != "none"
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// WatchConfig holds watch-mode configuration.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// Defaults sets the default configuration values.
func Defaults() {
	viper.SetDefault("work_dir", "")
	viper.SetDefault("workers", runtime.NumCPU())
	viper.SetDefault("keep_artifacts", false)

	// Tiling defaults
	viper.SetDefault("tiles.format", "png")
	viper.SetDefault("tiles.quality", 0)
	viper.SetDefault("tiles.minzoom", 16)
	viper.SetDefault("tiles.maxzoom", 20)
	viper.SetDefault("tiles.reference_zoom", 16)
	viper.SetDefault("tiles.clip_size", 4096)

	// Publish defaults
	viper.SetDefault("publish.type", "none")
	viper.SetDefault("publish.skip_existing", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Watch defaults
	viper.SetDefault("watch.enabled", false)
	viper.SetDefault("watch.debounce", 2*time.Second)
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("TILECUTTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/tilecutter")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// JPEG quality defaults to 75 when not set; Validate has already
	// rejected an explicit quality for non-JPEG formats.
	if cfg.Tiles.TileFormat() == domain.FormatJPEG && cfg.Tiles.Quality == 0 {
		cfg.Tiles.Quality = 75
	}

	return &cfg, nil
}

// Validate validates the configuration. All input validation happens
// here, before any processing begins or temporary files are created.
func (c *Config) Validate() error {
	if c.Source == "" {
		return &domain.ConfigError{Field: "source", Message: "source raster is required"}
	}
	if c.OutputDir == "" {
		return &domain.ConfigError{Field: "output_dir", Message: "output directory is required"}
	}
	if c.Workers < 1 {
		return &domain.ConfigError{Field: "workers", Message: "at least one worker is required"}
	}

	format, err := domain.ParseTileFormat(c.Tiles.Format)
	if err != nil {
		return &domain.ConfigError{Field: "tiles.format", Message: err.Error()}
	}

	if c.Tiles.Quality != 0 {
		if format != domain.FormatJPEG {
			return &domain.ConfigError{
				Field:   "tiles.quality",
				Message: fmt.Sprintf("quality is only meaningful for jpeg, not %s", format),
			}
		}
		if c.Tiles.Quality < 1 || c.Tiles.Quality > 100 {
			return &domain.ConfigError{
				Field:   "tiles.quality",
				Message: fmt.Sprintf("quality %d outside [1, 100]", c.Tiles.Quality),
			}
		}
	}

	if c.Tiles.MinZoom < 0 || c.Tiles.MaxZoom > 30 || c.Tiles.MinZoom > c.Tiles.MaxZoom {
		return &domain.ConfigError{
			Field:   "tiles.minzoom",
			Message: fmt.Sprintf("invalid zoom range %d-%d", c.Tiles.MinZoom, c.Tiles.MaxZoom),
		}
	}
	if c.Tiles.ReferenceZoom < 0 || c.Tiles.ReferenceZoom > 22 {
		return &domain.ConfigError{
			Field:   "tiles.reference_zoom",
			Message: fmt.Sprintf("reference zoom %d outside [0, 22]", c.Tiles.ReferenceZoom),
		}
	}
	// Each cell's pyramid must nest inside its reference-zoom cell.
	if c.Tiles.ReferenceZoom > c.Tiles.MinZoom {
		return &domain.ConfigError{
			Field:   "tiles.reference_zoom",
			Message: fmt.Sprintf("reference zoom %d exceeds minzoom %d", c.Tiles.ReferenceZoom, c.Tiles.MinZoom),
		}
	}
	if c.Tiles.ClipSize < 256 {
		return &domain.ConfigError{
			Field:   "tiles.clip_size",
			Message: fmt.Sprintf("clip size %d below 256", c.Tiles.ClipSize),
		}
	}

	switch c.Publish.Type {
	case "", "none":
	case "local":
		if c.Publish.LocalPath == "" {
			return &domain.ConfigError{Field: "publish.local_path", Message: "local publish path is required"}
		}
	case "s3":
		if c.Publish.S3.Bucket == "" {
			return &domain.ConfigError{Field: "publish.s3.bucket", Message: "S3 bucket is required"}
		}
		if c.Publish.S3.Region == "" {
			return &domain.ConfigError{Field: "publish.s3.region", Message: "S3 region is required"}
		}
	case "azure":
		if c.Publish.Azure.Container == "" {
			return &domain.ConfigError{Field: "publish.azure.container", Message: "azure container is required"}
		}
		if c.Publish.Azure.AccountName == "" && c.Publish.Azure.ConnectionString == "" {
			return &domain.ConfigError{Field: "publish.azure.account_name", Message: "azure account name or connection string is required"}
		}
	default:
		return &domain.ConfigError{Field: "publish.type", Message: fmt.Sprintf("unknown publish type: %s", c.Publish.Type)}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return &domain.ConfigError{Field: "metrics.port", Message: fmt.Sprintf("invalid metrics port: %d", c.Metrics.Port)}
	}

	return nil
}
