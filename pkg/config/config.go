package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/adapter/tcpfs"
	"github.com/spf13/viper"
)

// Config represents the complete tcpfs server configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (TCPFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct carries type-specific maps (e.g. content.filesystem, content.s3) and
// only the one matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Metadata selects and configures the metadata index
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Content selects and configures the content store
	Content ContentConfig `mapstructure:"content"`

	// GC configures the orphan reconciliation sweep
	GC GCConfig `mapstructure:"gc"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// ImplicitNamespaces creates a namespace on its first upload.
	// When false, uploads to unknown namespaces are refused. Default: true.
	ImplicitNamespaces *bool `mapstructure:"implicit_namespaces"`

	// Metrics configures the Prometheus HTTP endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ImplicitNamespacesEnabled reports the effective implicit_namespaces value.
func (c ServerConfig) ImplicitNamespacesEnabled() bool {
	return c.ImplicitNamespaces == nil || *c.ImplicitNamespaces
}

// MetricsConfig configures the metrics HTTP server.
type MetricsConfig struct {
	// Enabled starts the metrics server and Prometheus collectors
	Enabled bool `mapstructure:"enabled"`

	// Port is the HTTP port for /metrics
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// MetadataConfig specifies the metadata index.
type MetadataConfig struct {
	// Type selects the implementation
	// Valid values: sqlite, badger
	Type string `mapstructure:"type" validate:"required,oneof=sqlite badger"`

	// SQLite contains sqlite-specific configuration
	// Only used when Type = "sqlite"
	SQLite map[string]any `mapstructure:"sqlite"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// ContentConfig specifies the content store.
type ContentConfig struct {
	// Type selects the implementation
	// Valid values: filesystem, s3, memory
	Type string `mapstructure:"type" validate:"required,oneof=filesystem s3 memory"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Memory contains memory-specific configuration (currently none)
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`
}

// GCConfig configures the reconciliation sweep.
type GCConfig struct {
	// Enabled runs periodic sweeps. Default: true.
	Enabled *bool `mapstructure:"enabled"`

	// Interval between sweeps
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`

	// GracePeriod protects files younger than this
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"gte=0"`

	// BatchSize is the number of orphans deleted per batch
	BatchSize int `mapstructure:"batch_size" validate:"gte=0,lte=1000"`

	// RunTimeout bounds one periodic sweep
	RunTimeout time.Duration `mapstructure:"run_timeout" validate:"gte=0"`

	// DryRun logs orphans without deleting them
	DryRun bool `mapstructure:"dry_run"`
}

// IsEnabled reports the effective enabled value.
func (c GCConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// TCPFS contains the binary object protocol configuration.
	// Uses the tcpfs.TCPFSConfig type directly to avoid duplication.
	TCPFS tcpfs.TCPFSConfig `mapstructure:"tcpfs"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TCPFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// decodeHook converts the string forms accepted in configuration files:
// durations ("30s"), humanized byte sizes ("64MiB") and comma separated
// lists.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		byteSizeHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use TCPFS_ prefix and underscores
	// Example: TCPFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("TCPFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/tcpfs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys lists the keys that may be set through the environment without
// appearing in a config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"server.implicit_namespaces",
	"server.metrics.enabled",
	"server.metrics.port",
	"metadata.type",
	"content.type",
	"gc.enabled",
	"gc.interval",
	"gc.grace_period",
	"gc.dry_run",
	"adapters.tcpfs.enabled",
	"adapters.tcpfs.address",
	"adapters.tcpfs.port",
	"adapters.tcpfs.max_connections",
	"adapters.tcpfs.accept_rate",
	"adapters.tcpfs.max_object_size",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		if configPath != "" && errors.Is(err, os.ErrNotExist) {
			logger.Warn("Config file %s not found, using defaults", configPath)
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tcpfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "tcpfs")
}

// getDataDir returns the directory holding the default index and objects.
//
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share, or ./tcpfs-data.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "tcpfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "tcpfs-data"
	}

	return filepath.Join(home, ".local", "share", "tcpfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}

// GetDataDir returns the default data directory.
func GetDataDir() string {
	return getDataDir()
}
