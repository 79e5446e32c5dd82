package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

content:
  type: "filesystem"

adapters:
  tcpfs:
    enabled: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Server.ImplicitNamespacesEnabled() {
		t.Error("Expected implicit namespaces enabled by default")
	}
	if cfg.Adapters.TCPFS.Port != 7070 {
		t.Errorf("Expected default tcpfs port 7070, got %d", cfg.Adapters.TCPFS.Port)
	}
	if cfg.Metadata.Type != "sqlite" {
		t.Errorf("Expected default metadata type 'sqlite', got %q", cfg.Metadata.Type)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A path that does not exist so the user's own config is never read
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
	if !cfg.Adapters.TCPFS.Enabled {
		t.Error("Expected tcpfs adapter enabled without a config file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[content]
type = "memory"

[adapters.tcpfs]
enabled = true
port = 7171
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Content.Type != "memory" {
		t.Errorf("Expected content type 'memory', got %q", cfg.Content.Type)
	}
	if cfg.Adapters.TCPFS.Port != 7171 {
		t.Errorf("Expected port 7171, got %d", cfg.Adapters.TCPFS.Port)
	}
}

func TestLoad_HumanizedSizesAndDurations(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
gc:
  interval: 15m
  grace_period: 2h
adapters:
  tcpfs:
    enabled: true
    read_timeout: 45s
    max_object_size: 512MiB
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Adapters.TCPFS.MaxObjectSize != 512<<20 {
		t.Errorf("Expected max_object_size 512MiB, got %d", cfg.Adapters.TCPFS.MaxObjectSize)
	}
	if cfg.Adapters.TCPFS.ReadTimeout != 45*time.Second {
		t.Errorf("Expected read_timeout 45s, got %v", cfg.Adapters.TCPFS.ReadTimeout)
	}
	if cfg.GC.Interval != 15*time.Minute {
		t.Errorf("Expected gc interval 15m, got %v", cfg.GC.Interval)
	}
	if cfg.GC.GracePeriod != 2*time.Hour {
		t.Errorf("Expected gc grace_period 2h, got %v", cfg.GC.GracePeriod)
	}
}

func TestLoad_ExplicitFalseIsPreserved(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  implicit_namespaces: false
gc:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.ImplicitNamespacesEnabled() {
		t.Error("Expected implicit_namespaces false to be preserved")
	}
	if cfg.GC.IsEnabled() {
		t.Error("Expected gc.enabled false to be preserved")
	}
}

func TestLoad_OversizedObjectLimit(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
adapters:
  tcpfs:
    enabled: true
    max_object_size: 8GiB
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for max_object_size above the wire limit")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
	if cfg.Metadata.Type != "sqlite" {
		t.Errorf("Expected default metadata type 'sqlite', got %q", cfg.Metadata.Type)
	}
	if !cfg.GC.IsEnabled() {
		t.Error("Expected gc enabled by default")
	}
	if !cfg.Adapters.TCPFS.Enabled {
		t.Error("Expected tcpfs adapter enabled by default")
	}
	if cfg.Adapters.TCPFS.Port != 7070 {
		t.Errorf("Expected default tcpfs port 7070, got %d", cfg.Adapters.TCPFS.Port)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "tcpfs" {
		t.Errorf("Expected directory name 'tcpfs', got %q", filepath.Base(dir))
	}
}

func TestGetDataDir_XDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)

	if got := GetDataDir(); got != filepath.Join(xdg, "tcpfs") {
		t.Errorf("Expected data dir under XDG_DATA_HOME, got %q", got)
	}

	cfg := GetDefaultConfig()
	if got := cfg.Metadata.SQLite["path"]; got != filepath.Join(xdg, "tcpfs", "meta.db") {
		t.Errorf("Expected sqlite path in data dir, got %v", got)
	}
	if got := cfg.Content.Filesystem["path"]; got != filepath.Join(xdg, "tcpfs", "objects") {
		t.Errorf("Expected objects path in data dir, got %v", got)
	}
}

func TestConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if ConfigExists() {
		t.Fatal("Expected no config in a fresh XDG_CONFIG_HOME")
	}
	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !ConfigExists() {
		t.Fatal("Expected config to exist after InitConfig")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("TCPFS_LOGGING_LEVEL", "ERROR")
	t.Setenv("TCPFS_ADAPTERS_TCPFS_PORT", "7171")
	t.Setenv("TCPFS_SERVER_IMPLICIT_NAMESPACES", "false")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

adapters:
  tcpfs:
    enabled: true
    port: 7070
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.TCPFS.Port != 7171 {
		t.Errorf("Expected port 7171 from env var, got %d", cfg.Adapters.TCPFS.Port)
	}
	if cfg.Server.ImplicitNamespacesEnabled() {
		t.Error("Expected implicit namespaces disabled from env var")
	}
}
