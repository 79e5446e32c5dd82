package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/tcpfs/pkg/adapter/tcpfs"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.ImplicitNamespaces == nil || !*cfg.Server.ImplicitNamespaces {
		t.Error("Expected implicit_namespaces to default to true")
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Server.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Server.Metrics.Port)
	}
}

func TestApplyDefaults_Content(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
	if cfg.Content.Filesystem == nil {
		t.Fatal("Expected Filesystem map to be initialized")
	}
	want := filepath.Join("/data", "tcpfs", "objects")
	if path, ok := cfg.Content.Filesystem["path"]; !ok || path != want {
		t.Errorf("Expected default filesystem path %q, got %v", want, path)
	}
	if cfg.Content.S3 == nil || cfg.Content.Memory == nil {
		t.Error("Expected S3 and Memory maps to be initialized")
	}
}

func TestApplyDefaults_Metadata(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metadata.Type != "sqlite" {
		t.Errorf("Expected default metadata type 'sqlite', got %q", cfg.Metadata.Type)
	}
	want := filepath.Join("/data", "tcpfs", "meta.db")
	if path := cfg.Metadata.SQLite["path"]; path != want {
		t.Errorf("Expected default sqlite path %q, got %v", want, path)
	}
	if _, ok := cfg.Metadata.Badger["path"]; !ok {
		t.Error("Expected badger path default for config generation")
	}
}

func TestApplyDefaults_GC(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if !cfg.GC.IsEnabled() {
		t.Error("Expected gc enabled by default")
	}
	if cfg.GC.Interval != time.Hour {
		t.Errorf("Expected default interval 1h, got %v", cfg.GC.Interval)
	}
	if cfg.GC.GracePeriod != time.Hour {
		t.Errorf("Expected default grace period 1h, got %v", cfg.GC.GracePeriod)
	}
	if cfg.GC.BatchSize != 1000 {
		t.Errorf("Expected default batch size 1000, got %d", cfg.GC.BatchSize)
	}
	if cfg.GC.RunTimeout != 10*time.Minute {
		t.Errorf("Expected default run timeout 10m, got %v", cfg.GC.RunTimeout)
	}
}

func TestApplyDefaults_TCPFS(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	tcp := cfg.Adapters.TCPFS
	if !tcp.Enabled {
		t.Error("Expected tcpfs adapter enabled when unconfigured")
	}
	if tcp.Port != tcpfs.DefaultPort {
		t.Errorf("Expected default port %d, got %d", tcpfs.DefaultPort, tcp.Port)
	}
	if tcp.MaxConnections != 0 {
		t.Errorf("Expected unlimited connections by default, got %d", tcp.MaxConnections)
	}
	if tcp.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default read timeout 30s, got %v", tcp.ReadTimeout)
	}
	if tcp.WriteTimeout != 30*time.Second {
		t.Errorf("Expected default write timeout 30s, got %v", tcp.WriteTimeout)
	}
	if tcp.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", tcp.ShutdownTimeout)
	}
	if tcp.MaxPathLength != 4096 {
		t.Errorf("Expected default max path length 4096, got %d", tcp.MaxPathLength)
	}
	if tcp.MaxObjectSize != 1<<30 {
		t.Errorf("Expected default max object size 1GiB, got %d", tcp.MaxObjectSize)
	}
	if tcp.MetricsLogInterval != 5*time.Minute {
		t.Errorf("Expected default metrics log interval 5m, got %v", tcp.MetricsLogInterval)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/tcpfs.log",
		},
		Server: ServerConfig{
			ShutdownTimeout:    60 * time.Second,
			ImplicitNamespaces: boolPtr(false),
		},
		Content: ContentConfig{
			Type: "memory",
			Filesystem: map[string]any{
				"path": "/custom/path",
			},
		},
		Metadata: MetadataConfig{
			Type: "badger",
		},
		GC: GCConfig{
			Enabled:     boolPtr(false),
			GracePeriod: 3 * time.Hour,
		},
		Adapters: AdaptersConfig{
			TCPFS: tcpfs.TCPFSConfig{
				Enabled: true,
				Port:    9000,
			},
		},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/tcpfs.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.ImplicitNamespacesEnabled() {
		t.Error("Expected explicit implicit_namespaces false to be preserved")
	}
	if cfg.Content.Type != "memory" {
		t.Errorf("Expected explicit content type 'memory' to be preserved, got %q", cfg.Content.Type)
	}
	if cfg.Content.Filesystem["path"] != "/custom/path" {
		t.Errorf("Expected explicit filesystem path to be preserved, got %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Metadata.Type != "badger" {
		t.Errorf("Expected explicit metadata type 'badger' to be preserved, got %q", cfg.Metadata.Type)
	}
	if cfg.GC.IsEnabled() {
		t.Error("Expected explicit gc.enabled false to be preserved")
	}
	if cfg.GC.GracePeriod != 3*time.Hour {
		t.Errorf("Expected explicit grace period 3h to be preserved, got %v", cfg.GC.GracePeriod)
	}
	if cfg.Adapters.TCPFS.Port != 9000 {
		t.Errorf("Expected explicit port 9000 to be preserved, got %d", cfg.Adapters.TCPFS.Port)
	}
}

func TestApplyDefaults_TCPFSDisabled(t *testing.T) {
	cfg := &Config{
		Adapters: AdaptersConfig{
			TCPFS: tcpfs.TCPFSConfig{
				Enabled: false,
				Port:    7070,
			},
		},
	}

	ApplyDefaults(cfg)

	if cfg.Adapters.TCPFS.Enabled {
		t.Error("Expected explicitly configured adapter to stay disabled")
	}
}

func TestApplyDefaults_EphemeralAddress(t *testing.T) {
	cfg := &Config{
		Adapters: AdaptersConfig{
			TCPFS: tcpfs.TCPFSConfig{
				Enabled: true,
				Address: "127.0.0.1",
			},
		},
	}

	ApplyDefaults(cfg)

	if cfg.Adapters.TCPFS.Port != 0 {
		t.Errorf("Expected port 0 to be kept with an explicit address, got %d", cfg.Adapters.TCPFS.Port)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}
