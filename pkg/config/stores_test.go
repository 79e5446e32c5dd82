package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/tcpfs/pkg/store/content"
)

func TestCreateContentStore_Filesystem(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type: "filesystem",
		Filesystem: map[string]any{
			"path":     t.TempDir(),
			"no_sync":  true,
			"dir_mode": "0750",
		},
	}

	store, err := CreateContentStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create filesystem content store: %v", err)
	}
	defer store.Close()

	if _, ok := store.(content.GarbageCollectableStore); !ok {
		t.Error("Expected filesystem store to support garbage collection")
	}
}

func TestCreateContentStore_FilesystemMissingPath(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{},
	}

	_, err := CreateContentStore(ctx, cfg)
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
	if !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected 'path is required' error, got: %v", err)
	}
}

func TestCreateContentStore_UnknownOption(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type: "filesystem",
		Filesystem: map[string]any{
			"path":  t.TempDir(),
			"pathh": "typo",
		},
	}

	if _, err := CreateContentStore(ctx, cfg); err == nil {
		t.Fatal("Expected error for unknown option")
	}
}

func TestCreateContentStore_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type:   "memory",
		Memory: map[string]any{},
	}

	store, err := CreateContentStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create memory content store: %v", err)
	}
	if err := store.Healthcheck(ctx); err != nil {
		t.Errorf("Expected healthy memory store, got: %v", err)
	}
}

func TestCreateContentStore_S3MissingBucket(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type: "s3",
		S3: map[string]any{
			"region": "us-east-1",
		},
	}

	_, err := CreateContentStore(ctx, cfg)
	if err == nil {
		t.Fatal("Expected error for missing bucket")
	}
	if !strings.Contains(err.Error(), "bucket is required") {
		t.Errorf("Expected 'bucket is required' error, got: %v", err)
	}
}

func TestCreateContentStore_S3MissingRegion(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type: "s3",
		S3: map[string]any{
			"bucket": "objects",
		},
	}

	_, err := CreateContentStore(ctx, cfg)
	if err == nil {
		t.Fatal("Expected error for missing region")
	}
	if !strings.Contains(err.Error(), "region is required") {
		t.Errorf("Expected 'region is required' error, got: %v", err)
	}
}

func TestCreateContentStore_UnknownType(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{Type: "tape"}

	_, err := CreateContentStore(ctx, cfg)
	if err == nil {
		t.Fatal("Expected error for unknown content store type")
	}
	if !strings.Contains(err.Error(), "unknown content store type") {
		t.Errorf("Expected 'unknown content store type' error, got: %v", err)
	}
}

func TestCreateMetadataStore_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &MetadataConfig{
		Type: "sqlite",
		SQLite: map[string]any{
			"path":         filepath.Join(t.TempDir(), "meta.db"),
			"busy_timeout": "2s",
			"pool_size":    "2",
		},
	}

	store, err := CreateMetadataStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create sqlite metadata store: %v", err)
	}
	defer store.Close()

	if err := store.Healthcheck(ctx); err != nil {
		t.Errorf("Expected healthy sqlite store, got: %v", err)
	}
}

func TestCreateMetadataStore_Badger(t *testing.T) {
	ctx := context.Background()
	cfg := &MetadataConfig{
		Type: "badger",
		Badger: map[string]any{
			"path": filepath.Join(t.TempDir(), "meta.badger"),
		},
	}

	store, err := CreateMetadataStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create badger metadata store: %v", err)
	}
	defer store.Close()

	if err := store.Healthcheck(ctx); err != nil {
		t.Errorf("Expected healthy badger store, got: %v", err)
	}
}

func TestCreateMetadataStore_MissingPath(t *testing.T) {
	ctx := context.Background()

	for _, typ := range []string{"sqlite", "badger"} {
		t.Run(typ, func(t *testing.T) {
			cfg := &MetadataConfig{Type: typ}
			_, err := CreateMetadataStore(ctx, cfg)
			if err == nil {
				t.Fatal("Expected error for missing path")
			}
			if !strings.Contains(err.Error(), "path is required") {
				t.Errorf("Expected 'path is required' error, got: %v", err)
			}
		})
	}
}

func TestCreateMetadataStore_UnknownType(t *testing.T) {
	ctx := context.Background()
	cfg := &MetadataConfig{Type: "postgres"}

	_, err := CreateMetadataStore(ctx, cfg)
	if err == nil {
		t.Fatal("Expected error for unknown metadata store type")
	}
	if !strings.Contains(err.Error(), "unknown metadata store type") {
		t.Errorf("Expected 'unknown metadata store type' error, got: %v", err)
	}
}

func TestCreateAdapters(t *testing.T) {
	cfg := GetDefaultConfig()

	adapters, err := CreateAdapters(cfg, nil)
	if err != nil {
		t.Fatalf("CreateAdapters failed: %v", err)
	}
	if len(adapters) != 1 {
		t.Fatalf("Expected 1 adapter, got %d", len(adapters))
	}
	if adapters[0].Protocol() != "tcpfs" {
		t.Errorf("Expected tcpfs adapter, got %s", adapters[0].Protocol())
	}

	cfg.Adapters.TCPFS.Enabled = false
	if _, err := CreateAdapters(cfg, nil); err == nil {
		t.Error("Expected error with no adapters enabled")
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()

	result := InitializeMetrics(cfg)
	if result.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if result.TCPFSMetrics == nil || result.ObjectStoreMetrics == nil || result.GCMetrics == nil {
		t.Error("Expected no-op collectors when disabled")
	}
}
