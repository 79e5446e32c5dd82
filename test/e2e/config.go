package e2e

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/marmos91/tcpfs/pkg/config"
	"github.com/marmos91/tcpfs/pkg/store/content"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// MetadataStoreType represents the type of metadata store
type MetadataStoreType string

const (
	MetadataSQLite MetadataStoreType = "sqlite"
	MetadataBadger MetadataStoreType = "badger"
)

// ContentStoreType represents the type of content store
type ContentStoreType string

const (
	ContentMemory     ContentStoreType = "memory"
	ContentFilesystem ContentStoreType = "filesystem"
	ContentS3         ContentStoreType = "s3"
)

// TestContextProvider is an interface for providing test context dependencies
type TestContextProvider interface {
	CreateTempDir(prefix string) string
	GetConfig() *TestConfig
}

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name          string
	MetadataStore MetadataStoreType
	ContentStore  ContentStoreType

	// ImplicitNamespaces lets UPLOAD create unknown namespaces
	ImplicitNamespaces bool

	// S3-specific fields (set by localstack setup)
	s3Endpoint string
	s3Bucket   string
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/%s", tc.MetadataStore, tc.ContentStore)
}

// CreateMetadataStore builds the index through the same factory the server
// uses, from the option map a config file would carry.
func (tc *TestConfig) CreateMetadataStore(ctx context.Context, testCtx TestContextProvider) (metadata.Index, error) {
	cfg := &config.MetadataConfig{Type: string(tc.MetadataStore)}

	switch tc.MetadataStore {
	case MetadataSQLite:
		cfg.SQLite = map[string]any{
			"path": filepath.Join(testCtx.CreateTempDir("tcpfs-sqlite-*"), "meta.db"),
		}
	case MetadataBadger:
		cfg.Badger = map[string]any{
			"path": filepath.Join(testCtx.CreateTempDir("tcpfs-badger-*"), "meta.badger"),
		}
	default:
		return nil, fmt.Errorf("unknown metadata store type: %s", tc.MetadataStore)
	}

	return config.CreateMetadataStore(ctx, cfg)
}

// CreateContentStore builds the content store through the server's factory.
func (tc *TestConfig) CreateContentStore(ctx context.Context, testCtx TestContextProvider) (content.ContentStore, error) {
	cfg := &config.ContentConfig{Type: string(tc.ContentStore)}

	switch tc.ContentStore {
	case ContentMemory:
		cfg.Memory = map[string]any{}

	case ContentFilesystem:
		cfg.Filesystem = map[string]any{
			"path":    testCtx.CreateTempDir("tcpfs-content-*"),
			"no_sync": true,
		}

	case ContentS3:
		// S3 requires localstack setup
		config := testCtx.GetConfig()
		if config.s3Bucket == "" {
			return nil, fmt.Errorf("S3 bucket not initialized (localstack not running?)")
		}
		cfg.S3 = map[string]any{
			"bucket":            config.s3Bucket,
			"key_prefix":        "test/",
			"region":            "us-east-1",
			"endpoint":          config.s3Endpoint,
			"access_key_id":     "test",
			"secret_access_key": "test",
			"force_path_style":  true,
			"spool_dir":         testCtx.CreateTempDir("tcpfs-spool-*"),
		}

	default:
		return nil, fmt.Errorf("unknown content store type: %s", tc.ContentStore)
	}

	return config.CreateContentStore(ctx, cfg)
}

// AllConfigurations returns all test configurations to run
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{
			Name:               "sqlite-filesystem",
			MetadataStore:      MetadataSQLite,
			ContentStore:       ContentFilesystem,
			ImplicitNamespaces: true,
		},
		{
			Name:               "sqlite-memory",
			MetadataStore:      MetadataSQLite,
			ContentStore:       ContentMemory,
			ImplicitNamespaces: true,
		},
		{
			Name:               "badger-filesystem",
			MetadataStore:      MetadataBadger,
			ContentStore:       ContentFilesystem,
			ImplicitNamespaces: true,
		},
		{
			Name:               "badger-memory",
			MetadataStore:      MetadataBadger,
			ContentStore:       ContentMemory,
			ImplicitNamespaces: true,
		},
	}
}

// S3Configurations returns configurations that use S3 (requires localstack)
func S3Configurations() []*TestConfig {
	return []*TestConfig{
		{
			Name:               "sqlite-s3",
			MetadataStore:      MetadataSQLite,
			ContentStore:       ContentS3,
			ImplicitNamespaces: true,
		},
		{
			Name:               "badger-s3",
			MetadataStore:      MetadataBadger,
			ContentStore:       ContentS3,
			ImplicitNamespaces: true,
		},
	}
}

// GetConfiguration returns a specific configuration by name
func GetConfiguration(name string) *TestConfig {
	for _, config := range AllConfigurations() {
		if config.Name == name {
			return config
		}
	}

	for _, config := range S3Configurations() {
		if config.Name == name {
			return config
		}
	}

	return nil
}
