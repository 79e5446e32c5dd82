package config

import (
	"context"
	"fmt"

	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/store/content"
	contentfs "github.com/marmos91/tcpfs/pkg/store/content/fs"
	contentmemory "github.com/marmos91/tcpfs/pkg/store/content/memory"
	"github.com/marmos91/tcpfs/pkg/store/content/s3"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"github.com/marmos91/tcpfs/pkg/store/metadata/badger"
	"github.com/marmos91/tcpfs/pkg/store/metadata/sqlite"
	"github.com/mitchellh/mapstructure"
)

// s3YAMLConfig represents S3 configuration loaded from YAML files.
type s3YAMLConfig struct {
	s3.ClientConfig `mapstructure:",squash"`

	Bucket    string `mapstructure:"bucket"`
	KeyPrefix string `mapstructure:"key_prefix"`
	SpoolDir  string `mapstructure:"spool_dir"`
}

// decodeOptions decodes a store-specific options map into out. Unknown keys
// are rejected so typos surface at startup.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// CreateMetadataStore creates the metadata index selected by cfg.Type.
//
// Supported types:
//   - "sqlite": pkg/store/metadata/sqlite (single file, WAL mode)
//   - "badger": pkg/store/metadata/badger (BadgerDB directory)
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Index, error) {
	switch cfg.Type {
	case "sqlite":
		return createSQLiteMetadataStore(ctx, cfg.SQLite)
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: sqlite, badger)", cfg.Type)
	}
}

// createSQLiteMetadataStore creates a SQLite metadata index.
func createSQLiteMetadataStore(ctx context.Context, options map[string]any) (metadata.Index, error) {
	var sqliteCfg sqlite.SQLiteMetadataStoreConfig
	if err := decodeOptions(options, &sqliteCfg); err != nil {
		return nil, fmt.Errorf("invalid sqlite config: %w", err)
	}

	if sqliteCfg.Path == "" {
		return nil, fmt.Errorf("sqlite metadata store: path is required")
	}

	store, err := sqlite.NewSQLiteMetadataStore(ctx, sqliteCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	logger.Info("SQLite metadata store initialized: path=%s", sqliteCfg.Path)
	return store, nil
}

// createBadgerMetadataStore creates a BadgerDB metadata index.
func createBadgerMetadataStore(ctx context.Context, options map[string]any) (metadata.Index, error) {
	var badgerCfg badger.BadgerMetadataStoreConfig
	if err := decodeOptions(options, &badgerCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	if badgerCfg.DBPath == "" && !badgerCfg.InMemory {
		return nil, fmt.Errorf("badger metadata store: path is required")
	}

	store, err := badger.NewBadgerMetadataStore(ctx, badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Info("BadgerDB metadata store initialized: path=%s in_memory=%v", badgerCfg.DBPath, badgerCfg.InMemory)
	return store, nil
}

// CreateContentStore creates the content store selected by cfg.Type.
//
// Supported types:
//   - "filesystem": pkg/store/content/fs (local filesystem storage)
//   - "s3": pkg/store/content/s3 (Amazon S3 or compatible storage)
//   - "memory": pkg/store/content/memory (ephemeral, for tests and demos)
func CreateContentStore(ctx context.Context, cfg *ContentConfig) (content.ContentStore, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "s3":
		return createS3ContentStore(ctx, cfg.S3)
	case "memory":
		return createMemoryContentStore(ctx, cfg.Memory)
	default:
		return nil, fmt.Errorf("unknown content store type: %q (supported: filesystem, s3, memory)", cfg.Type)
	}
}

// createFilesystemContentStore creates a filesystem-backed content store.
func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	var fsCfg contentfs.FSContentStoreConfig
	if err := decodeOptions(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("invalid filesystem config: %w", err)
	}

	if fsCfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	store, err := contentfs.NewFSContentStore(ctx, fsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize filesystem store: %w", err)
	}

	logger.Info("Filesystem content store initialized: path=%s", fsCfg.Path)
	return store, nil
}

// createMemoryContentStore creates an in-memory content store.
func createMemoryContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(options) > 0 {
		return nil, fmt.Errorf("invalid memory config: memory content store takes no options")
	}

	logger.Warn("Memory content store selected: objects are lost on restart")
	return contentmemory.NewMemoryContentStore(), nil
}

// createS3ContentStore creates an S3-backed content store.
func createS3ContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	var yamlCfg s3YAMLConfig
	if err := decodeOptions(options, &yamlCfg); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}

	if yamlCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if yamlCfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	client, err := s3.NewClient(ctx, yamlCfg.ClientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	store, err := s3.NewS3ContentStore(ctx, s3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    yamlCfg.Bucket,
		KeyPrefix: yamlCfg.KeyPrefix,
		SpoolDir:  yamlCfg.SpoolDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		yamlCfg.Bucket, yamlCfg.Region, yamlCfg.KeyPrefix)
	return store, nil
}
