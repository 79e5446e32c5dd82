// Package fs implements the content store on the local filesystem.
//
// Every upload is placed at a fresh time-derived location below the base
// path (see content.NewLocation). Bytes are streamed into a temp file next to
// the destination, fsynced, and renamed into place, so a location either
// holds the complete object or does not exist.
package fs

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/marmos91/tcpfs/pkg/store/content"
)

const (
	// maxPlacementAttempts bounds the search for a free location.
	maxPlacementAttempts = 8

	// maxCreateAttempts bounds retries when a concurrent prune removes the
	// destination directory between MkdirAll and CreateTemp.
	maxCreateAttempts = 5
)

// FSContentStore implements content.GarbageCollectableStore on a directory
// tree.
//
// Thread Safety:
// Safe for concurrent use. Locations come from a per-store monotonic clock,
// so concurrent Puts write to distinct directories.
type FSContentStore struct {
	basePath string
	clock    *content.Clock
	noSync   bool
	dirMode  os.FileMode
	fileMode os.FileMode
}

// FSContentStoreConfig contains configuration for the filesystem content store.
type FSContentStoreConfig struct {
	// Path is the storage root. Created if missing.
	Path string `mapstructure:"path"`

	// NoSync skips fsync of files and directories. Only for tests and
	// throwaway deployments.
	NoSync bool `mapstructure:"no_sync"`

	// DirMode is the permission of created directories (default 0755).
	DirMode os.FileMode `mapstructure:"dir_mode"`

	// FileMode is the permission of placed files (default 0644).
	FileMode os.FileMode `mapstructure:"file_mode"`

	// Clock overrides the location clock. Used by tests.
	Clock *content.Clock `mapstructure:"-"`
}

// NewFSContentStore creates the storage root if needed and returns the store.
func NewFSContentStore(ctx context.Context, config FSContentStoreConfig) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	if config.DirMode == 0 {
		config.DirMode = 0755
	}
	if config.FileMode == 0 {
		config.FileMode = 0644
	}
	if config.Clock == nil {
		config.Clock = content.NewClock()
	}

	basePath, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	if err := os.MkdirAll(basePath, config.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{
		basePath: basePath,
		clock:    config.Clock,
		noSync:   config.NoSync,
		dirMode:  config.DirMode,
		fileMode: config.FileMode,
	}, nil
}

// BasePath returns the absolute storage root.
func (s *FSContentStore) BasePath() string {
	return s.basePath
}

// fullPath maps a location to its absolute filesystem path.
func (s *FSContentStore) fullPath(location string) (string, error) {
	if err := content.ValidateLocation(location); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(location)), nil
}

// Healthcheck verifies the storage root is an accessible directory.
func (s *FSContentStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("content root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("content root %s is not a directory", s.basePath)
	}
	return nil
}

// Close is a no-op; the store holds no open descriptors between calls.
func (s *FSContentStore) Close() error {
	return nil
}

// syncDir fsyncs a directory so a rename or unlink inside it is durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// isNotExist reports whether err is a missing-file error.
func isNotExist(err error) bool {
	return errors.Is(err, iofs.ErrNotExist)
}

// Compile-time interface check
var _ content.GarbageCollectableStore = (*FSContentStore)(nil)
