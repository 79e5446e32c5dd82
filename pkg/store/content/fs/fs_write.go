package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/store/content"
)

// Put streams exactly size bytes from r to a new location.
//
// Sequence:
//  1. Pick a location from the clock; skip it if something already exists
//     there (a previous process with a clock ahead of ours).
//  2. Create the destination directory and a temp file inside it.
//  3. Copy and hash the bytes, fsync, rename onto the final name, fsync the
//     directory.
//
// On any failure the temp file is removed and no location is returned.
func (s *FSContentStore) Put(ctx context.Context, namespace uuid.UUID, r io.Reader, size uint64) (*content.Placement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
		location := content.NewLocation(namespace, s.clock.Next())
		final, err := s.fullPath(location)
		if err != nil {
			return nil, err
		}

		if _, err := os.Lstat(final); err == nil {
			logger.Debug("Content location taken, picking another: %s", location)
			continue
		} else if !isNotExist(err) {
			return nil, fmt.Errorf("failed to check location %s: %w", location, err)
		}

		checksum, err := s.place(ctx, final, r, size)
		if err != nil {
			return nil, err
		}

		return &content.Placement{
			Location: location,
			Size:     size,
			Checksum: checksum,
		}, nil
	}

	return nil, content.ErrLocationsExhausted
}

// place writes the bytes to a temp file in final's directory and renames it.
func (s *FSContentStore) place(ctx context.Context, final string, r io.Reader, size uint64) (checksum string, err error) {
	dir := filepath.Dir(final)

	tmp, err := s.createTemp(dir)
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			if rmErr := os.Remove(tmpName); rmErr != nil && !isNotExist(rmErr) {
				logger.Warn("Failed to remove temp file %s: %v", tmpName, rmErr)
			}
			s.prune(dir)
		}
	}()

	checksum, err = content.CopyExact(ctx, tmp, r, size)
	if err != nil {
		return "", err
	}

	if !s.noSync {
		if err = tmp.Sync(); err != nil {
			return "", fmt.Errorf("failed to sync %s: %w", tmpName, err)
		}
	}
	if err = tmp.Chmod(s.fileMode); err != nil {
		return "", fmt.Errorf("failed to set mode on %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err = os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("failed to place content at %s: %w", final, err)
	}

	if !s.noSync {
		if syncErr := syncDir(dir); syncErr != nil {
			logger.Warn("Failed to sync directory %s: %v", dir, syncErr)
		}
	}
	return checksum, nil
}

// createTemp creates the destination directory and a temp file in it.
//
// Delete prunes empty directories, so the directory can vanish between
// MkdirAll and CreateTemp; that case is retried.
func (s *FSContentStore) createTemp(dir string) (*os.File, error) {
	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if err := os.MkdirAll(dir, s.dirMode); err != nil {
			lastErr = err
			if isNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		f, err := os.CreateTemp(dir, content.TempPattern)
		if err == nil {
			return f, nil
		}
		lastErr = err
		if !isNotExist(err) {
			return nil, fmt.Errorf("failed to create temp file in %s: %w", dir, err)
		}
	}
	return nil, fmt.Errorf("failed to create temp file in %s: %w", dir, lastErr)
}
