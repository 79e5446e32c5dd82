package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/store/content"
)

// Open returns the file at location. The caller must close it.
func (s *FSContentStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.fullPath(location)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%s: %w", location, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", location, err)
	}
	return f, nil
}

// Delete unlinks the file at location and prunes the directories left empty,
// walking up towards the storage root.
func (s *FSContentStore) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.fullPath(location)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", location, err)
	}

	s.prune(filepath.Dir(full))
	return nil
}

// prune removes dir and its ancestors while they are empty, stopping at the
// storage root. os.Remove refuses non-empty directories, so a concurrent
// Put that already created its temp file keeps its directory.
func (s *FSContentStore) prune(dir string) {
	for dir != s.basePath && len(dir) > len(s.basePath) {
		err := os.Remove(dir)
		if err != nil {
			if !isNotExist(err) && !isNotEmpty(err) {
				logger.Debug("Stopped pruning at %s: %v", dir, err)
			}
			if !isNotExist(err) {
				return
			}
		}
		dir = filepath.Dir(dir)
	}
}

// isNotEmpty reports whether err is ENOTEMPTY (or EEXIST, which some
// platforms return for the same condition).
func isNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}
