package fs

import (
	"context"
	"fmt"
	iofs "io/fs"
	"path/filepath"

	"github.com/marmos91/tcpfs/pkg/store/content"
)

// Walk reports every regular file below the storage root, including
// abandoned temp files, which are never referenced by the index.
func (s *FSContentStore) Walk(ctx context.Context, fn func(content.Item) error) error {
	processed := 0
	return filepath.WalkDir(s.basePath, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			// A directory pruned mid-walk is not an error.
			if isNotExist(err) {
				return nil
			}
			return err
		}

		processed++
		if processed%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if isNotExist(err) {
				return nil
			}
			return err
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}

		return fn(content.Item{
			Location: filepath.ToSlash(rel),
			Size:     uint64(info.Size()),
			ModTime:  info.ModTime(),
		})
	})
}

// DeleteBatch deletes each location in turn.
func (s *FSContentStore) DeleteBatch(ctx context.Context, locations []string) (map[string]error, error) {
	failures := make(map[string]error)
	for i, location := range locations {
		if err := ctx.Err(); err != nil {
			for _, rest := range locations[i:] {
				failures[rest] = err
			}
			return failures, err
		}
		if err := s.Delete(ctx, location); err != nil {
			failures[location] = err
		}
	}
	return failures, nil
}
