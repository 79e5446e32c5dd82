package sqlite

import (
	"context"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// listChildrenQuery selects the direct children of a prefix (?2) and
// classifies each one by probing for descendants.
//
// The descendant probe is a range scan on the (namespace_id, path) unique
// index: every key below "p/" sorts in ["p/", "p0") because '0' is the byte
// following '/'.
const listChildrenQuery = `
SELECT o.path, o.size,
       EXISTS (
         SELECT 1 FROM objects d
          WHERE d.namespace_id = o.namespace_id
            AND d.path >= o.path || '/'
            AND d.path <  o.path || '0'
       ) AS is_dir
  FROM objects o
 WHERE o.namespace_id = ?1
   AND substr(o.path, 1, length(?2)) = ?2
   AND length(o.path) > length(?2)
   AND instr(substr(o.path, length(?2) + 1), '/') = 0
 ORDER BY o.path`

// ListChildren returns the direct children of prefix.
//
// The namespace existence check and the listing run in one read transaction
// so the result reflects a single committed state.
func (s *SQLiteMetadataStore) ListChildren(ctx context.Context, namespace uuid.UUID, prefix string) ([]metadata.Entry, error) {
	if err := metadata.ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	prefix = metadata.NormalizePrefix(prefix)

	entries := make([]metadata.Entry, 0)
	err := s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Transaction(conn)(&err)

		if _, err = getNamespace(conn, namespace); err != nil {
			return err
		}

		err = sqlitex.Execute(conn, listChildrenQuery, &sqlitex.ExecOptions{
			Args: []any{namespace.String(), prefix},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				path := stmt.ColumnText(0)
				name, ok := metadata.ChildName(prefix, path)
				if !ok {
					// unreachable while the SQL filter matches ChildName
					return nil
				}
				entries = append(entries, metadata.Entry{
					Name:  name,
					Path:  path,
					Size:  uint64(stmt.ColumnInt64(1)),
					IsDir: stmt.ColumnInt64(2) != 0,
				})
				return nil
			},
		})
		if err != nil {
			return metadata.NewIndexError("list children", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
