package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// maxCreateAttempts bounds retries on the (practically impossible) event of a
// random UUID colliding with an existing namespace.
const maxCreateAttempts = 3

// CreateNamespace inserts a namespace row with a fresh random UUID.
func (s *SQLiteMetadataStore) CreateNamespace(ctx context.Context) (*metadata.Namespace, error) {
	var ns *metadata.Namespace
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		for attempt := 0; attempt < maxCreateAttempts; attempt++ {
			candidate := &metadata.Namespace{
				ID:        uuid.New(),
				CreatedAt: time.Now(),
			}
			err := sqlitex.Execute(conn,
				"INSERT INTO namespaces (id, created_at) VALUES (?, ?)",
				&sqlitex.ExecOptions{Args: []any{candidate.ID.String(), candidate.CreatedAt.UnixNano()}})
			if err == nil {
				ns = candidate
				return nil
			}
			if sqlite.ErrCode(err) != sqlite.ResultConstraintPrimaryKey {
				return metadata.NewIndexError("create namespace", err)
			}
		}
		return &metadata.StoreError{
			Code:    metadata.ErrConflict,
			Message: "could not allocate a unique namespace id",
		}
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// GetNamespace returns the namespace row.
func (s *SQLiteMetadataStore) GetNamespace(ctx context.Context, id uuid.UUID) (*metadata.Namespace, error) {
	var ns *metadata.Namespace
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		ns, err = getNamespace(conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// DeleteNamespace deletes the namespace row; the foreign key cascade removes
// its objects. The deleted objects are collected first, in the same
// transaction, so the caller can release their locations.
func (s *SQLiteMetadataStore) DeleteNamespace(ctx context.Context, id uuid.UUID) (*metadata.NamespaceDeletion, error) {
	var deletion *metadata.NamespaceDeletion
	err := s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return metadata.NewIndexError("begin transaction", err)
		}
		defer endFn(&err)

		ns, err := getNamespace(conn, id)
		if err != nil {
			return err
		}

		objects := make([]metadata.Object, 0)
		err = sqlitex.Execute(conn,
			`SELECT id, path, location, size, checksum, created_at
			   FROM objects WHERE namespace_id = ? ORDER BY path`,
			&sqlitex.ExecOptions{
				Args: []any{id.String()},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					objects = append(objects, scanObject(stmt, id))
					return nil
				},
			})
		if err != nil {
			return metadata.NewIndexError("collect namespace objects", err)
		}

		err = sqlitex.Execute(conn, "DELETE FROM namespaces WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{id.String()}})
		if err != nil {
			return metadata.NewIndexError("delete namespace", err)
		}

		deletion = &metadata.NamespaceDeletion{
			Namespace: *ns,
			Objects:   objects,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deletion, nil
}

// getNamespace loads a namespace row on an already borrowed connection.
func getNamespace(conn *sqlite.Conn, id uuid.UUID) (*metadata.Namespace, error) {
	var ns *metadata.Namespace
	err := sqlitex.Execute(conn,
		"SELECT total_size, created_at FROM namespaces WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ns = &metadata.Namespace{
					ID:        id,
					TotalSize: uint64(stmt.ColumnInt64(0)),
					CreatedAt: time.Unix(0, stmt.ColumnInt64(1)),
				}
				return nil
			},
		})
	if err != nil {
		return nil, metadata.NewIndexError("get namespace", err)
	}
	if ns == nil {
		return nil, metadata.NewNotFoundError("namespace", id.String())
	}
	return ns, nil
}
