package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// objectColumns is the column list understood by scanObject.
const objectColumns = "id, path, location, size, checksum, created_at"

// PutObject inserts or replaces the object row in one IMMEDIATE transaction.
//
// The size accounting is done by the insert/update triggers; the previous
// row (if any) is read first so its location can be released by the caller.
func (s *SQLiteMetadataStore) PutObject(ctx context.Context, obj *metadata.Object, opts metadata.PutOptions) (*metadata.Object, error) {
	if err := metadata.ValidatePath(obj.Path); err != nil {
		return nil, err
	}
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now()
	}

	var replaced *metadata.Object
	err := s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return metadata.NewIndexError("begin transaction", err)
		}
		defer endFn(&err)

		nsID := obj.Namespace.String()
		if opts.CreateNamespace {
			err = sqlitex.Execute(conn,
				"INSERT INTO namespaces (id, created_at) VALUES (?, ?) ON CONFLICT (id) DO NOTHING",
				&sqlitex.ExecOptions{Args: []any{nsID, time.Now().UnixNano()}})
			if err != nil {
				return metadata.NewIndexError("create namespace", err)
			}
		} else if _, err = getNamespace(conn, obj.Namespace); err != nil {
			return err
		}

		replaced, err = getObject(conn, obj.Namespace, obj.Path)
		if err != nil && !metadata.IsNotFound(err) {
			return err
		}
		err = nil

		err = sqlitex.Execute(conn,
			`INSERT INTO objects (namespace_id, path, location, size, checksum, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (namespace_id, path) DO UPDATE SET
			   location   = excluded.location,
			   size       = excluded.size,
			   checksum   = excluded.checksum,
			   created_at = excluded.created_at
			 RETURNING id`,
			&sqlitex.ExecOptions{
				Args: []any{
					nsID,
					obj.Path,
					obj.Location,
					int64(obj.Size),
					obj.Checksum,
					obj.CreatedAt.UnixNano(),
				},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					obj.ID = stmt.ColumnInt64(0)
					return nil
				},
			})
		if err != nil {
			return metadata.NewIndexError("put object", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

// GetObject returns the object row at (namespace, path).
func (s *SQLiteMetadataStore) GetObject(ctx context.Context, namespace uuid.UUID, path string) (*metadata.Object, error) {
	var obj *metadata.Object
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		obj, err = getObject(conn, namespace, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// DeleteObject removes the row; the delete trigger decrements the total.
func (s *SQLiteMetadataStore) DeleteObject(ctx context.Context, namespace uuid.UUID, path string) (*metadata.Object, error) {
	var deleted *metadata.Object
	err := s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return metadata.NewIndexError("begin transaction", err)
		}
		defer endFn(&err)

		deleted, err = getObject(conn, namespace, path)
		if err != nil {
			return err
		}

		err = sqlitex.Execute(conn, "DELETE FROM objects WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{deleted.ID}})
		if err != nil {
			return metadata.NewIndexError("delete object", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListLocations returns the location of every indexed object.
func (s *SQLiteMetadataStore) ListLocations(ctx context.Context) ([]string, error) {
	locations := make([]string, 0)
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "SELECT location FROM objects", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				locations = append(locations, stmt.ColumnText(0))
				return nil
			},
		})
		return indexError("list locations", err)
	})
	if err != nil {
		return nil, err
	}
	return locations, nil
}

// getObject loads one object row on an already borrowed connection.
func getObject(conn *sqlite.Conn, namespace uuid.UUID, path string) (*metadata.Object, error) {
	var obj *metadata.Object
	err := sqlitex.Execute(conn,
		"SELECT "+objectColumns+" FROM objects WHERE namespace_id = ? AND path = ?",
		&sqlitex.ExecOptions{
			Args: []any{namespace.String(), path},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				o := scanObject(stmt, namespace)
				obj = &o
				return nil
			},
		})
	if err != nil {
		return nil, metadata.NewIndexError("get object", err)
	}
	if obj == nil {
		return nil, metadata.NewNotFoundError("object", path)
	}
	return obj, nil
}

// scanObject reads a row selected with objectColumns.
func scanObject(stmt *sqlite.Stmt, namespace uuid.UUID) metadata.Object {
	return metadata.Object{
		ID:        stmt.ColumnInt64(0),
		Namespace: namespace,
		Path:      stmt.ColumnText(1),
		Location:  stmt.ColumnText(2),
		Size:      uint64(stmt.ColumnInt64(3)),
		Checksum:  stmt.ColumnText(4),
		CreatedAt: time.Unix(0, stmt.ColumnInt64(5)),
	}
}
