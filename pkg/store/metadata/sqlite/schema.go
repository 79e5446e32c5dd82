package sqlite

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

// schemaV1 creates the namespace and object tables and the triggers that keep
// namespaces.total_size equal to the sum of its objects' sizes.
//
// Cascading deletes fire the objects delete trigger after the parent row is
// already gone, so the trigger's UPDATE matches nothing.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS namespaces (
	id         TEXT PRIMARY KEY,
	total_size INTEGER NOT NULL DEFAULT 0 CHECK (total_size >= 0),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS objects (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	namespace_id TEXT NOT NULL REFERENCES namespaces(id) ON DELETE CASCADE,
	path         TEXT NOT NULL,
	location     TEXT NOT NULL,
	size         INTEGER NOT NULL CHECK (size >= 0),
	checksum     TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	UNIQUE (namespace_id, path)
);

CREATE TRIGGER IF NOT EXISTS objects_total_size_insert
AFTER INSERT ON objects
FOR EACH ROW
BEGIN
	UPDATE namespaces SET total_size = total_size + NEW.size WHERE id = NEW.namespace_id;
END;

CREATE TRIGGER IF NOT EXISTS objects_total_size_update
AFTER UPDATE OF size, namespace_id ON objects
FOR EACH ROW
BEGIN
	UPDATE namespaces SET total_size = total_size - OLD.size WHERE id = OLD.namespace_id;
	UPDATE namespaces SET total_size = total_size + NEW.size WHERE id = NEW.namespace_id;
END;

CREATE TRIGGER IF NOT EXISTS objects_total_size_delete
AFTER DELETE ON objects
FOR EACH ROW
BEGIN
	UPDATE namespaces SET total_size = total_size - OLD.size WHERE id = OLD.namespace_id;
END;
`

// migrate brings the schema up to schemaVersion.
func (s *SQLiteMetadataStore) migrate(ctx context.Context) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("failed to begin migration: %w", err)
		}
		defer endFn(&err)

		var version int
		err = sqlitex.ExecuteTransient(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				version = stmt.ColumnInt(0)
				return nil
			},
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		if version > schemaVersion {
			return fmt.Errorf("database schema version %d is newer than supported version %d",
				version, schemaVersion)
		}
		if version == schemaVersion {
			return nil
		}

		if err = sqlitex.ExecuteScript(conn, schemaV1, nil); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		if err = sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA user_version=%d", schemaVersion), nil); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	})
}
