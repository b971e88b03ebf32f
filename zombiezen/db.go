package zombiezen

import (
	"context"
	"fmt"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS lets_encrypt_kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
CREATE TABLE IF NOT EXISTS lets_encrypt_flags (
	name       TEXT PRIMARY KEY,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
`

// Db implements the letsencrypt.Store interface using zombiezen/sqlite.
type Db struct {
	pool *sqlitex.Pool
}

var _ letsencrypt.Store = (*Db)(nil)

// NewStore creates a new Db instance satisfying the Store interface.
// It expects the sqlitex.Pool to be created and managed externally.
func NewStore(pool *sqlitex.Pool) *Db {
	if pool == nil {
		panic("zombiezen.NewStore: received nil pool")
	}
	return &Db{pool: pool}
}

// Migrate creates the key/value and flag tables if they do not exist.
func (d *Db) Migrate(ctx context.Context) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("db: failed to create schema: %w", err)
	}
	return nil
}

func (d *Db) Get(ctx context.Context, key string) ([]byte, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	var value []byte
	found := false
	err = sqlitex.Execute(conn,
		`SELECT value FROM lets_encrypt_kv WHERE key = ?;`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, value)
				found = true
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("db: failed to read key %q: %w", key, err)
	}
	if !found {
		return nil, letsencrypt.ErrNotFound
	}
	return value, nil
}

func (d *Db) Set(ctx context.Context, key string, value []byte) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	if value == nil {
		value = []byte{}
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO lets_encrypt_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now');`,
		&sqlitex.ExecOptions{
			Args: []any{key, value},
		})
	if err != nil {
		return fmt.Errorf("db: failed to write key %q: %w", key, err)
	}
	return nil
}

func (d *Db) SetFlag(ctx context.Context, name string) error {
	return d.exec(ctx, `INSERT OR IGNORE INTO lets_encrypt_flags (name) VALUES (?);`, name)
}

func (d *Db) ClearFlag(ctx context.Context, name string) error {
	return d.exec(ctx, `DELETE FROM lets_encrypt_flags WHERE name = ?;`, name)
}

func (d *Db) HasFlag(ctx context.Context, name string) (bool, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	set := false
	err = sqlitex.Execute(conn,
		`SELECT 1 FROM lets_encrypt_flags WHERE name = ?;`,
		&sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				set = true
				return nil
			},
		})
	if err != nil {
		return false, fmt.Errorf("db: failed to read flag %q: %w", name, err)
	}
	return set, nil
}

// Flags returns every set flag, for status output.
func (d *Db) Flags(ctx context.Context) ([]string, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	var names []string
	err = sqlitex.Execute(conn,
		`SELECT name FROM lets_encrypt_flags ORDER BY name;`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				names = append(names, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("db: failed to list flags: %w", err)
	}
	return names, nil
}

func (d *Db) exec(ctx context.Context, query, name string) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: []any{name}}); err != nil {
		return fmt.Errorf("db: failed to update flag %q: %w", name, err)
	}
	return nil
}
