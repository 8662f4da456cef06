package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/user/docchat/internal/types"
)

// SQLiteStore keeps the collection as one row of a key/value table.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// kv table exists.
func OpenSQLite(path, key string) (*SQLiteStore, error) {
	if key == "" {
		key = DefaultKey
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers without SQLITE_BUSY handling.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	return &SQLiteStore{db: db, key: key}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the collection row. A missing row, query failure or malformed
// value all yield an empty collection.
func (s *SQLiteStore) Load(ctx context.Context) []types.Session {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", s.key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("read session store", "key", s.key, "error", err)
		}
		return []types.Session{}
	}

	sessions, err := decodeSessions([]byte(value))
	if err != nil {
		slog.Warn("discarding malformed session store", "key", s.key, "error", err)
		return []types.Session{}
	}
	return sessions
}

// Save upserts the collection row inside a transaction.
func (s *SQLiteStore) Save(ctx context.Context, sessions []types.Session) error {
	data, err := encodeSessions(sessions)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const upsert = `INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, upsert, s.key, string(data)); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session store: %w", err)
	}
	return nil
}
