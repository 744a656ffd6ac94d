package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile    = "zklogin.db"
	maxBusyTimeoutMs = 5000
)

// SQLiteBackend keeps the record in a single row of a local SQLite file.
type SQLiteBackend struct {
	db   *sql.DB
	file string
}

func NewSQLiteBackend(filePath string) (*SQLiteBackend, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "resolve db path")
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o700); err != nil {
		return nil, errors.Wrap(err, "create db directory")
	}

	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", filepath.Clean(absPath), maxBusyTimeoutMs)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db, file: absPath}
	if err := b.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) ensureSchema() error {
	_, err := b.db.Exec(`CREATE TABLE IF NOT EXISTS session (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	return errors.Wrap(err, "create session table")
}

func (b *SQLiteBackend) Read(ctx context.Context) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, StorageKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session")
	}
	return data, nil
}

func (b *SQLiteBackend) Write(ctx context.Context, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO session (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		StorageKey, data, time.Now().UnixMilli())
	return errors.Wrap(err, "write session")
}

func (b *SQLiteBackend) Delete(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, StorageKey)
	return errors.Wrap(err, "delete session")
}

// Update runs fn inside BEGIN IMMEDIATE, which takes the database write lock
// before the read so other processes on the same file wait for the commit.
func (b *SQLiteBackend) Update(ctx context.Context, fn func(current []byte) ([]byte, error)) (err error) {
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return errors.Wrap(err, "begin session transaction")
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.Background(), `ROLLBACK`)
		}
	}()

	var current []byte
	err = conn.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, StorageKey).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		current, err = nil, nil
	} else if err != nil {
		return errors.Wrap(err, "read session")
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		_, err = conn.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, StorageKey)
	} else {
		_, err = conn.ExecContext(ctx,
			`INSERT INTO session (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			StorageKey, next, time.Now().UnixMilli())
	}
	if err != nil {
		return errors.Wrap(err, "write session")
	}

	_, err = conn.ExecContext(ctx, `COMMIT`)
	return errors.Wrap(err, "commit session transaction")
}

// Close releases the underlying database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
