// Package sqlite is a single-file document store for local and
// single-instance deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ryanbastic/go-sheetspace/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	user_key   TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store implements storage.DocumentStore on SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Read(ctx context.Context, key string) (storage.Document, bool, error) {
	return read(ctx, s.sqlDB, key)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func read(ctx context.Context, q queryer, key string) (storage.Document, bool, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM documents WHERE user_key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read document: %w", err)
	}
	doc, err := storage.Decode([]byte(body))
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Write stores the document. Merges read and rewrite the row inside one
// immediate transaction.
func (s *Store) Write(ctx context.Context, key string, doc storage.Document, opts storage.WriteOptions) (err error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	next := doc
	if opts.Merge {
		base, ok, err := read(ctx, tx, key)
		if err != nil {
			return err
		}
		if ok {
			next = storage.MergeShallow(base, doc)
		}
	}

	body, err := storage.Encode(next)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (user_key, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		key, string(body), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit write: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}
