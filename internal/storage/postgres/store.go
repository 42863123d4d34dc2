// Package postgres stores workspace documents as JSONB rows, one table per
// shard.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ryanbastic/go-sheetspace/internal/storage"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store implements storage.DocumentStore for a single shard table.
type Store struct {
	pool         Pool
	table        string
	queryTimeout time.Duration
}

// NewStore creates a store backed by the table of the given shard.
// queryTimeout sets the per-query context deadline; zero means no timeout.
func NewStore(pool Pool, shardID int, queryTimeout time.Duration) *Store {
	return &Store{
		pool:         pool,
		table:        ShardTable(shardID),
		queryTimeout: queryTimeout,
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return ctx, func() {}
}

func (s *Store) Read(ctx context.Context, key string) (storage.Document, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT body FROM %s WHERE user_key = $1`, s.table)

	var body []byte
	if err := s.pool.QueryRow(ctx, query, key).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read document: %w", err)
	}
	doc, err := storage.Decode(body)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Write upserts the document. A merge concatenates the stored and new JSONB
// objects, which replaces top-level keys and keeps explicit nulls.
func (s *Store) Write(ctx context.Context, key string, doc storage.Document, opts storage.WriteOptions) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	body, err := storage.Encode(doc)
	if err != nil {
		return err
	}

	set := "EXCLUDED.body"
	if opts.Merge {
		set = s.table + ".body || EXCLUDED.body"
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (user_key, body, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (user_key) DO UPDATE
		SET body = %s, updated_at = now()
	`, s.table, set)

	if _, err := s.pool.Exec(ctx, query, key, string(body)); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}
