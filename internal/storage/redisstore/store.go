// Package redisstore keeps each workspace document as a JSON string under
// its own Redis key.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ryanbastic/go-sheetspace/internal/storage"
)

const (
	defaultPrefix = "sheetdoc:"
	// maxMergeAttempts bounds optimistic retries when another client touches
	// the key between WATCH and EXEC.
	maxMergeAttempts = 5
)

// Store implements storage.DocumentStore on Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// New connects to redisURL and verifies the connection.
func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client), nil
}

// NewWithClient creates a store from an existing client.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, prefix: defaultPrefix}
}

func (s *Store) key(userKey string) string {
	return s.prefix + userKey
}

func (s *Store) Read(ctx context.Context, key string) (storage.Document, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read document: %w", err)
	}
	doc, err := storage.Decode(data)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Write stores the document. A merge runs as a WATCH/MULTI transaction so
// a concurrent write to the same key forces a retry instead of being lost
// inside the merge window.
func (s *Store) Write(ctx context.Context, key string, doc storage.Document, opts storage.WriteOptions) error {
	k := s.key(key)
	if !opts.Merge {
		data, err := storage.Encode(doc)
		if err != nil {
			return err
		}
		if err := s.client.Set(ctx, k, data, 0).Err(); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
		return nil
	}

	merge := func(tx *redis.Tx) error {
		next := doc
		current, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			base, err := storage.Decode(current)
			if err != nil {
				return err
			}
			next = storage.MergeShallow(base, doc)
		}

		data, err := storage.Encode(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, 0)
			return nil
		})
		return err
	}

	for range maxMergeAttempts {
		err := s.client.Watch(ctx, merge, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("write document: %w", err)
		}
		return nil
	}
	return fmt.Errorf("write document: %w", redis.TxFailedErr)
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
