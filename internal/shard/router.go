package shard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ryanbastic/go-sheetspace/internal/storage"
)

// Router maps shard IDs to document stores and routes each user key to the
// store owning its shard. It is itself a storage.DocumentStore.
type Router struct {
	mu        sync.RWMutex
	numShards int
	stores    map[ID]storage.DocumentStore
}

func NewRouter(numShards int) *Router {
	return &Router{numShards: numShards, stores: make(map[ID]storage.DocumentStore)}
}

// Register associates a shard ID with a store.
func (r *Router) Register(id ID, store storage.DocumentStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[id] = store
}

// StoreFor returns the store for the given shard ID.
func (r *Router) StoreFor(id ID) (storage.DocumentStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[id]
	if !ok {
		return nil, fmt.Errorf("no store registered for shard %d", id)
	}
	return s, nil
}

func (r *Router) storeForKey(key string) (storage.DocumentStore, error) {
	return r.StoreFor(ForKey(key, r.numShards))
}

func (r *Router) Read(ctx context.Context, key string) (storage.Document, bool, error) {
	s, err := r.storeForKey(key)
	if err != nil {
		return nil, false, err
	}
	return s.Read(ctx, key)
}

func (r *Router) Write(ctx context.Context, key string, doc storage.Document, opts storage.WriteOptions) error {
	s, err := r.storeForKey(key)
	if err != nil {
		return err
	}
	return s.Write(ctx, key, doc, opts)
}

// Ping checks every registered store that can be pinged.
func (r *Router) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for id, s := range r.stores {
		p, ok := s.(interface{ Ping(context.Context) error })
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shard %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
