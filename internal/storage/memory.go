package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process. Values are copied through JSON on
// the way in and out, so callers see exactly what a remote store would hand
// back and can never alias stored state.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Read(ctx context.Context, key string) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	data, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *MemoryStore) Write(ctx context.Context, key string, doc Document, opts WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next, err := roundTrip(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.Merge {
		if current, ok := s.docs[key]; ok {
			base, err := Decode(current)
			if err != nil {
				return err
			}
			next = MergeShallow(base, next)
		}
	}
	data, err := Encode(next)
	if err != nil {
		return err
	}
	s.docs[key] = data
	s.writes++
	return nil
}

// Put seeds a raw document, bypassing merge semantics and the write counter.
func (s *MemoryStore) Put(key string, doc Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[key] = data
	s.mu.Unlock()
	return nil
}

// Writes reports how many Write calls succeeded.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Ping implements the health check contract; the memory store is always up.
func (s *MemoryStore) Ping(context.Context) error { return nil }
