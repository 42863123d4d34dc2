package storage

import (
	"context"
	"time"

	"github.com/ryanbastic/go-sheetspace/internal/circuitbreaker"
	"github.com/ryanbastic/go-sheetspace/internal/metrics"
)

// Guarded routes every call through a circuit breaker so a failing backend
// is rejected fast with circuitbreaker.ErrCircuitOpen.
type Guarded struct {
	next    DocumentStore
	breaker *circuitbreaker.Breaker
}

func NewGuarded(next DocumentStore, breaker *circuitbreaker.Breaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

func (g *Guarded) Read(ctx context.Context, key string) (Document, bool, error) {
	var (
		doc Document
		ok  bool
	)
	err := g.breaker.ExecuteContext(ctx, func() error {
		var err error
		doc, ok, err = g.next.Read(ctx, key)
		return err
	})
	return doc, ok, err
}

func (g *Guarded) Write(ctx context.Context, key string, doc Document, opts WriteOptions) error {
	return g.breaker.ExecuteContext(ctx, func() error {
		return g.next.Write(ctx, key, doc, opts)
	})
}

// Instrumented records latency and outcome of every store call.
type Instrumented struct {
	next    DocumentStore
	backend string
}

func NewInstrumented(next DocumentStore, backend string) *Instrumented {
	return &Instrumented{next: next, backend: backend}
}

func (s *Instrumented) Read(ctx context.Context, key string) (Document, bool, error) {
	start := time.Now()
	doc, ok, err := s.next.Read(ctx, key)
	metrics.ObserveStoreCall(s.backend, "read", err, time.Since(start))
	return doc, ok, err
}

func (s *Instrumented) Write(ctx context.Context, key string, doc Document, opts WriteOptions) error {
	start := time.Now()
	err := s.next.Write(ctx, key, doc, opts)
	metrics.ObserveStoreCall(s.backend, "write", err, time.Since(start))
	return err
}
