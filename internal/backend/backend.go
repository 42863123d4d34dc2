// Package backend opens the document store selected by configuration and
// wraps it with the circuit breaker and call metrics.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryanbastic/go-sheetspace/internal/circuitbreaker"
	"github.com/ryanbastic/go-sheetspace/internal/config"
	"github.com/ryanbastic/go-sheetspace/internal/metrics"
	"github.com/ryanbastic/go-sheetspace/internal/shard"
	"github.com/ryanbastic/go-sheetspace/internal/storage"
	"github.com/ryanbastic/go-sheetspace/internal/storage/postgres"
	"github.com/ryanbastic/go-sheetspace/internal/storage/redisstore"
	"github.com/ryanbastic/go-sheetspace/internal/storage/sqlite"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is an opened document store plus what the process needs to
// health-check and release it.
type Backend struct {
	Store    storage.DocumentStore
	Pingers  map[string]Pinger
	closers  []func() error
	registry prometheus.Registerer
	logger   *slog.Logger
}

// Close releases every connection the backend opened.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// Open connects to cfg.StoreBackend. Pool metrics for postgres are
// registered on reg when it is non-nil.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Backend, error) {
	b := &Backend{Pingers: make(map[string]Pinger), registry: reg, logger: logger}

	var err error
	switch cfg.StoreBackend {
	case config.BackendMemory:
		mem := storage.NewMemoryStore()
		b.Store = b.guard(mem, config.BackendMemory, cfg)
		b.Pingers[config.BackendMemory] = mem
	case config.BackendPostgres:
		err = b.openPostgres(ctx, cfg)
	case config.BackendRedis:
		err = b.openRedis(cfg)
	case config.BackendSQLite:
		err = b.openSQLite(cfg)
	default:
		err = fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	logger.Info("document store ready", "backend", cfg.StoreBackend)
	return b, nil
}

// newBreaker builds a breaker whose transitions are logged and exported
// under name.
func (b *Backend) newBreaker(name string, cfg config.Config) *circuitbreaker.Breaker {
	breaker := circuitbreaker.New(cfg.BreakerMaxFailures, cfg.BreakerResetTimeout)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		metrics.SetBreakerState(name, int(to))
		b.logger.Warn("circuit breaker state change", "backend", name, "from", from.String(), "to", to.String())
	})
	metrics.SetBreakerState(name, int(circuitbreaker.Closed))
	return breaker
}

// guard wraps a single-node store in its own breaker and call metrics.
func (b *Backend) guard(store storage.DocumentStore, name string, cfg config.Config) storage.DocumentStore {
	return storage.NewInstrumented(storage.NewGuarded(store, b.newBreaker(name, cfg)), name)
}

func (b *Backend) openPostgres(ctx context.Context, cfg config.Config) error {
	shards, err := config.ResolveShardConfig(cfg.ShardConfigPath, cfg.DatabaseURL, cfg.NumShards)
	if err != nil {
		return err
	}

	router := shard.NewRouter(cfg.NumShards)
	pools := make(map[string]*pgxpool.Pool, len(shards.Backends))

	for _, bc := range shards.Backends {
		poolCfg, err := pgxpool.ParseConfig(bc.DatabaseURL)
		if err != nil {
			return fmt.Errorf("parse database url for backend %q: %w", bc.Name, err)
		}
		if bc.MaxConns > 0 {
			poolCfg.MaxConns = bc.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("connect backend %q: %w", bc.Name, err)
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping backend %q: %w", bc.Name, err)
		}
		if err := postgres.RunMigrations(ctx, pool, bc.ShardStart, bc.ShardEnd); err != nil {
			return fmt.Errorf("migrate backend %q: %w", bc.Name, err)
		}
		b.logger.Info("connected to database", "backend", bc.Name, "shard_start", bc.ShardStart, "shard_end", bc.ShardEnd)

		// Shards on one database trip together.
		name := config.BackendPostgres + ":" + bc.Name
		breaker := b.newBreaker(name, cfg)
		for s := bc.ShardStart; s <= bc.ShardEnd; s++ {
			store := postgres.NewStore(pool, s, cfg.QueryTimeout)
			router.Register(shard.ID(s), storage.NewInstrumented(storage.NewGuarded(store, breaker), config.BackendPostgres))
		}
		pools[bc.Name] = pool
		b.Pingers[name] = pool
	}

	if b.registry != nil {
		if err := b.registry.Register(metrics.NewPoolCollector(pools)); err != nil {
			b.logger.Warn("failed to register pool collector", "error", err)
		}
	}
	b.Store = router
	return nil
}

func (b *Backend) openRedis(cfg config.Config) error {
	store, err := redisstore.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, store.Close)
	b.Store = b.guard(store, config.BackendRedis, cfg)
	b.Pingers[config.BackendRedis] = store
	return nil
}

func (b *Backend) openSQLite(cfg config.Config) error {
	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, store.Close)
	b.Store = b.guard(store, config.BackendSQLite, cfg)
	b.Pingers[config.BackendSQLite] = store
	return nil
}
