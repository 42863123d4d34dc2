package postgres

import (
	"context"
	"fmt"
)

// RunMigrations creates the document tables for shards in [shardStart, shardEnd].
func RunMigrations(ctx context.Context, pool Pool, shardStart, shardEnd int) error {
	for i := shardStart; i <= shardEnd; i++ {
		table := ShardTable(i)
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_key   TEXT PRIMARY KEY,
				body       JSONB NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

				CONSTRAINT chk_%s_object CHECK (jsonb_typeof(body) = 'object')
			)
		`, table, table)

		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate shard %d: %w", i, err)
		}
	}
	return nil
}

// ShardTable returns the table name for a given shard number.
func ShardTable(shardID int) string {
	return fmt.Sprintf("sheet_documents_%04d", shardID)
}
