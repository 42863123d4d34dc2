package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// BackendConfig describes one PostgreSQL database holding a contiguous range
// of document shards.
type BackendConfig struct {
	Name        string `json:"name"`
	DatabaseURL string `json:"database_url"`
	ShardStart  int    `json:"shard_start"`
	ShardEnd    int    `json:"shard_end"`
	MaxConns    int32  `json:"max_conns,omitempty"`
}

// Shards reports how many shards the backend owns.
func (b BackendConfig) Shards() int {
	return b.ShardEnd - b.ShardStart + 1
}

// ShardConfig holds the list of backends that together cover all shards.
type ShardConfig struct {
	Backends []BackendConfig `json:"backends"`
}

// SingleBackend places every shard on one database.
func SingleBackend(databaseURL string, numShards int) *ShardConfig {
	return &ShardConfig{Backends: []BackendConfig{{
		Name:        "primary",
		DatabaseURL: databaseURL,
		ShardStart:  0,
		ShardEnd:    numShards - 1,
	}}}
}

// ResolveShardConfig loads the shard file when a path is given and otherwise
// falls back to a single backend at databaseURL.
func ResolveShardConfig(path, databaseURL string, numShards int) (*ShardConfig, error) {
	if path != "" {
		return LoadShardConfig(path, numShards)
	}
	cfg := SingleBackend(databaseURL, numShards)
	if err := cfg.Validate(numShards); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadShardConfig reads a JSON shard config file and validates it against numShards.
func LoadShardConfig(path string, numShards int) (*ShardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shard config: %w", err)
	}

	var cfg ShardConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse shard config: %w", err)
	}
	if err := cfg.Validate(numShards); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every shard in [0, numShards) is owned by exactly one
// backend.
func (c *ShardConfig) Validate(numShards int) error {
	if numShards <= 0 {
		return fmt.Errorf("shard config: num_shards must be positive, got %d", numShards)
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("shard config: no backends defined")
	}

	covered := make([]bool, numShards)
	names := make(map[string]bool, len(c.Backends))

	for i, b := range c.Backends {
		if b.DatabaseURL == "" {
			return fmt.Errorf("shard config: backend %q (#%d) has empty database_url", b.Name, i)
		}
		if names[b.Name] {
			return fmt.Errorf("shard config: backend name %q is used more than once", b.Name)
		}
		names[b.Name] = true
		if b.ShardStart < 0 || b.ShardEnd < 0 {
			return fmt.Errorf("shard config: backend %q has negative shard range", b.Name)
		}
		if b.ShardStart > b.ShardEnd {
			return fmt.Errorf("shard config: backend %q has shard_start (%d) > shard_end (%d)", b.Name, b.ShardStart, b.ShardEnd)
		}
		if b.ShardEnd >= numShards {
			return fmt.Errorf("shard config: backend %q shard_end (%d) >= num_shards (%d)", b.Name, b.ShardEnd, numShards)
		}
		if b.MaxConns < 0 {
			return fmt.Errorf("shard config: backend %q has negative max_conns", b.Name)
		}
		for s := b.ShardStart; s <= b.ShardEnd; s++ {
			if covered[s] {
				return fmt.Errorf("shard config: shard %d is covered by multiple backends", s)
			}
			covered[s] = true
		}
	}

	for s := 0; s < numShards; s++ {
		if !covered[s] {
			return fmt.Errorf("shard config: shard %d is not covered by any backend", s)
		}
	}
	return nil
}
