package shard

import (
	"fmt"
	"testing"
)

func TestForKey_Deterministic(t *testing.T) {
	key := "550e8400-e29b-41d4-a716-446655440000"
	numShards := 64

	first := ForKey(key, numShards)
	for i := 0; i < 100; i++ {
		if got := ForKey(key, numShards); got != first {
			t.Fatalf("iteration %d: got shard %d, want %d", i, got, first)
		}
	}
}

func TestForKey_InRange(t *testing.T) {
	for _, numShards := range []int{1, 2, 4, 8, 16, 32, 64, 128, 256} {
		for i := 0; i < 100; i++ {
			key := fmt.Sprintf("user-%d", i)
			got := ForKey(key, numShards)
			if int(got) < 0 || int(got) >= numShards {
				t.Errorf("numShards=%d key=%s: got shard %d out of range [0,%d)", numShards, key, got, numShards)
			}
		}
	}
}

func TestForKey_DifferentKeysDistribute(t *testing.T) {
	numShards := 16
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		seen[ForKey(fmt.Sprintf("firebase-uid-%d", i), numShards)] = true
	}
	if len(seen) < numShards/2 {
		t.Errorf("poor distribution: only %d/%d shards seen with 1000 keys", len(seen), numShards)
	}
}

func TestForKey_SingleShard(t *testing.T) {
	if got := ForKey("anyone", 1); got != 0 {
		t.Errorf("with 1 shard, expected 0 but got %d", got)
	}
}

func TestForKey_EmptyKey(t *testing.T) {
	got := ForKey("", 64)
	if int(got) < 0 || int(got) >= 64 {
		t.Errorf("empty key: shard %d out of range [0,64)", got)
	}
}

func BenchmarkForKey(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ForKey("VaOpP1lxQxR0cXn6M1aF0u3nJ2k1", 64)
	}
}
