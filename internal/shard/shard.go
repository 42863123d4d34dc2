package shard

import "hash/fnv"

// ID represents a shard number in [0, NumShards).
type ID int

// ForKey computes the shard for a user key.
func ForKey(key string, numShards int) ID {
	h := fnv.New32a()
	h.Write([]byte(key))
	return ID(h.Sum32() % uint32(numShards))
}
