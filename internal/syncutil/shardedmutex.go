// Package syncutil provides keyed mutual exclusion for in-memory state.
package syncutil

import (
	"hash/fnv"
	"sync"
)

const shardCount = 256

// ShardedMutex provides a fixed-size pool of mutexes keyed by string.
// Memory stays bounded no matter how many partners or files are seen, at the
// cost of occasional false sharing between keys that hash to the same shard.
//
// A goroutine must never hold two keys of the same ShardedMutex at once:
// distinct keys can share a shard. Use one ShardedMutex per key space and
// acquire them in a fixed order instead.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

// Lock acquires the mutex for the given key and returns an unlock function.
func (s *ShardedMutex) Lock(key string) func() {
	mu := s.shard(key)
	mu.Lock()
	return mu.Unlock
}

// Do runs fn while holding the mutex for key.
func (s *ShardedMutex) Do(key string, fn func()) {
	unlock := s.Lock(key)
	defer unlock()
	fn()
}

func (s *ShardedMutex) shard(key string) *sync.Mutex {
	return &s.shards[shardIndex(key)]
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
