package syncutil

import (
	"sync"
	"testing"
	"time"
)

func TestShardedMutex_MutualExclusion(t *testing.T) {
	var m ShardedMutex
	counter := 0
	var wg sync.WaitGroup
	const n = 200

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			m.Do("partner-a", func() {
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
			})
		}()
	}
	wg.Wait()

	if counter != n {
		t.Fatalf("expected %d, got %d: mutual exclusion violated", n, counter)
	}
}

func TestShardedMutex_IndependentKeys(t *testing.T) {
	var m ShardedMutex

	// Find two keys on different shards.
	a, b := "file_001", "file_002"
	for i := 0; shardIndex(a) == shardIndex(b); i++ {
		b = b + "x"
	}

	unlockA := m.Lock(a)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := m.Lock(b)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on an unrelated shard blocked")
	}
}

func TestShardIndex_Stable(t *testing.T) {
	if shardIndex("acme") != shardIndex("acme") {
		t.Fatal("shard index must be deterministic")
	}
	if shardIndex("acme") >= shardCount {
		t.Fatal("shard index out of range")
	}
}
