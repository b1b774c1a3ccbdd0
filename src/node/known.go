package node

import (
	"time"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/mosaicnetworks/murmur/src/wire"
)

// knownCache remembers, for one peer, the vectors it advertised or was sent,
// each for ttl. Entries only leave the cache once they expire: when it is
// full the expired entries are pruned and, if that is not enough, the cache
// grows. It is not safe for concurrent use; the reactor owns it.
type knownCache struct {
	cache    *simplelru.LRU
	capacity int
	ttl      time.Duration
}

// newKnownCache creates a cache with room for capacity vectors before it
// first has to prune or grow.
func newKnownCache(capacity int, ttl time.Duration) *knownCache {
	if capacity < 1 {
		capacity = 1
	}
	cache, _ := simplelru.NewLRU(capacity, nil)
	return &knownCache{cache: cache, capacity: capacity, ttl: ttl}
}

// add records ivs as known at now. Re-adding a vector refreshes it, so the
// oldest entry of the LRU is always the first to expire.
func (k *knownCache) add(now time.Time, ivs ...wire.InventoryVector) {
	for _, iv := range ivs {
		if !k.cache.Contains(iv) && k.cache.Len() >= k.capacity {
			k.expire(now)
			if k.cache.Len() >= k.capacity {
				k.capacity *= 2
				k.cache.Resize(k.capacity)
			}
		}
		k.cache.Add(iv, now)
	}
}

// expire removes the entries older than ttl.
func (k *knownCache) expire(now time.Time) {
	for {
		iv, added, ok := k.cache.GetOldest()
		if !ok || now.Sub(added.(time.Time)) <= k.ttl {
			return
		}
		k.cache.Remove(iv)
	}
}

func (k *knownCache) contains(iv wire.InventoryVector, now time.Time) bool {
	v, ok := k.cache.Peek(iv)
	if !ok {
		return false
	}
	if now.Sub(v.(time.Time)) > k.ttl {
		k.cache.Remove(iv)
		return false
	}
	return true
}

func (k *knownCache) len() int {
	return k.cache.Len()
}

func (k *knownCache) purge() {
	k.cache.Purge()
}
