package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalCache wraps patrickmn/go-cache with a bound on the number of entries.
// go-cache owns values and expiry; LocalCache tracks insertion order for eviction.
type LocalCache struct {
	mu         sync.Mutex
	store      *gocache.Cache
	order      []string
	tracked    map[string]struct{}
	maxEntries int
	defaultTTL time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewLocalCache creates a local cache holding at most maxEntries entries.
// No janitor goroutine runs: expiry is enforced on read and on overflow.
func NewLocalCache(maxEntries int, defaultTTL time.Duration) *LocalCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	return &LocalCache{
		store:      gocache.New(defaultTTL, 0),
		tracked:    make(map[string]struct{}),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
	}
}

// Get returns the value for key. A value past its expiry is removed and reported absent.
func (l *LocalCache) Get(ctx context.Context, key string) (interface{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	value, found := l.store.Get(key)
	if !found {
		if _, ok := l.tracked[key]; ok {
			l.store.Delete(key)
			l.untrack(key)
		}
		l.misses.Add(1)
		return nil, false
	}

	l.hits.Add(1)
	return value, true
}

// Set stores value for ttl (the default TTL when ttl <= 0). Overwriting a live key
// keeps its original insertion position.
func (l *LocalCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tracked[key]; ok {
		if _, live := l.store.Get(key); live {
			l.store.Set(key, value, ttl)
			return nil
		}
		l.untrack(key)
	}

	if len(l.tracked) >= l.maxEntries {
		l.purgeExpired()
	}
	for len(l.tracked) >= l.maxEntries && len(l.order) > 0 {
		oldest := l.order[0]
		l.store.Delete(oldest)
		l.untrack(oldest)
	}

	l.store.Set(key, value, ttl)
	l.order = append(l.order, key)
	l.tracked[key] = struct{}{}
	return nil
}

// Invalidate removes key
func (l *LocalCache) Invalidate(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.store.Delete(key)
	l.untrack(key)
	return nil
}

// InvalidatePrefix removes every key starting with prefix
func (l *LocalCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.order[:0]
	for _, key := range l.order {
		if strings.HasPrefix(key, prefix) {
			l.store.Delete(key)
			delete(l.tracked, key)
			continue
		}
		kept = append(kept, key)
	}
	l.order = kept
	return nil
}

// Len returns the number of live (unexpired) entries
func (l *LocalCache) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.store.Items())
}

// Stats returns hit and miss counters
func (l *LocalCache) Stats() Stats {
	return Stats{Hits: l.hits.Load(), Misses: l.misses.Load()}
}

// purgeExpired drops expired entries from go-cache and from the insertion order.
// Caller holds l.mu.
func (l *LocalCache) purgeExpired() {
	l.store.DeleteExpired()
	live := l.store.Items()

	kept := l.order[:0]
	for _, key := range l.order {
		if _, ok := live[key]; ok {
			kept = append(kept, key)
			continue
		}
		delete(l.tracked, key)
	}
	l.order = kept
}

// untrack removes key from the insertion order. Caller holds l.mu.
func (l *LocalCache) untrack(key string) {
	if _, ok := l.tracked[key]; !ok {
		return
	}
	delete(l.tracked, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

var _ Cache = (*LocalCache)(nil)
