// Package cache provides the TTL cache used to avoid redundant database reads.
//
// Two backends share the Cache interface:
//
// 1. Local Cache - in-process, built on github.com/patrickmn/go-cache
//   - expiry checked lazily on read; an expired entry is removed when read
//   - bounded by a maximum entry count; on overflow expired entries are purged
//     first, then the oldest-inserted entry is evicted (insertion order, not LRU)
//
// 2. Redis Cache - shared between instances, built on github.com/go-redis/redis/v8
//   - values stored as JSON with a Redis TTL
//   - prefix invalidation via SCAN
//
// Usage:
//
//	c := cache.NewLocalCache(1000, 5*time.Minute)
//	patient, err := cache.GetOrCompute(ctx, c, "patient:phone:0101234", time.Minute,
//		func(ctx context.Context) (*storage.Patient, error) {
//			return store.FindPatientByPhone(ctx, "0101234")
//		})
package cache
