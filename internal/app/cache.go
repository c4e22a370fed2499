package app

import (
	"fmt"

	"clinic-console/internal/common/cache"
	"clinic-console/internal/common/logging"
)

func (app *App) initializeCache() error {
	cacheConfig := cache.Config{
		Type:       cache.TypeLocal,
		MaxEntries: app.Config.CacheMaxEntries,
		DefaultTTL: app.Config.CacheDefaultTTL,
		KeyPrefix:  "cache:",
	}
	if app.Config.CacheBackend == "redis" {
		cacheConfig.Type = cache.TypeRedis
		cacheConfig.RedisClient = app.RedisClient.Redis()
	}

	c, err := cache.New(cacheConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	app.Cache = c

	if err := app.Metrics.RegisterCacheStats(func() (uint64, uint64) {
		stats := c.Stats()
		return stats.Hits, stats.Misses
	}); err != nil {
		return fmt.Errorf("failed to register cache metrics: %w", err)
	}

	app.Logger.Info("Cache: Ready",
		logging.String("backend", string(cacheConfig.Type)),
		logging.Duration("default_ttl", cacheConfig.DefaultTTL))
	return nil
}
