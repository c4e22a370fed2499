package app

import (
	"clinic-console/internal/common/logging"
	"clinic-console/internal/redis"
)

// initializeRedis connects when REDIS_ADDRESS is set. Redis is optional, but a
// configured server that cannot be reached fails startup.
func (app *App) initializeRedis() error {
	if !app.Config.RedisEnabled() {
		app.Logger.Info("Redis: Not configured (rate limits, cache and locks are process-local; no event relay)")
		return nil
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDBNumber(),
		PoolSize: app.Config.RedisPoolSizeNumber(),
	})
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.onClose(func() { redisClient.Close() })
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))
	return nil
}
