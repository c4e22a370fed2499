// Command purge-tokens removes expired refresh tokens and old login attempts
// once and exits. It reads the same environment as the server, so it can run
// from cron or a one-off job when the in-process schedule is not wanted.
package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"clinic-console/internal/auth"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/config"
	"clinic-console/internal/jobs"
	"clinic-console/internal/redis"
	"clinic-console/internal/storage"
	"clinic-console/internal/storage/postgres"
	"clinic-console/internal/storage/redisstore"
	"clinic-console/internal/storage/sqlite"
)

func main() {
	timeout := flag.Duration("timeout", time.Minute, "Maximum time for the purge")
	flag.Parse()

	_ = godotenv.Load()
	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	var tokenStore storage.RefreshTokenStore = store
	if cfg.TokenStore == "redis" {
		client, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDBNumber(),
			PoolSize: cfg.RedisPoolSizeNumber(),
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		tokenStore = redisstore.NewTokenStore(client.Redis(), "")
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, tokenStore, store)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := jobs.Purge(ctx, tokens, store, time.Now())
	if err != nil {
		log.Fatalf("Purge failed: %v", err)
	}

	logging.Info("Purge completed",
		logging.Field{Key: "tokens_removed", Value: result.Tokens},
		logging.Field{Key: "attempts_removed", Value: result.Attempts},
	)
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.DatabaseType == "postgres" || cfg.DatabaseType == "postgresql" {
		port, err := strconv.Atoi(cfg.PostgresPort)
		if err != nil {
			return nil, err
		}
		return postgres.Open(&postgres.Config{
			Host:     cfg.PostgresHost,
			Port:     port,
			Database: cfg.PostgresDB,
			Username: cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		})
	}
	return sqlite.Open(&sqlite.Config{DatabasePath: cfg.DatabasePath})
}
