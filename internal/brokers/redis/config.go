package redis

import (
	"fmt"

	goredis "github.com/go-redis/redis/v8"
)

type Config struct {
	// Client is the shared application client; streams reuse its pool
	Client *goredis.Client `json:"-"`
	Stream string          `json:"stream"`
	// MaxLen caps the stream length approximately; 0 means unbounded
	MaxLen int64 `json:"max_len"`
}

func (c *Config) Validate() error {
	if c.Client == nil {
		return fmt.Errorf("Redis client is required")
	}
	if c.Stream == "" {
		return fmt.Errorf("Redis stream name is required")
	}
	if c.MaxLen < 0 {
		c.MaxLen = 0
	}
	return nil
}

func (c *Config) GetType() string {
	return "redis"
}

func (c *Config) GetConnectionString() string {
	if c.Client == nil {
		return "redis://"
	}
	return fmt.Sprintf("redis://%s/%s", c.Client.Options().Addr, c.Stream)
}
