// Package redisstore keeps refresh tokens in Redis. Expiry is delegated to key
// TTLs and rotation uses GETDEL, so a token can be redeemed at most once even
// across several service instances.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clinic-console/internal/storage"

	"github.com/go-redis/redis/v8"
)

const defaultPrefix = "refresh:"

// TokenStore implements storage.RefreshTokenStore on Redis
type TokenStore struct {
	client *redis.Client
	prefix string
}

func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &TokenStore{client: client, prefix: prefix}
}

func (s *TokenStore) tokenKey(hash string) string {
	return s.prefix + hash
}

func (s *TokenStore) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *TokenStore) CreateRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired")
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode refresh token: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenKey(token.TokenHash), data, ttl)
	pipe.SAdd(ctx, s.userKey(token.UserID), token.TokenHash)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	// The index lives as long as the longest-lived token in it
	userKey := s.userKey(token.UserID)
	if current, err := s.client.PTTL(ctx, userKey).Result(); err == nil && current < ttl {
		s.client.PExpire(ctx, userKey, ttl)
	}
	return nil
}

func (s *TokenStore) GetRefreshToken(ctx context.Context, tokenHash string) (*storage.RefreshToken, error) {
	data, err := s.client.Get(ctx, s.tokenKey(tokenHash)).Bytes()
	return decode(data, err)
}

func (s *TokenStore) ConsumeRefreshToken(ctx context.Context, tokenHash string) (*storage.RefreshToken, error) {
	data, err := s.client.GetDel(ctx, s.tokenKey(tokenHash)).Bytes()
	token, err := decode(data, err)
	if err != nil {
		return nil, err
	}
	s.client.SRem(ctx, s.userKey(token.UserID), tokenHash)
	return token, nil
}

func (s *TokenStore) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := s.ConsumeRefreshToken(ctx, tokenHash)
	if err == storage.ErrNotFound {
		return nil
	}
	return err
}

func (s *TokenStore) DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	hashes, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, s.tokenKey(h))
	}

	var deleted int64
	if len(keys) > 0 {
		deleted, err = s.client.Del(ctx, keys...).Result()
		if err != nil {
			return 0, err
		}
	}
	if err := s.client.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// DeleteExpiredRefreshTokens only prunes user indexes; Redis expires the
// token keys on its own, so the returned count is always zero.
func (s *TokenStore) DeleteExpiredRefreshTokens(ctx context.Context, _ time.Time) (int64, error) {
	iter := s.client.Scan(ctx, 0, s.prefix+"user:*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()
		hashes, err := s.client.SMembers(ctx, userKey).Result()
		if err != nil {
			return 0, err
		}
		for _, h := range hashes {
			exists, err := s.client.Exists(ctx, s.tokenKey(h)).Result()
			if err != nil {
				return 0, err
			}
			if exists == 0 {
				s.client.SRem(ctx, userKey, h)
			}
		}
	}
	return 0, iter.Err()
}

func decode(data []byte, err error) (*storage.RefreshToken, error) {
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var token storage.RefreshToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}
	return &token, nil
}

var _ storage.RefreshTokenStore = (*TokenStore)(nil)
