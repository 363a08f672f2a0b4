// Package cache holds Redis-backed stores shared across instances.
package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"fooddelivery/pkg/logger"
)

const defaultPrefix = "auth:revoked:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// RevocationStore keeps revoked token IDs in Redis with the token's remaining lifetime as TTL.
type RevocationStore struct {
	rdb    goredis.Cmdable
	prefix string
	log    *logger.Logger
}

// NewRevocationStore connects to Redis and verifies the connection.
func NewRevocationStore(opts Options, log *logger.Logger) (*RevocationStore, *goredis.Client, error) {
	if log == nil {
		log = logger.NewNop()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("Redis revocation store connected", "addr", opts.Addr)
	return NewRevocationStoreFromClient(rdb, "", log), rdb, nil
}

// NewRevocationStoreFromClient wraps an existing client. An empty prefix selects the default.
func NewRevocationStoreFromClient(rdb goredis.Cmdable, prefix string, log *logger.Logger) *RevocationStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RevocationStore{rdb: rdb, prefix: prefix, log: log.With("service", "RedisRevocationStore")}
}

func (s *RevocationStore) key(tokenID string) string { return s.prefix + tokenID }

// Revoke stores tokenID until ttl elapses. Non-positive TTLs are already expired and skipped.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, s.key(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke %s: %w", tokenID, err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis lookup %s: %w", tokenID, err)
	}
	return n > 0, nil
}
