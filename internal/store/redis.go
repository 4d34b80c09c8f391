// Package store is the typed adapter over the Redis keyspace holding
// file records, rate-limit records and download tokens. The three
// entity types share one keyspace, disambiguated by key prefix, and all
// rely on per-key TTL for automatic expiry.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	filePrefix      = "file#"
	tokenPrefix     = "token#"
	rateLimitPrefix = "ratelimit#"
	throttlePrefix  = "throttle#"

	// Records linger briefly past their logical expiry so reads can
	// still answer "expired" instead of "never existed" racing the TTL.
	ttlSlack = 10 * time.Minute
)

// Store provides typed access to the metadata keyspace.
type Store struct {
	rdb    redis.Cmdable
	logger *zap.Logger
}

// New wraps an established Redis client.
func New(rdb redis.Cmdable, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{rdb: rdb, logger: logger}
}

// Connect returns a configured Redis client, verified with a ping.
func Connect(addr, pass string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func fileKey(shareID string) string  { return filePrefix + shareID }
func tokenKey(tokenID string) string { return tokenPrefix + tokenID }

func rateKey(shareID, clientAddr string) string {
	return rateLimitPrefix + shareID + "#" + clientAddr
}

func throttleKey(scope, clientAddr string) string {
	return throttlePrefix + scope + "#" + clientAddr
}
