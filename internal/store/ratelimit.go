package store

import (
	"context"
	"fmt"
	"time"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/models"
)

// GetRateLimit fetches the attempt record for one (shareId, client)
// pair. The second return value is false when no record exists.
func (s *Store) GetRateLimit(ctx context.Context, shareID, clientAddr string) (*models.RateLimitRecord, bool, error) {
	raw, err := s.rdb.HGetAll(ctx, rateKey(shareID, clientAddr)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("get rate limit: %w", err)
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	return &models.RateLimitRecord{
		Attempts:    parseInt(raw["attempts"]),
		WindowStart: parseInt(raw["window_start"]),
		LastAttempt: parseInt(raw["last_attempt"]),
		LockedUntil: parseInt(raw["locked_until"]),
	}, true, nil
}

// RecordFailedAttempt increments the attempt counter, initialising the
// record on first failure, and refreshes the window TTL. Returns the
// new attempt count.
func (s *Store) RecordFailedAttempt(ctx context.Context, shareID, clientAddr string, now time.Time, window time.Duration) (int64, error) {
	key := rateKey(shareID, clientAddr)

	pipe := s.rdb.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, "attempts", 1)
	pipe.HSetNX(ctx, key, "window_start", now.Unix())
	pipe.HSet(ctx, key, "last_attempt", now.Unix())
	pipe.Expire(ctx, key, window+ttlSlack)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record failed attempt: %w", err)
	}
	return incr.Val(), nil
}

// ResetRateLimit clears the record after a successful verification.
func (s *Store) ResetRateLimit(ctx context.Context, shareID, clientAddr string) error {
	if err := s.rdb.Del(ctx, rateKey(shareID, clientAddr)).Err(); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}

// SetLockout stamps the lockout deadline on the record. Racing callers
// may overwrite each other's deadline; the boundary shifts by at most
// one request either way, which is acceptable.
func (s *Store) SetLockout(ctx context.Context, shareID, clientAddr string, until time.Time, window time.Duration) error {
	key := rateKey(shareID, clientAddr)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, "locked_until", until.Unix())
	pipe.Expire(ctx, key, window+ttlSlack)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set lockout: %w", err)
	}
	return nil
}

// IncrThrottle bumps the generic per-client counter for an endpoint
// scope, arming the window TTL on first hit. Returns the count within
// the current window.
func (s *Store) IncrThrottle(ctx context.Context, scope, clientAddr string, window time.Duration) (int64, error) {
	key := throttleKey(scope, clientAddr)
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr throttle: %w", err)
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("arm throttle ttl: %w", err)
		}
	}
	return n, nil
}
