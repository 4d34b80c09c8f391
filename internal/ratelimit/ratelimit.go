// Package ratelimit implements the sliding-window password-attempt
// limiter and the generic per-client endpoint throttle. Both deny on
// store failure: under an outage downloads become unavailable, the
// brute-force defense never does.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/models"
)

const (
	// MaxAttempts failed password attempts inside the window trigger a lockout.
	MaxAttempts = 5
	// Window is the sliding window anchoring the attempt count.
	Window = time.Hour
	// LockoutDuration applies once MaxAttempts is reached.
	LockoutDuration = 15 * time.Minute

	// failClosedLockout is the short deny window returned when the
	// store itself is unreachable.
	failClosedLockout = time.Minute
)

type attemptStore interface {
	GetRateLimit(ctx context.Context, shareID, clientAddr string) (*models.RateLimitRecord, bool, error)
	RecordFailedAttempt(ctx context.Context, shareID, clientAddr string, now time.Time, window time.Duration) (int64, error)
	ResetRateLimit(ctx context.Context, shareID, clientAddr string) error
	SetLockout(ctx context.Context, shareID, clientAddr string, until time.Time, window time.Duration) error
	IncrThrottle(ctx context.Context, scope, clientAddr string, window time.Duration) (int64, error)
}

// Result is the limiter's verdict for one attempt.
type Result struct {
	Allowed           bool
	RemainingAttempts int
	LockedUntil       time.Time
}

// Limiter evaluates the Fresh -> Active -> Locked state machine per
// (shareId, clientAddress) pair.
type Limiter struct {
	store  attemptStore
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Limiter over the metadata store.
func New(store attemptStore, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{store: store, logger: logger, now: time.Now}
}

// Check evaluates whether a password attempt may proceed.
func (l *Limiter) Check(ctx context.Context, shareID, clientAddr string) Result {
	now := l.now()

	rec, found, err := l.store.GetRateLimit(ctx, shareID, clientAddr)
	if err != nil {
		l.logger.Warn("rate limit check failed closed",
			zap.String("share_id", truncate(shareID)), zap.Error(err))
		return Result{Allowed: false, LockedUntil: now.Add(failClosedLockout)}
	}
	if !found {
		return Result{Allowed: true, RemainingAttempts: MaxAttempts}
	}

	if rec.LockedUntil > now.Unix() {
		return Result{Allowed: false, LockedUntil: time.Unix(rec.LockedUntil, 0)}
	}

	// Window elapsed without activity: identical to no record.
	if rec.LastAttempt < now.Add(-Window).Unix() {
		return Result{Allowed: true, RemainingAttempts: MaxAttempts}
	}

	if rec.Attempts >= MaxAttempts {
		until := now.Add(LockoutDuration)
		if err := l.store.SetLockout(ctx, shareID, clientAddr, until, Window); err != nil {
			l.logger.Warn("failed to persist lockout",
				zap.String("share_id", truncate(shareID)), zap.Error(err))
		}
		return Result{Allowed: false, LockedUntil: until}
	}

	return Result{Allowed: true, RemainingAttempts: MaxAttempts - int(rec.Attempts)}
}

// Record persists the outcome of a password attempt. Success clears the
// counter; failure increments it and refreshes the window. A stale
// record whose window already elapsed is cleared first, so its count
// never leaks into the new window.
func (l *Limiter) Record(ctx context.Context, shareID, clientAddr string, success bool) error {
	if success {
		return l.store.ResetRateLimit(ctx, shareID, clientAddr)
	}

	now := l.now()
	rec, found, err := l.store.GetRateLimit(ctx, shareID, clientAddr)
	if err == nil && found && rec.LastAttempt < now.Add(-Window).Unix() {
		if err := l.store.ResetRateLimit(ctx, shareID, clientAddr); err != nil {
			return err
		}
	}

	_, err = l.store.RecordFailedAttempt(ctx, shareID, clientAddr, now, Window)
	return err
}

// CheckGeneric throttles an endpoint scope per client address. Used to
// blunt share-ID enumeration on the metadata and token-issuance paths.
// Denies on store error.
func (l *Limiter) CheckGeneric(ctx context.Context, scope, clientAddr string, window time.Duration, maxRequests int64) bool {
	n, err := l.store.IncrThrottle(ctx, scope, clientAddr, window)
	if err != nil {
		l.logger.Warn("generic throttle failed closed",
			zap.String("scope", scope), zap.Error(err))
		return false
	}
	return n <= maxRequests
}

func truncate(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
