package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/models"
)

type fakeAttemptStore struct {
	records   map[string]*models.RateLimitRecord
	throttles map[string]int64

	getErr      error
	recordErr   error
	throttleErr error
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		records:   make(map[string]*models.RateLimitRecord),
		throttles: make(map[string]int64),
	}
}

func (f *fakeAttemptStore) key(shareID, addr string) string { return shareID + "#" + addr }

func (f *fakeAttemptStore) GetRateLimit(_ context.Context, shareID, addr string) (*models.RateLimitRecord, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	rec, ok := f.records[f.key(shareID, addr)]
	return rec, ok, nil
}

func (f *fakeAttemptStore) RecordFailedAttempt(_ context.Context, shareID, addr string, now time.Time, _ time.Duration) (int64, error) {
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	k := f.key(shareID, addr)
	rec, ok := f.records[k]
	if !ok {
		rec = &models.RateLimitRecord{WindowStart: now.Unix()}
		f.records[k] = rec
	}
	rec.Attempts++
	rec.LastAttempt = now.Unix()
	return rec.Attempts, nil
}

func (f *fakeAttemptStore) ResetRateLimit(_ context.Context, shareID, addr string) error {
	delete(f.records, f.key(shareID, addr))
	return nil
}

func (f *fakeAttemptStore) SetLockout(_ context.Context, shareID, addr string, until time.Time, _ time.Duration) error {
	k := f.key(shareID, addr)
	rec, ok := f.records[k]
	if !ok {
		rec = &models.RateLimitRecord{}
		f.records[k] = rec
	}
	rec.LockedUntil = until.Unix()
	return nil
}

func (f *fakeAttemptStore) IncrThrottle(_ context.Context, scope, addr string, _ time.Duration) (int64, error) {
	if f.throttleErr != nil {
		return 0, f.throttleErr
	}
	k := scope + "#" + addr
	f.throttles[k]++
	return f.throttles[k], nil
}

func newTestLimiter(store attemptStore, now time.Time) *Limiter {
	l := New(store, zap.NewNop())
	l.now = func() time.Time { return now }
	return l
}

const (
	testShare = "abcdefghijklmnopqrstuvwxyzABC012"
	testAddr  = "203.0.113.7"
)

func TestFreshPairIsAllowed(t *testing.T) {
	l := newTestLimiter(newFakeAttemptStore(), time.Now())

	res := l.Check(context.Background(), testShare, testAddr)
	assert.True(t, res.Allowed)
	assert.Equal(t, MaxAttempts, res.RemainingAttempts)
}

func TestFiveFailuresLockOut(t *testing.T) {
	store := newFakeAttemptStore()
	now := time.Now()
	l := newTestLimiter(store, now)
	ctx := context.Background()

	for i := 0; i < MaxAttempts; i++ {
		res := l.Check(ctx, testShare, testAddr)
		require.True(t, res.Allowed, "attempt %d should be allowed", i+1)
		require.Equal(t, MaxAttempts-i, res.RemainingAttempts)
		require.NoError(t, l.Record(ctx, testShare, testAddr, false))
	}

	res := l.Check(ctx, testShare, testAddr)
	assert.False(t, res.Allowed)
	assert.WithinDuration(t, now.Add(LockoutDuration), res.LockedUntil, time.Second)

	// Still denied while locked, even without further attempts recorded.
	res = l.Check(ctx, testShare, testAddr)
	assert.False(t, res.Allowed)
}

func TestSuccessResetsCounter(t *testing.T) {
	store := newFakeAttemptStore()
	l := newTestLimiter(store, time.Now())
	ctx := context.Background()

	for i := 0; i < MaxAttempts-1; i++ {
		require.NoError(t, l.Record(ctx, testShare, testAddr, false))
	}
	require.NoError(t, l.Record(ctx, testShare, testAddr, true))

	res := l.Check(ctx, testShare, testAddr)
	assert.True(t, res.Allowed)
	assert.Equal(t, MaxAttempts, res.RemainingAttempts)
}

func TestStaleWindowTreatedAsFresh(t *testing.T) {
	store := newFakeAttemptStore()
	now := time.Now()
	store.records[store.key(testShare, testAddr)] = &models.RateLimitRecord{
		Attempts:    MaxAttempts,
		WindowStart: now.Add(-2 * time.Hour).Unix(),
		LastAttempt: now.Add(-61 * time.Minute).Unix(),
	}
	l := newTestLimiter(store, now)

	res := l.Check(context.Background(), testShare, testAddr)
	assert.True(t, res.Allowed)
	assert.Equal(t, MaxAttempts, res.RemainingAttempts)
}

func TestStaleWindowResetOnNextFailure(t *testing.T) {
	// A stale record can outlive its window inside the store's TTL
	// slack; the first failure of the new window counts from scratch.
	store := newFakeAttemptStore()
	now := time.Now()
	store.records[store.key(testShare, testAddr)] = &models.RateLimitRecord{
		Attempts:    4,
		WindowStart: now.Add(-2 * time.Hour).Unix(),
		LastAttempt: now.Add(-61 * time.Minute).Unix(),
	}
	l := newTestLimiter(store, now)
	ctx := context.Background()

	res := l.Check(ctx, testShare, testAddr)
	require.True(t, res.Allowed)
	require.Equal(t, MaxAttempts, res.RemainingAttempts)

	require.NoError(t, l.Record(ctx, testShare, testAddr, false))

	res = l.Check(ctx, testShare, testAddr)
	assert.True(t, res.Allowed, "one failure in a fresh window must not lock out")
	assert.Equal(t, MaxAttempts-1, res.RemainingAttempts)
}

func TestExpiredLockoutFallsBackToCount(t *testing.T) {
	store := newFakeAttemptStore()
	now := time.Now()
	store.records[store.key(testShare, testAddr)] = &models.RateLimitRecord{
		Attempts:    2,
		LastAttempt: now.Add(-5 * time.Minute).Unix(),
		LockedUntil: now.Add(-time.Minute).Unix(),
	}
	l := newTestLimiter(store, now)

	res := l.Check(context.Background(), testShare, testAddr)
	assert.True(t, res.Allowed)
	assert.Equal(t, MaxAttempts-2, res.RemainingAttempts)
}

func TestCheckFailsClosedOnStoreError(t *testing.T) {
	store := newFakeAttemptStore()
	store.getErr = errors.New("connection refused")
	now := time.Now()
	l := newTestLimiter(store, now)

	for i := 0; i < 10; i++ {
		res := l.Check(context.Background(), testShare, testAddr)
		require.False(t, res.Allowed, "store outage must never allow")
		require.False(t, res.LockedUntil.Before(now), "fail-closed verdict carries a deny window")
	}
}

func TestRecordPropagatesStoreError(t *testing.T) {
	store := newFakeAttemptStore()
	store.recordErr = errors.New("connection refused")
	l := newTestLimiter(store, time.Now())

	assert.Error(t, l.Record(context.Background(), testShare, testAddr, false))
}

func TestCheckGeneric(t *testing.T) {
	store := newFakeAttemptStore()
	l := newTestLimiter(store, time.Now())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		assert.True(t, l.CheckGeneric(ctx, "info", testAddr, time.Minute, 10))
	}
	assert.False(t, l.CheckGeneric(ctx, "info", testAddr, time.Minute, 10))

	// Independent scopes do not share counters.
	assert.True(t, l.CheckGeneric(ctx, "download", testAddr, time.Minute, 10))
}

func TestCheckGenericFailsClosed(t *testing.T) {
	store := newFakeAttemptStore()
	store.throttleErr = errors.New("connection refused")
	l := newTestLimiter(store, time.Now())

	assert.False(t, l.CheckGeneric(context.Background(), "info", testAddr, time.Minute, 10))
}
