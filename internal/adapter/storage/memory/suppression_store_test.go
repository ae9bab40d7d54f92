package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*SuppressionStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	s := NewSuppressionStore(time.Hour)
	s.now = clock.Now
	t.Cleanup(s.Close)
	return s, clock
}

func TestSuppressionStore_ClaimConfirmRelease(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Claim(ctx, "k", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.Claim(ctx, "k", 2*time.Minute)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "k"))
	ok, _ = s.Claim(ctx, "k", 2*time.Minute)
	assert.True(t, ok, "released key can be claimed again")

	require.NoError(t, s.Confirm(ctx, "k", 10*time.Hour))
	require.NoError(t, s.Release(ctx, "k"))

	clock.Advance(9 * time.Hour)
	ok, _ = s.Claim(ctx, "k", 2*time.Minute)
	assert.False(t, ok, "sent marker survives release until it expires")

	clock.Advance(2 * time.Hour)
	ok, _ = s.Claim(ctx, "k", 2*time.Minute)
	assert.True(t, ok)
}

func TestSuppressionStore_EvictExpired(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Claim(ctx, "a", time.Minute)
	_ = s.Confirm(ctx, "b", time.Hour)
	assert.Equal(t, 2, s.Len())

	clock.Advance(2 * time.Minute)
	s.evictExpired()
	assert.Equal(t, 1, s.Len())
}

func TestSuppressionStore_ConcurrentClaims(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Claim(ctx, "race", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestSuppressionStore_CloseIsIdempotent(t *testing.T) {
	s := NewSuppressionStore(10 * time.Millisecond)
	s.Close()
	s.Close()
}

func TestNonceStore_RejectsReplayUntilExpiry(t *testing.T) {
	s, clock := newTestStore(t)
	nonces := NewNonceStore(s)
	ctx := context.Background()

	ok, err := nonces.CheckAndSet(ctx, "payments", "n-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = nonces.CheckAndSet(ctx, "payments", "n-1", time.Minute)
	assert.False(t, ok)

	ok, _ = nonces.CheckAndSet(ctx, "payouts", "n-1", time.Minute)
	assert.True(t, ok, "scopes are independent")

	clock.Advance(2 * time.Minute)
	ok, _ = nonces.CheckAndSet(ctx, "payments", "n-1", time.Minute)
	assert.True(t, ok)
}
