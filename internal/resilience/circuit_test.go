package resilience_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/snapstudio-api/internal/resilience"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *clock { return &clock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)} }

func TestBreakerOpensAtFailureRate(t *testing.T) {
	clk := newClock()
	b := resilience.NewBreaker(4, 0.5, 30*time.Second).WithClock(clk.Now)
	ctx := context.Background()

	for _, ok := range []bool{true, false, true} {
		require.True(t, b.Allow(ctx))
		b.Report(ctx, ok)
	}
	require.Equal(t, resilience.Closed, b.State(), "below minimum requests")

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow(ctx))
}

func TestBreakerOldFailuresAgeOut(t *testing.T) {
	b := resilience.NewBreaker(2, 0.75, time.Minute)
	ctx := context.Background()

	b.Report(ctx, false)
	b.Report(ctx, true)
	for range 3 {
		b.Report(ctx, true)
	}
	b.Report(ctx, false)
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerHalfOpenAdmitsSingleProbe(t *testing.T) {
	clk := newClock()
	b := resilience.NewBreaker(1, 0.5, 30*time.Second).WithClock(clk.Now)
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.False(t, b.Allow(ctx))

	clk.Advance(30 * time.Second)
	require.True(t, b.Allow(ctx), "cool-off elapsed")
	require.Equal(t, resilience.HalfOpen, b.State())
	require.False(t, b.Allow(ctx), "probe already in flight")

	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())

	clk.Advance(30 * time.Second)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	require.Equal(t, resilience.Closed, b.State())
	require.True(t, b.Allow(ctx))
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))
	require.Equal(t, resilience.MaxBackoff, resilience.Backoff(base, 30, 0))

	for range 50 {
		d := resilience.Backoff(base, 2, 0.2)
		require.GreaterOrEqual(t, d, 160*time.Millisecond)
		require.LessOrEqual(t, d, 240*time.Millisecond)
	}
}
