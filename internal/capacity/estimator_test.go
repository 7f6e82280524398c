package capacity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// Monday.
var refTime = date(2026, 3, 2)

func newTestEstimator(t *testing.T, overbook OverbookPolicy) (*Estimator, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	est, err := NewEstimator(store, DefaultConfig(), overbook)
	require.NoError(t, err)
	est.Now = func() time.Time { return refTime }
	return est, store
}

func fill(t *testing.T, est *Estimator, class Class, day string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := est.Reserve(context.Background(), fmt.Sprintf("%s-%s-%d", day, class, i), class, day)
		require.NoError(t, err)
	}
}

func TestStatus(t *testing.T) {
	est, _ := newTestEstimator(t, OverbookReject)
	fill(t, est, ClassRegular, "2026-03-02", 5)
	fill(t, est, ClassRush12h, "2026-03-02", 2)

	st, err := est.Status(context.Background(), refTime)
	require.NoError(t, err)
	require.Equal(t, "2026-03-02", st.Day)
	require.Equal(t, ClassStatus{Class: ClassRegular, Current: 5, Capacity: 15, Available: 10, PercentUsed: 33}, st.Regular)
	require.Equal(t, 5, st.Rush24h.Available)
	require.Equal(t, 0, st.Rush12h.Available)
	require.Equal(t, 100, st.Rush12h.PercentUsed)
}

func TestRegularEstimateAddsQueueDelay(t *testing.T) {
	cases := []struct {
		booked int
		delay  int
		want   time.Time
		slot   string
	}{
		{0, 0, date(2026, 3, 4), "2026-03-02"},
		{4, 2, date(2026, 3, 6), "2026-03-02"},
		{8, 3, date(2026, 3, 9), "2026-03-02"},
		{15, 4, date(2026, 3, 10), "2026-03-03"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d booked", tc.booked), func(t *testing.T) {
			est, _ := newTestEstimator(t, OverbookReject)
			fill(t, est, ClassRegular, "2026-03-02", tc.booked)

			got, err := est.Estimate(context.Background(), ClassRegular, refTime)
			require.NoError(t, err)
			require.True(t, got.Available)
			require.Equal(t, tc.delay, got.QueueDelayDays)
			require.Equal(t, tc.want, got.Date)
			require.True(t, got.Surcharge.IsZero())
			require.Equal(t, tc.slot, got.SlotDay)
		})
	}
}

func TestRegularEstimateSkipsFullDays(t *testing.T) {
	est, _ := newTestEstimator(t, OverbookReject)
	fill(t, est, ClassRegular, "2026-03-02", 15)
	fill(t, est, ClassRegular, "2026-03-03", 15)

	got, err := est.Estimate(context.Background(), ClassRegular, refTime)
	require.NoError(t, err)
	require.True(t, got.Available)
	require.Equal(t, "2026-03-04", got.SlotDay)

	_, err = est.Reserve(context.Background(), "sixteenth", ClassRegular, got.SlotDay)
	require.NoError(t, err)
}

func TestRegularEstimateFromWeekend(t *testing.T) {
	est, _ := newTestEstimator(t, OverbookReject)
	got, err := est.Estimate(context.Background(), ClassRegular, date(2026, 3, 7))
	require.NoError(t, err)
	require.Equal(t, date(2026, 3, 10), got.Date)
}

func TestRushEstimateAvailableToday(t *testing.T) {
	est, _ := newTestEstimator(t, OverbookReject)
	got, err := est.Estimate(context.Background(), ClassRush12h, refTime)
	require.NoError(t, err)
	require.True(t, got.Available)
	require.Equal(t, refTime.Add(12*time.Hour), got.Date)
	require.True(t, pricing.NewMoney("0.5").Equal(got.Surcharge))
}

func TestRushEstimateFullTodayFindsNextDay(t *testing.T) {
	est, _ := newTestEstimator(t, OverbookReject)
	fill(t, est, ClassRush24h, "2026-03-02", 5)

	got, err := est.Estimate(context.Background(), ClassRush24h, refTime)
	require.NoError(t, err)
	require.False(t, got.Available)
	require.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), got.Date)
	require.Equal(t, "2026-03-03", got.SlotDay)
	require.True(t, pricing.NewMoney("0.25").Equal(got.Surcharge))
	require.Contains(t, got.Message, "Tue, Mar 3")
}

func TestRushEstimateSkipsWeekendDuringSearch(t *testing.T) {
	est, _ := newTestEstimator(t, OverbookReject)
	fill(t, est, ClassRush12h, "2026-03-06", 2)

	got, err := est.Estimate(context.Background(), ClassRush12h, date(2026, 3, 6))
	require.NoError(t, err)
	require.False(t, got.Available)
	require.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), got.Date)
}

func TestRushEstimateFallsBackAfterSearchWindow(t *testing.T) {
	est, _ := newTestEstimator(t, OverbookReject)
	for _, day := range []string{"2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05", "2026-03-06", "2026-03-09"} {
		fill(t, est, ClassRush12h, day, 2)
	}

	got, err := est.Estimate(context.Background(), ClassRush12h, refTime)
	require.NoError(t, err)
	require.False(t, got.Available)
	require.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), got.Date)
}

func TestReserveIsIdempotentPerOrder(t *testing.T) {
	est, store := newTestEstimator(t, OverbookReject)
	ctx := context.Background()

	first, err := est.Reserve(ctx, "SS123456ABC", ClassRush24h, "2026-03-02")
	require.NoError(t, err)
	second, err := est.Reserve(ctx, "SS123456ABC", ClassRush24h, "2026-03-02")
	require.NoError(t, err)
	require.Equal(t, first, second)

	n, err := store.Count(ctx, "2026-03-02", ClassRush24h)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := est.Lookup(ctx, "SS123456ABC")
	require.NoError(t, err)
	require.Equal(t, ClassRush24h, got.Class)
}

func TestReserveOverbookPolicies(t *testing.T) {
	ctx := context.Background()

	rejecting, _ := newTestEstimator(t, OverbookReject)
	fill(t, rejecting, ClassRush12h, "2026-03-02", 2)
	_, err := rejecting.Reserve(ctx, "late", ClassRush12h, "2026-03-02")
	require.ErrorIs(t, err, ErrCapacityExhausted)

	flagging, store := newTestEstimator(t, OverbookFlag)
	fill(t, flagging, ClassRush12h, "2026-03-02", 2)
	res, err := flagging.Reserve(ctx, "late", ClassRush12h, "2026-03-02")
	require.NoError(t, err)
	require.True(t, res.Overbooked)

	st, err := flagging.Status(ctx, refTime)
	require.NoError(t, err)
	require.Equal(t, 0, st.Rush12h.Available)
	n, _ := store.Count(ctx, "2026-03-02", ClassRush12h)
	require.Equal(t, 3, n)
}

func TestUrgencyThresholds(t *testing.T) {
	cases := []struct {
		pct   int
		level Level
		color string
	}{
		{100, LevelHigh, "red"},
		{90, LevelHigh, "red"},
		{89, LevelMedium, "orange"},
		{70, LevelMedium, "orange"},
		{69, LevelLow, "yellow"},
		{50, LevelLow, "yellow"},
		{49, LevelNormal, "green"},
		{0, LevelNormal, "green"},
	}
	for _, tc := range cases {
		u := UrgencyFor(ClassStatus{PercentUsed: tc.pct, Current: 3, Available: 4})
		require.Equal(t, tc.level, u.Level, "pct %d", tc.pct)
		require.Equal(t, tc.color, u.Color, "pct %d", tc.pct)
	}
	require.Equal(t, "4 slots remaining today", UrgencyFor(ClassStatus{PercentUsed: 73, Available: 4}).Message)
	require.Equal(t, "8 orders started today", UrgencyFor(ClassStatus{PercentUsed: 53, Current: 8}).Message)
}

func TestEstimatorUrgencyFromStore(t *testing.T) {
	est, _ := newTestEstimator(t, OverbookReject)
	fill(t, est, ClassRegular, "2026-03-02", 14)
	u, err := est.Urgency(context.Background(), refTime)
	require.NoError(t, err)
	require.Equal(t, LevelHigh, u.Level)
}

func TestSurchargesFromCatalog(t *testing.T) {
	s := SurchargesFromCatalog(pricing.DefaultCatalog())
	require.True(t, pricing.NewMoney("0.25").Equal(s[ClassRush24h]))
	require.True(t, pricing.NewMoney("0.50").Equal(s[ClassRush12h]))
	require.True(t, s[ClassRegular].IsZero())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RushHours = map[Class]int{ClassRush24h: 24}
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	_, err := NewEstimator(nil, DefaultConfig(), OverbookReject)
	require.Error(t, err)
}
