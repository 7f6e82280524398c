package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/snapstudio-api/internal/cache"
	"github.com/noah-isme/snapstudio-api/internal/capacity"
	"github.com/noah-isme/snapstudio-api/internal/discount"
	"github.com/noah-isme/snapstudio-api/internal/events"
	"github.com/noah-isme/snapstudio-api/internal/order"
	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// Monday 10:00 UTC.
var refTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Topic)
	}
	return out
}

type fixture struct {
	svc       *Service
	store     *capacity.MemoryStore
	codes     *discount.TableStore
	published *capturePublisher
}

func newFixture(t *testing.T, timing capacity.Timing) fixture {
	t.Helper()
	clock := func() time.Time { return refTime }

	store := capacity.NewMemoryStore()
	est, err := capacity.NewEstimator(store, capacity.DefaultConfig(), capacity.OverbookReject)
	require.NoError(t, err)
	est.Now = clock

	codes := discount.DefaultTable()
	ids := order.NewIDGenerator()
	ids.Now = clock
	published := &capturePublisher{}

	svc := &Service{
		Calculator: pricing.NewCalculator(pricing.DefaultTierTable(), pricing.DefaultCatalog()),
		Packages:   pricing.DefaultPackages(),
		Discounts:  &discount.Service{Primary: codes, Policy: discount.FallbackReject, Now: clock},
		Estimator:  est,
		Composer:   &order.Composer{IDs: ids, Currency: "USD", Now: clock},
		Cache:      cache.NewMemory(time.Hour),
		Events:     &events.Bus{Publishers: []events.Publisher{published}, Now: clock},
		Timing:     timing,
		Now:        clock,
	}
	return fixture{svc: svc, store: store, codes: codes, published: published}
}

func (f fixture) count(t *testing.T, day string, class capacity.Class) int {
	t.Helper()
	n, err := f.store.Count(context.Background(), day, class)
	require.NoError(t, err)
	return n
}

func (f fixture) usage(code string) int {
	for _, c := range f.codes.Codes() {
		if c.Code == code {
			return c.UsageCount
		}
	}
	return -1
}

func requireMoney(t *testing.T, want string, got pricing.Money) {
	t.Helper()
	require.True(t, pricing.NewMoney(want).Equal(got), "want %s got %s", want, got.String())
}

func TestQuoteAppliesDiscountToSubtotalAfterAddOns(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	out, err := f.svc.Quote(context.Background(), order.Request{
		Quantity:     25,
		AddOns:       pricing.Selection{pricing.AddOnComplexBackgroundRemoval: pricing.Qty(2)},
		DiscountCode: "welcome10",
	})
	require.NoError(t, err)

	require.NotNil(t, out.Discount)
	require.True(t, out.Discount.Valid)
	requireMoney(t, "437.30", out.Order.Subtotal)
	requireMoney(t, "43.73", out.Order.DiscountAmount)
	requireMoney(t, "393.57", out.Order.GrandTotal)
	require.Equal(t, "Estimated delivery by Wed, Mar 4", out.Order.Delivery.Message)

	require.Nil(t, out.Reservation)
	require.Equal(t, 0, f.count(t, "2026-03-02", capacity.ClassRegular))
	require.Equal(t, []string{events.TopicOrderQuoted}, f.published.topics())
}

func TestQuoteReportsFailedDiscountInline(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	out, err := f.svc.Quote(context.Background(), order.Request{Quantity: 5, DiscountCode: "FLASH25"})
	require.NoError(t, err)

	require.NotNil(t, out.Discount)
	require.False(t, out.Discount.Valid)
	require.Equal(t, "BELOW_MINIMUM", out.Discount.Error)
	requireMoney(t, "200", *out.Discount.MinimumOrder)
	require.Nil(t, out.Order.Discount)
	requireMoney(t, "94.50", out.Order.GrandTotal)
}

func TestQuoteWithoutDiscountServiceReportsUnreachable(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	f.svc.Discounts = nil
	out, err := f.svc.Quote(context.Background(), order.Request{Quantity: 5, DiscountCode: "WELCOME10"})
	require.NoError(t, err)
	require.Equal(t, "VALIDATION_UNREACHABLE", out.Discount.Error)
	require.True(t, out.Discount.Retryable)
}

func TestQuoteRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	_, err := f.svc.Quote(context.Background(), order.Request{Quantity: 6000, ServiceClass: "rush12h"})

	var verr *order.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "quantity")
	require.Contains(t, verr.Fields, "serviceClass")
	require.Empty(t, f.published.topics())
}

func TestQuotePricesPackages(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	out, err := f.svc.Quote(context.Background(), order.Request{
		PackageID: "professional",
		AddOns:    pricing.Selection{pricing.AddOnRush24h: pricing.Flag(true)},
	})
	require.NoError(t, err)
	require.Equal(t, pricing.SourcePackage, out.Order.Source)
	require.Equal(t, capacity.ClassRush24h, out.Order.ServiceClass)
	requireMoney(t, "311.25", out.Order.GrandTotal)
	require.Equal(t, "Delivered within 24 hours", out.Order.Delivery.Message)
}

func TestQuoteTimingReservesImmediately(t *testing.T) {
	f := newFixture(t, capacity.TimingQuote)
	out, err := f.svc.Quote(context.Background(), order.Request{Quantity: 10})
	require.NoError(t, err)

	require.NotNil(t, out.Reservation)
	require.Equal(t, out.Order.ID, out.Reservation.OrderID)
	require.Equal(t, 1, f.count(t, "2026-03-02", capacity.ClassRegular))

	_, err = f.svc.Confirm(context.Background(), out.Order.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.count(t, "2026-03-02", capacity.ClassRegular))
}

func TestConfirmReservesAndRecordsUsageOnce(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	ctx := context.Background()
	quoted, err := f.svc.Quote(ctx, order.Request{Quantity: 10, DiscountCode: "WELCOME10"})
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm(ctx, quoted.Order.ID)
	require.NoError(t, err)
	require.False(t, confirmed.Replayed)
	require.Equal(t, "2026-03-02", confirmed.Reservation.Day)
	require.Equal(t, 1, f.count(t, "2026-03-02", capacity.ClassRegular))
	require.Equal(t, 1, f.usage("WELCOME10"))

	again, err := f.svc.Confirm(ctx, quoted.Order.ID)
	require.NoError(t, err)
	require.True(t, again.Replayed)
	require.Equal(t, 1, f.count(t, "2026-03-02", capacity.ClassRegular))
	require.Equal(t, 1, f.usage("WELCOME10"))
	require.Equal(t, []string{events.TopicOrderQuoted, events.TopicOrderConfirmed}, f.published.topics())
}

func TestConfirmUnknownQuote(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	_, err := f.svc.Confirm(context.Background(), "SS000000AAA")
	require.ErrorIs(t, err, ErrQuoteNotFound)
	_, err = f.svc.Confirm(context.Background(), " ")
	require.ErrorIs(t, err, ErrQuoteNotFound)
}

func TestFullRushClassBooksNextFreeDay(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := f.svc.Estimator.Reserve(ctx, id, capacity.ClassRush12h, "2026-03-02")
		require.NoError(t, err)
	}

	quoted, err := f.svc.Quote(ctx, order.Request{Quantity: 10, ServiceClass: "rush12h", AddOns: pricing.Selection{pricing.AddOnRush12h: pricing.Flag(true)}})
	require.NoError(t, err)
	require.False(t, quoted.Order.Delivery.Available)
	require.Equal(t, "Rush 12h is fully booked today. Next available: Tue, Mar 3", quoted.Order.Delivery.Message)
	require.Equal(t, "2026-03-03", quoted.Order.Delivery.SlotDay)

	confirmed, err := f.svc.Confirm(ctx, quoted.Order.ID)
	require.NoError(t, err)
	require.Equal(t, "2026-03-03", confirmed.Reservation.Day)
}

func TestConfirmationTimingCanRunOutOfSlots(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	ctx := context.Background()
	_, err := f.svc.Estimator.Reserve(ctx, "taken", capacity.ClassRush12h, "2026-03-02")
	require.NoError(t, err)

	req := order.Request{Quantity: 10, AddOns: pricing.Selection{pricing.AddOnRush12h: pricing.Flag(true)}}
	first, err := f.svc.Quote(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Quote(ctx, req)
	require.NoError(t, err)
	require.True(t, second.Order.Delivery.Available)

	_, err = f.svc.Confirm(ctx, first.Order.ID)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, second.Order.ID)
	require.ErrorIs(t, err, capacity.ErrCapacityExhausted)
	require.Equal(t, 2, f.count(t, "2026-03-02", capacity.ClassRush12h))
}

func quoteRush12h() order.Request {
	return order.Request{Quantity: 10, AddOns: pricing.Selection{pricing.AddOnRush12h: pricing.Flag(true)}}
}

// rendezvousStore holds every Reserve until n callers have arrived so that
// concurrent confirmations overlap inside the reservation step.
type rendezvousStore struct {
	*capacity.MemoryStore
	arrived sync.WaitGroup
}

func newRendezvousStore(store *capacity.MemoryStore, n int) *rendezvousStore {
	s := &rendezvousStore{MemoryStore: store}
	s.arrived.Add(n)
	return s
}

func (s *rendezvousStore) Reserve(ctx context.Context, res capacity.Reservation, limit int, allowOverbook bool) (capacity.Reservation, error) {
	s.arrived.Done()
	s.arrived.Wait()
	return s.MemoryStore.Reserve(ctx, res, limit, allowOverbook)
}

func TestConcurrentConfirmsRecordUsageOnce(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	ctx := context.Background()
	quoted, err := f.svc.Quote(ctx, order.Request{Quantity: 10, DiscountCode: "WELCOME10"})
	require.NoError(t, err)

	est, err := capacity.NewEstimator(newRendezvousStore(f.store, 2), capacity.DefaultConfig(), capacity.OverbookReject)
	require.NoError(t, err)
	est.Now = f.svc.Now
	f.svc.Estimator = est

	results := make([]Confirmed, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.svc.Confirm(ctx, quoted.Order.ID)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotEqual(t, results[0].Replayed, results[1].Replayed)
	require.Equal(t, 1, f.usage("WELCOME10"))
	require.Equal(t, 1, f.count(t, "2026-03-02", capacity.ClassRegular))
	require.Equal(t, []string{events.TopicOrderQuoted, events.TopicOrderConfirmed}, f.published.topics())
}

func TestSixteenthStandardOrderConfirmsOnNextDay(t *testing.T) {
	f := newFixture(t, capacity.TimingConfirmation)
	ctx := context.Background()
	for range 15 {
		quoted, err := f.svc.Quote(ctx, order.Request{Quantity: 10})
		require.NoError(t, err)
		_, err = f.svc.Confirm(ctx, quoted.Order.ID)
		require.NoError(t, err)
	}
	require.Equal(t, 15, f.count(t, "2026-03-02", capacity.ClassRegular))

	quoted, err := f.svc.Quote(ctx, order.Request{Quantity: 10})
	require.NoError(t, err)
	require.True(t, quoted.Order.Delivery.Available)
	require.Equal(t, "2026-03-03", quoted.Order.Delivery.SlotDay)

	confirmed, err := f.svc.Confirm(ctx, quoted.Order.ID)
	require.NoError(t, err)
	require.Equal(t, "2026-03-03", confirmed.Reservation.Day)
	require.Equal(t, 1, f.count(t, "2026-03-03", capacity.ClassRegular))
}

type failingCache struct {
	*cache.Memory
}

func (failingCache) SetJSON(context.Context, string, any) error {
	return errors.New("cache down")
}

func TestQuoteTimingLeavesNoReservationWhenCacheFails(t *testing.T) {
	f := newFixture(t, capacity.TimingQuote)
	f.svc.Cache = failingCache{Memory: cache.NewMemory(time.Hour)}

	_, err := f.svc.Quote(context.Background(), order.Request{Quantity: 10})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 0, f.count(t, "2026-03-02", capacity.ClassRegular))
	require.Empty(t, f.published.topics())
}
