package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/snapstudio-api/internal/cache"
	"github.com/noah-isme/snapstudio-api/internal/capacity"
	"github.com/noah-isme/snapstudio-api/internal/discount"
	"github.com/noah-isme/snapstudio-api/internal/events"
	"github.com/noah-isme/snapstudio-api/internal/obs"
	"github.com/noah-isme/snapstudio-api/internal/order"
	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

var (
	// ErrQuoteNotFound is returned by Confirm for unknown or expired quotes.
	ErrQuoteNotFound = errors.New("checkout: quote not found")
	// ErrUnavailable wraps failures of the capacity or cache stores.
	ErrUnavailable = errors.New("checkout: backing store unavailable")
)

// Quoted is the result of Quote: the composed order plus inline discount
// feedback. A failed discount code never fails the quote.
type Quoted struct {
	Order       order.Order           `json:"order"`
	Discount    *discount.Feedback    `json:"discount,omitempty"`
	Reservation *capacity.Reservation `json:"reservation,omitempty"`
}

// Confirmed is the result of Confirm.
type Confirmed struct {
	Order       order.Order          `json:"order"`
	Reservation capacity.Reservation `json:"reservation"`
	Replayed    bool                 `json:"replayed,omitempty"`
}

// record is the cached state of a quote between Quote and Confirm.
type record struct {
	Order     order.Order `json:"order"`
	Confirmed bool        `json:"confirmed"`
}

// Service orchestrates pricing, discount evaluation, delivery estimation and
// order composition.
type Service struct {
	Calculator  *pricing.Calculator
	Packages    *pricing.PackageCatalog
	Discounts   *discount.Service
	Estimator   *capacity.Estimator
	Composer    *order.Composer
	Cache       cache.Store
	Events      *events.Bus
	Timing      capacity.Timing
	MaxQuantity int
	Now         func() time.Time
	Logger      zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) rules() order.Rules {
	return order.Rules{Catalog: s.Calculator.AddOns(), Packages: s.Packages, MaxQuantity: s.MaxQuantity}
}

// Quote validates req and composes an order. With quote timing the delivery
// slot is reserved before the order is returned.
func (s *Service) Quote(ctx context.Context, req order.Request) (Quoted, error) {
	if err := order.Validate(req, s.rules()).Err(); err != nil {
		return Quoted{}, err
	}
	class, err := order.ResolveClass(req)
	if err != nil {
		return Quoted{}, (order.FieldErrors{"serviceClass": err.Error()}).Err()
	}

	opts := pricing.Options{SelectedMarketplace: req.SelectedMarketplace}
	var q pricing.Quote
	if id := strings.TrimSpace(req.PackageID); id != "" {
		pkg, _ := s.Packages.Lookup(id)
		q = s.Calculator.CalculatePackage(pkg, req.AddOns, opts)
	} else {
		q = s.Calculator.Calculate(req.Quantity, req.AddOns, opts)
	}
	if obs.QuotesTotal != nil {
		obs.QuotesTotal.WithLabelValues(string(q.Source)).Inc()
	}

	var (
		ev       *discount.Evaluation
		feedback *discount.Feedback
	)
	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		ev, feedback = s.evaluateDiscount(ctx, code, q.Subtotal)
	}

	now := s.now()
	est, err := s.Estimator.Estimate(ctx, class, now)
	if err != nil {
		return Quoted{}, fmt.Errorf("%w: estimate delivery: %v", ErrUnavailable, err)
	}

	o, err := s.Composer.Compose(order.Input{Quote: q, Discount: ev, Delivery: est})
	if err != nil {
		return Quoted{}, err
	}

	// Stored before any slot is taken.
	if s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, cache.KeyQuote(o.ID), record{Order: o}); err != nil {
			return Quoted{}, fmt.Errorf("%w: cache quote: %v", ErrUnavailable, err)
		}
	}

	out := Quoted{Order: o, Discount: feedback}
	if s.Timing == capacity.TimingQuote {
		res, err := s.Estimator.Reserve(ctx, o.ID, class, est.SlotDay)
		if err != nil {
			return Quoted{}, reserveError(err)
		}
		out.Reservation = &res
	}
	s.emit(ctx, events.TopicOrderQuoted, o)

	s.Logger.Info().
		Str("order_id", o.ID).
		Str("source", string(o.Source)).
		Str("class", string(class)).
		Str("grand_total", o.GrandTotal.StringFixed(2)).
		Bool("discounted", o.Discount != nil).
		Msg("order_quoted")
	return out, nil
}

func (s *Service) evaluateDiscount(ctx context.Context, code string, subtotal pricing.Money) (*discount.Evaluation, *discount.Feedback) {
	if s.Discounts == nil {
		fb := discount.NewFeedback(code, discount.Evaluation{}, discount.ErrValidationUnreachable)
		return nil, &fb
	}
	ev, err := s.Discounts.Evaluate(ctx, code, subtotal)
	fb := discount.NewFeedback(code, ev, err)
	if err != nil {
		return nil, &fb
	}
	return &ev, &fb
}

// Confirm is called after payment. It reserves the slot under confirmation
// timing, records discount usage and emits order.confirmed. Only the caller
// that claims the confirmation key performs those side effects; every other
// confirmation of the order, concurrent or later, replays the stored result.
func (s *Service) Confirm(ctx context.Context, orderID string) (Confirmed, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" || s.Cache == nil {
		return Confirmed{}, ErrQuoteNotFound
	}
	var rec record
	ok, err := s.Cache.GetJSON(ctx, cache.KeyQuote(orderID), &rec)
	if err != nil {
		return Confirmed{}, fmt.Errorf("%w: load quote: %v", ErrUnavailable, err)
	}
	if !ok {
		return Confirmed{}, ErrQuoteNotFound
	}
	o := rec.Order

	res, err := s.reservation(ctx, o)
	if err != nil {
		return Confirmed{}, reserveError(err)
	}
	if rec.Confirmed {
		return Confirmed{Order: o, Reservation: res, Replayed: true}, nil
	}
	claimed, err := s.Cache.ClaimJSON(ctx, cache.KeyConfirm(o.ID), res)
	if err != nil {
		return Confirmed{}, fmt.Errorf("%w: claim confirmation: %v", ErrUnavailable, err)
	}
	if !claimed {
		return Confirmed{Order: o, Reservation: res, Replayed: true}, nil
	}

	if o.Discount != nil && s.Discounts != nil {
		if err := s.Discounts.RecordUsage(ctx, o.Discount.Code); err != nil {
			s.Logger.Warn().Err(err).Str("order_id", o.ID).Str("code", o.Discount.Code).Msg("record discount usage")
		}
	}

	rec.Confirmed = true
	if err := s.Cache.SetJSON(ctx, cache.KeyQuote(o.ID), rec); err != nil {
		s.Logger.Warn().Err(err).Str("order_id", o.ID).Msg("persist confirmation")
	}
	if obs.OrdersConfirmedTotal != nil {
		obs.OrdersConfirmedTotal.Inc()
	}
	s.emit(ctx, events.TopicOrderConfirmed, o)

	s.Logger.Info().
		Str("order_id", o.ID).
		Str("slot_day", res.Day).
		Bool("overbooked", res.Overbooked).
		Msg("order_confirmed")
	return Confirmed{Order: o, Reservation: res}, nil
}

func (s *Service) emit(ctx context.Context, topic string, o order.Order) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"orderId":      o.ID,
		"grandTotal":   o.GrandTotal,
		"currency":     o.Currency,
		"serviceClass": o.ServiceClass,
		"deliveryDate": o.Delivery.Date,
	}
	if o.Discount != nil {
		payload["discountCode"] = o.Discount.Code
	}
	if _, err := s.Events.Emit(ctx, topic, o.ID, payload); err != nil {
		s.Logger.Error().Err(err).Str("order_id", o.ID).Str("topic", topic).Msg("emit event")
	}
}

// reservation returns the slot held by o, taking one when none exists yet.
// Under quote timing the slot was taken by Quote.
func (s *Service) reservation(ctx context.Context, o order.Order) (capacity.Reservation, error) {
	if s.Timing == capacity.TimingQuote {
		res, err := s.Estimator.Lookup(ctx, o.ID)
		if !errors.Is(err, capacity.ErrReservationNotFound) {
			return res, err
		}
	}
	return s.Estimator.Reserve(ctx, o.ID, o.ServiceClass, o.Delivery.SlotDay)
}

func reserveError(err error) error {
	if errors.Is(err, capacity.ErrCapacityExhausted) {
		return err
	}
	return fmt.Errorf("%w: reserve slot: %v", ErrUnavailable, err)
}
