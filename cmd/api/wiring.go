package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/snapstudio-api/internal/cache"
	"github.com/noah-isme/snapstudio-api/internal/capacity"
	"github.com/noah-isme/snapstudio-api/internal/checkout"
	"github.com/noah-isme/snapstudio-api/internal/common"
	"github.com/noah-isme/snapstudio-api/internal/config"
	"github.com/noah-isme/snapstudio-api/internal/discount"
	"github.com/noah-isme/snapstudio-api/internal/events"
	"github.com/noah-isme/snapstudio-api/internal/health"
	"github.com/noah-isme/snapstudio-api/internal/lock"
	"github.com/noah-isme/snapstudio-api/internal/order"
	"github.com/noah-isme/snapstudio-api/internal/pricing"
	"github.com/noah-isme/snapstudio-api/internal/ratelimit"
	"github.com/noah-isme/snapstudio-api/internal/resilience"
)

// dependencies are the connections opened by main. Pool and redis are nil
// when their URLs are not configured.
type dependencies struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client
}

type services struct {
	pricing   *pricing.Handler
	discounts *discount.Handler
	capacity  *capacity.Handler
	checkout  *checkout.Handler
	limiter   ratelimit.Handler
	idem      common.Idem
	probes    []health.Probe
	closers   []func() error
	logger    zerolog.Logger
}

func build(d dependencies) (*services, error) {
	cfg := d.cfg
	s := &services{logger: d.logger}

	calc := pricing.NewCalculator(pricing.DefaultTierTable(), pricing.DefaultCatalog())
	packages := pricing.DefaultPackages()

	discounts := &discount.Service{
		Primary:  discountStore(d),
		Fallback: discount.DefaultTable(),
		Policy:   cfg.DiscountFallbackPolicy,
		Logger:   d.logger.With().Str("component", "discount").Logger(),
	}

	store, err := s.capacityStore(d)
	if err != nil {
		return nil, err
	}
	capCfg := cfg.Capacity()
	capCfg.Surcharges = capacity.SurchargesFromCatalog(calc.AddOns())
	estimator, err := capacity.NewEstimator(store, capCfg, cfg.OverbookPolicy)
	if err != nil {
		return nil, err
	}
	estimator.Logger = d.logger.With().Str("component", "capacity").Logger()

	var quotes cache.Store = cache.NewMemory(cfg.QuoteTTL)
	if d.redis != nil {
		quotes = cache.NewCache(d.redis, cfg.QuoteTTL)
	}

	bus := &events.Bus{Publishers: []events.Publisher{s.publisher(d)}}

	checkoutSvc := &checkout.Service{
		Calculator:  calc,
		Packages:    packages,
		Discounts:   discounts,
		Estimator:   estimator,
		Composer:    order.NewComposer(cfg.CurrencyCode),
		Cache:       quotes,
		Events:      bus,
		Timing:      cfg.ReservationTiming,
		MaxQuantity: cfg.OrderMaxQuantity,
		Logger:      d.logger.With().Str("component", "checkout").Logger(),
	}

	s.pricing = &pricing.Handler{Calc: calc, Packages: packages}
	s.discounts = &discount.Handler{Svc: discounts}
	s.capacity = &capacity.Handler{Estimator: estimator}
	s.checkout = &checkout.Handler{Svc: checkoutSvc}
	s.limiter = ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: d.redis},
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP("discount-validate"),
			Window: cfg.RateLimitDiscountWindow,
			Max:    cfg.RateLimitDiscountMax,
		},
		OnError: func(err error) { d.logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	s.idem = common.Idem{R: d.redis, TTL: cfg.IdempotencyTTL}

	if d.pool != nil {
		s.probes = append(s.probes, health.Probe{Name: "db", Check: d.pool.Ping})
	}
	if d.redis != nil {
		s.probes = append(s.probes, health.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return d.redis.Ping(ctx).Err()
		}})
	}
	return s, nil
}

// discountStore picks the authoritative code source: the remote discount
// service, then Postgres, then the built-in table.
func discountStore(d dependencies) discount.Store {
	cfg := d.cfg
	switch {
	case cfg.DiscountServiceURL != "":
		breaker := resilience.NewBreaker(cfg.CircuitDiscount.MinRequests, cfg.CircuitDiscount.FailureRate, cfg.CircuitDiscount.OpenFor).
			WithTarget("discount_service").
			WithLogger(d.logger)
		return &discount.RemoteStore{
			BaseURL: cfg.DiscountServiceURL,
			Client: resilience.HTTPClient{
				Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
				Breaker:     breaker,
				BaseBackoff: cfg.Retry.Base,
				MaxAttempts: cfg.Retry.MaxAttempts,
				Jitter:      float64(cfg.Retry.JitterPercent) / 100,
				Timeout:     cfg.DiscountTimeout,
			},
		}
	case d.pool != nil:
		return &discount.PGStore{Q: d.pool}
	default:
		return discount.DefaultTable()
	}
}

func (s *services) capacityStore(d dependencies) (capacity.Store, error) {
	cfg := d.cfg
	switch cfg.CapacityStore {
	case config.CapacityStoreRedis:
		if d.redis == nil {
			return nil, errors.New("capacity: redis store needs a redis client")
		}
		return &capacity.RedisStore{
			R:       d.redis,
			Locker:  lock.Locker{R: d.redis, RetryBackoff: cfg.LockRetryBackoff},
			LockTTL: cfg.LockTTL,
		}, nil
	case config.CapacityStorePebble:
		ps, err := capacity.OpenPebbleStore(cfg.CapacityPebbleDir)
		if err != nil {
			return nil, fmt.Errorf("capacity: open pebble: %w", err)
		}
		s.closers = append(s.closers, ps.Close)
		return ps, nil
	default:
		return capacity.NewMemoryStore(), nil
	}
}

func (s *services) publisher(d dependencies) events.Publisher {
	if d.cfg.KafkaBrokers == "" {
		return events.LogPublisher{Logger: d.logger.With().Str("component", "events").Logger()}
	}
	kp := events.NewKafkaPublisher(d.cfg.KafkaBrokers, d.cfg.KafkaTopic)
	s.closers = append(s.closers, kp.Close)
	return kp
}

func (s *services) routes(v chi.Router) {
	v.Route("/pricing", func(p chi.Router) {
		p.Post("/quote", s.pricing.Quote)
		p.Get("/tiers", s.pricing.Tiers)
		p.Get("/addons", s.pricing.AddOns)
		p.Get("/packages", s.pricing.PackagesList)
	})
	v.With(s.limiter.Middleware).Post("/discounts/validate", s.discounts.Validate)
	v.Get("/capacity", s.capacity.Status)
	v.Get("/capacity/estimate", s.capacity.Estimate)
	v.Route("/orders", func(o chi.Router) {
		o.Use(s.idem.Middleware)
		o.Post("/quote", s.checkout.Quote)
		o.Post("/{id}/confirm", s.checkout.Confirm)
	})
}

func (s *services) close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.logger.Error().Err(err).Msg("close dependency")
		}
	}
}
