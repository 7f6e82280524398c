package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/snapstudio-api/internal/obs"
	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// FallbackPolicy decides what happens when the primary store is unreachable.
type FallbackPolicy string

const (
	// FallbackReject surfaces ErrValidationUnreachable so the customer retries.
	FallbackReject FallbackPolicy = "reject"
	// FallbackLocal trusts the local table. Not permitted in production.
	FallbackLocal FallbackPolicy = "local"
)

// ParseFallbackPolicy parses a policy name; empty means reject.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FallbackReject:
		return FallbackReject, nil
	case FallbackLocal:
		return FallbackLocal, nil
	default:
		return "", fmt.Errorf("discount: unknown fallback policy %q", s)
	}
}

// Source tells which store answered a lookup.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Validation is a code that passed existence, expiry and usage checks.
type Validation struct {
	Code   Code
	Source Source
}

// Evaluation is a validated code applied to an order value.
type Evaluation struct {
	Result
	Source      Source
	Description string
}

// Service validates and applies discount codes against a primary store with
// an explicit fallback policy.
type Service struct {
	Primary  Store
	Fallback Store
	Policy   FallbackPolicy
	Now      func() time.Time
	Logger   zerolog.Logger
}

// Validate resolves code and runs the fail-fast checks: existence, expiry,
// usage limit.
func (s *Service) Validate(ctx context.Context, code string) (Validation, error) {
	if s == nil || s.Primary == nil {
		return Validation{}, errors.New("discount service not configured")
	}
	normalized := Normalize(code)
	if normalized == "" {
		s.record(SourcePrimary, ErrInvalidCode)
		return Validation{}, ErrInvalidCode
	}
	c, source, err := s.lookup(ctx, normalized)
	if err == nil {
		err = c.Validate(s.now())
	}
	s.record(source, err)
	if err != nil {
		return Validation{}, err
	}
	return Validation{Code: c, Source: source}, nil
}

// Evaluate validates code and applies it to orderValue, the subtotal after
// add-ons.
func (s *Service) Evaluate(ctx context.Context, code string, orderValue pricing.Money) (Evaluation, error) {
	v, err := s.Validate(ctx, code)
	if err != nil {
		return Evaluation{}, err
	}
	res, err := Apply(v.Code, orderValue)
	if err != nil {
		s.record(v.Source, err)
		return Evaluation{}, err
	}
	return Evaluation{Result: res, Source: v.Source, Description: v.Code.Description}, nil
}

// RecordUsage increments the primary store's usage counter after a confirmed
// order. Stores that do not track usage are skipped.
func (s *Service) RecordUsage(ctx context.Context, code string) error {
	if s == nil || s.Primary == nil {
		return errors.New("discount service not configured")
	}
	recorder, ok := s.Primary.(UsageRecorder)
	if !ok {
		s.Logger.Debug().Str("code", Normalize(code)).Msg("discount_usage_not_tracked")
		return nil
	}
	return recorder.RecordUsage(ctx, Normalize(code))
}

func (s *Service) lookup(ctx context.Context, code string) (Code, Source, error) {
	c, err := s.Primary.Lookup(ctx, code)
	if err == nil || !errors.Is(err, ErrValidationUnreachable) {
		return c, SourcePrimary, err
	}
	if s.Policy != FallbackLocal || s.Fallback == nil {
		s.Logger.Warn().Err(err).Str("code", code).Str("policy", string(s.Policy)).Msg("discount_validation_unreachable")
		return Code{}, SourcePrimary, err
	}
	s.Logger.Warn().Err(err).Str("code", code).Msg("discount_fallback_local_table")
	if obs.DiscountFallbackTotal != nil {
		obs.DiscountFallbackTotal.Inc()
	}
	c, err = s.Fallback.Lookup(ctx, code)
	return c, SourceFallback, err
}

func (s *Service) record(source Source, err error) {
	if obs.DiscountValidationsTotal == nil {
		return
	}
	obs.DiscountValidationsTotal.WithLabelValues(string(source), resultLabel(err)).Inc()
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(ErrorCode(err))
}

// ErrorCode maps a discount failure to a stable machine-readable code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCode):
		return "INVALID_CODE"
	case errors.Is(err, ErrExpired):
		return "EXPIRED"
	case errors.Is(err, ErrUsageLimitReached):
		return "USAGE_LIMIT_REACHED"
	case errors.Is(err, ErrBelowMinimum):
		return "BELOW_MINIMUM"
	case errors.Is(err, ErrValidationUnreachable):
		return "VALIDATION_UNREACHABLE"
	default:
		return "ERROR"
	}
}

// Feedback is the inline result shown under a discount code field.
type Feedback struct {
	Code         string         `json:"code"`
	Valid        bool           `json:"valid"`
	Kind         Kind           `json:"type,omitempty"`
	Description  string         `json:"description,omitempty"`
	Amount       *pricing.Money `json:"amount,omitempty"`
	FinalValue   *pricing.Money `json:"finalValue,omitempty"`
	Capped       bool           `json:"capped,omitempty"`
	Source       Source         `json:"source,omitempty"`
	Error        string         `json:"error,omitempty"`
	Message      string         `json:"message,omitempty"`
	MinimumOrder *pricing.Money `json:"minimumOrder,omitempty"`
	Retryable    bool           `json:"retryable,omitempty"`
}

// NewFeedback renders an evaluation outcome.
func NewFeedback(code string, ev Evaluation, err error) Feedback {
	fb := Feedback{Code: Normalize(code)}
	if err != nil {
		fb.Error = ErrorCode(err)
		fb.Message = Reason(err)
		fb.Retryable = errors.Is(err, ErrValidationUnreachable)
		var below *BelowMinimumError
		if errors.As(err, &below) {
			minimum := pricing.Round(below.Minimum)
			fb.MinimumOrder = &minimum
		}
		return fb
	}
	amount, final := ev.Amount, ev.FinalValue
	fb.Valid = true
	fb.Kind = ev.Kind
	fb.Description = ev.Description
	fb.Amount = &amount
	fb.FinalValue = &final
	fb.Capped = ev.Capped
	fb.Source = ev.Source
	return fb
}
