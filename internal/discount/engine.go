package discount

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

var (
	// ErrInvalidCode is returned when no discount code matches the input.
	ErrInvalidCode = errors.New("discount code invalid")
	// ErrExpired is returned when the code's expiry has passed.
	ErrExpired = errors.New("discount code expired")
	// ErrUsageLimitReached indicates the code has exhausted its usage quota.
	ErrUsageLimitReached = errors.New("discount code usage limit reached")
	// ErrBelowMinimum indicates a valid code that the order value does not qualify for.
	ErrBelowMinimum = errors.New("discount minimum order not met")
	// ErrValidationUnreachable is returned when the authoritative code store
	// cannot be reached and no fallback is permitted.
	ErrValidationUnreachable = errors.New("discount validation unreachable")
)

// Kind is the discount type.
type Kind string

const (
	// KindPercentage discounts value percent of the order value.
	KindPercentage Kind = "percentage"
	// KindFixed discounts a flat amount.
	KindFixed Kind = "fixed"
)

// ParseKind accepts the canonical kind names.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPercentage:
		return KindPercentage, nil
	case KindFixed:
		return KindFixed, nil
	default:
		return "", fmt.Errorf("discount: unknown kind %q", s)
	}
}

// Code is a discount code definition together with its usage counter.
type Code struct {
	Code            string
	Kind            Kind
	Value           pricing.Money
	MinimumOrder    pricing.Money
	MaximumDiscount *pricing.Money
	ExpiresAt       *time.Time
	UsageLimit      *int
	UsageCount      int
	Description     string
}

// Normalize trims and upper-cases user input for lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks expiry then usage quota, reporting the first failure.
// Existence is the store's concern: a Code value always exists.
func (c Code) Validate(now time.Time) error {
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// BelowMinimumError names the minimum a rejected order value must reach.
type BelowMinimumError struct {
	Minimum    pricing.Money
	OrderValue pricing.Money
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum order of %s required, order value is %s",
		pricing.Format(e.Minimum), pricing.Format(e.OrderValue))
}

// Unwrap lets errors.Is match ErrBelowMinimum.
func (e *BelowMinimumError) Unwrap() error { return ErrBelowMinimum }

// Shortfall is the amount still needed to qualify.
func (e *BelowMinimumError) Shortfall() pricing.Money {
	return pricing.MaxMoney(pricing.Zero, e.Minimum.Sub(e.OrderValue))
}

// Result is the outcome of applying a code. Amount and FinalValue are rounded
// to cents; Exact keeps the full-precision discount for further composition.
type Result struct {
	Code       string
	Kind       Kind
	OrderValue pricing.Money
	Amount     pricing.Money
	FinalValue pricing.Money
	Exact      pricing.Money
	Capped     bool
}

var hundred = decimal.NewFromInt(100)

// Apply computes the discount for orderValue, which must already include every
// add-on. It is stateless: applying the same code again recomputes from scratch.
func Apply(c Code, orderValue pricing.Money) (Result, error) {
	if orderValue.LessThan(c.MinimumOrder) {
		return Result{}, &BelowMinimumError{Minimum: c.MinimumOrder, OrderValue: orderValue}
	}
	var amount pricing.Money
	capped := false
	switch c.Kind {
	case KindPercentage:
		amount = orderValue.Mul(c.Value).Div(hundred)
		if c.MaximumDiscount != nil && amount.GreaterThan(*c.MaximumDiscount) {
			amount = *c.MaximumDiscount
			capped = true
		}
	case KindFixed:
		amount = c.Value
		if amount.GreaterThan(orderValue) {
			amount = orderValue
		}
	default:
		return Result{}, fmt.Errorf("discount: code %s has unknown kind %q", c.Code, c.Kind)
	}
	amount = pricing.MaxMoney(pricing.Zero, amount)
	final := pricing.MaxMoney(pricing.Zero, orderValue.Sub(amount))
	return Result{
		Code:       c.Code,
		Kind:       c.Kind,
		OrderValue: orderValue,
		Amount:     pricing.Round(amount),
		FinalValue: pricing.Round(final),
		Exact:      amount,
		Capped:     capped,
	}, nil
}

// Reason renders a user-facing message for a discount failure.
func Reason(err error) string {
	var below *BelowMinimumError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &below):
		return fmt.Sprintf("This code requires a minimum order of %s. Add %s more to use it.",
			pricing.Format(below.Minimum), pricing.Format(below.Shortfall()))
	case errors.Is(err, ErrInvalidCode):
		return "This discount code is not valid."
	case errors.Is(err, ErrExpired):
		return "This discount code has expired."
	case errors.Is(err, ErrUsageLimitReached):
		return "This discount code has reached its usage limit."
	case errors.Is(err, ErrValidationUnreachable):
		return "We could not verify this code right now. Please try again in a moment."
	default:
		return "This discount code could not be applied."
	}
}
