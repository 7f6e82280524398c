package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Querier is the subset of pgxpool.Pool used by PGStore.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const lookupCodeSQL = `
SELECT code, kind, value::text, minimum_order::text, maximum_discount::text,
       expires_at, usage_limit, usage_count, description
FROM discount_codes
WHERE code = $1 AND active`

const recordUsageSQL = `
UPDATE discount_codes
SET usage_count = usage_count + 1, updated_at = now()
WHERE code = $1 AND active AND (usage_limit IS NULL OR usage_count < usage_limit)`

const upsertCodeSQL = `
INSERT INTO discount_codes (code, kind, value, minimum_order, maximum_discount, expires_at, usage_limit, usage_count, description)
VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9)
ON CONFLICT (code) DO UPDATE SET
    kind = EXCLUDED.kind,
    value = EXCLUDED.value,
    minimum_order = EXCLUDED.minimum_order,
    maximum_discount = EXCLUDED.maximum_discount,
    expires_at = EXCLUDED.expires_at,
    usage_limit = EXCLUDED.usage_limit,
    description = EXCLUDED.description,
    active = true,
    updated_at = now()`

// PGStore reads codes from the discount_codes table. Query failures other
// than a missing row are reported as ErrValidationUnreachable.
type PGStore struct {
	Q Querier
}

// Lookup implements Store.
func (s *PGStore) Lookup(ctx context.Context, code string) (Code, error) {
	if s == nil || s.Q == nil {
		return Code{}, fmt.Errorf("%w: postgres store not configured", ErrValidationUnreachable)
	}
	var (
		c                    Code
		kind, value, minimum string
		maximum, description *string
		expiresAt            *time.Time
		usageLimit           *int32
		usageCount           int32
	)
	err := s.Q.QueryRow(ctx, lookupCodeSQL, Normalize(code)).Scan(
		&c.Code, &kind, &value, &minimum, &maximum, &expiresAt, &usageLimit, &usageCount, &description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Code{}, ErrInvalidCode
		}
		return Code{}, fmt.Errorf("%w: %v", ErrValidationUnreachable, err)
	}
	if c.Kind, err = ParseKind(kind); err != nil {
		return Code{}, err
	}
	if c.Value, err = decimal.NewFromString(value); err != nil {
		return Code{}, fmt.Errorf("discount: code %s value: %w", c.Code, err)
	}
	if c.MinimumOrder, err = decimal.NewFromString(minimum); err != nil {
		return Code{}, fmt.Errorf("discount: code %s minimum_order: %w", c.Code, err)
	}
	if maximum != nil {
		m, err := decimal.NewFromString(*maximum)
		if err != nil {
			return Code{}, fmt.Errorf("discount: code %s maximum_discount: %w", c.Code, err)
		}
		c.MaximumDiscount = &m
	}
	if expiresAt != nil {
		t := expiresAt.UTC()
		c.ExpiresAt = &t
	}
	if usageLimit != nil {
		n := int(*usageLimit)
		c.UsageLimit = &n
	}
	c.UsageCount = int(usageCount)
	if description != nil {
		c.Description = *description
	}
	return c, nil
}

// RecordUsage implements UsageRecorder. The increment is conditional on the
// usage limit so concurrent confirmations cannot overshoot it.
func (s *PGStore) RecordUsage(ctx context.Context, code string) error {
	if s == nil || s.Q == nil {
		return errors.New("discount: postgres store not configured")
	}
	normalized := Normalize(code)
	tag, err := s.Q.Exec(ctx, recordUsageSQL, normalized)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.Lookup(ctx, normalized); err != nil {
		return err
	}
	return ErrUsageLimitReached
}

// Upsert writes c, replacing any existing definition but keeping its usage count.
func (s *PGStore) Upsert(ctx context.Context, c Code) error {
	if s == nil || s.Q == nil {
		return errors.New("discount: postgres store not configured")
	}
	var maximum *string
	if c.MaximumDiscount != nil {
		v := c.MaximumDiscount.String()
		maximum = &v
	}
	var limit *int32
	if c.UsageLimit != nil {
		n := int32(*c.UsageLimit)
		limit = &n
	}
	_, err := s.Q.Exec(ctx, upsertCodeSQL,
		Normalize(c.Code), string(c.Kind), c.Value.String(), c.MinimumOrder.String(), maximum,
		c.ExpiresAt, limit, int32(c.UsageCount), c.Description,
	)
	return err
}
