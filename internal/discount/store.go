package discount

import (
	"context"
	"sync"

	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// Store resolves normalized codes. Implementations return ErrInvalidCode when
// the code does not exist and ErrValidationUnreachable when the backing system
// cannot answer.
type Store interface {
	Lookup(ctx context.Context, code string) (Code, error)
}

// UsageRecorder increments a code's usage count after a confirmed order.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, code string) error
}

// TableStore is an in-memory code table.
type TableStore struct {
	mu    sync.RWMutex
	codes map[string]Code
}

// NewTableStore indexes codes by their normalized form.
func NewTableStore(codes ...Code) *TableStore {
	s := &TableStore{codes: make(map[string]Code, len(codes))}
	for _, c := range codes {
		c.Code = Normalize(c.Code)
		s.codes[c.Code] = c
	}
	return s
}

// Lookup implements Store.
func (s *TableStore) Lookup(_ context.Context, code string) (Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[Normalize(code)]
	if !ok {
		return Code{}, ErrInvalidCode
	}
	return c, nil
}

// RecordUsage implements UsageRecorder. It refuses to exceed the usage limit.
func (s *TableStore) RecordUsage(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Normalize(code)
	c, ok := s.codes[key]
	if !ok {
		return ErrInvalidCode
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	c.UsageCount++
	s.codes[key] = c
	return nil
}

// Codes returns a snapshot of the table.
func (s *TableStore) Codes() []Code {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Code, 0, len(s.codes))
	for _, c := range s.codes {
		out = append(out, c)
	}
	return out
}

// DefaultCodes is the reference fallback table.
func DefaultCodes() []Code {
	money := func(v string) *pricing.Money {
		m := pricing.NewMoney(v)
		return &m
	}
	limit := func(n int) *int { return &n }
	return []Code{
		{Code: "WELCOME10", Kind: KindPercentage, Value: pricing.NewMoney("10"), MinimumOrder: pricing.NewMoney("50"), MaximumDiscount: money("100"), Description: "10% off your first order"},
		{Code: "FLASH25", Kind: KindPercentage, Value: pricing.NewMoney("25"), MinimumOrder: pricing.NewMoney("200"), MaximumDiscount: money("300"), Description: "Flash sale: 25% off"},
		{Code: "SAVE20", Kind: KindFixed, Value: pricing.NewMoney("20"), MinimumOrder: pricing.NewMoney("100"), Description: "$20 off orders over $100"},
		{Code: "BULK15", Kind: KindPercentage, Value: pricing.NewMoney("15"), MinimumOrder: pricing.NewMoney("500"), MaximumDiscount: money("500"), UsageLimit: limit(200), Description: "15% off bulk orders"},
	}
}

// DefaultTable returns a TableStore seeded with DefaultCodes.
func DefaultTable() *TableStore {
	return NewTableStore(DefaultCodes()...)
}
