package discount

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type unreachableStore struct{ calls int }

func (s *unreachableStore) Lookup(context.Context, string) (Code, error) {
	s.calls++
	return Code{}, fmt.Errorf("%w: dial tcp: connection refused", ErrValidationUnreachable)
}

type failingStore struct{}

func (failingStore) Lookup(context.Context, string) (Code, error) {
	return Code{}, errors.New("decode: unexpected EOF")
}

func TestServiceEvaluate(t *testing.T) {
	svc := &Service{Primary: DefaultTable(), Policy: FallbackReject}

	ev, err := svc.Evaluate(context.Background(), "welcome10", money("437.30"))
	require.NoError(t, err)
	require.Equal(t, SourcePrimary, ev.Source)
	require.Equal(t, "WELCOME10", ev.Code)
	require.True(t, money("393.57").Equal(ev.FinalValue))

	_, err = svc.Evaluate(context.Background(), "flash25", money("94.50"))
	require.ErrorIs(t, err, ErrBelowMinimum)

	_, err = svc.Evaluate(context.Background(), "   ", money("94.50"))
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestServiceRejectPolicySurfacesUnreachable(t *testing.T) {
	primary := &unreachableStore{}
	svc := &Service{Primary: primary, Fallback: DefaultTable(), Policy: FallbackReject}

	_, err := svc.Validate(context.Background(), "WELCOME10")
	require.ErrorIs(t, err, ErrValidationUnreachable)
	require.Equal(t, 1, primary.calls)

	fb := NewFeedback("WELCOME10", Evaluation{}, err)
	require.True(t, fb.Retryable)
	require.Equal(t, "VALIDATION_UNREACHABLE", fb.Error)
}

func TestServiceLocalPolicyUsesFallbackTable(t *testing.T) {
	svc := &Service{Primary: &unreachableStore{}, Fallback: DefaultTable(), Policy: FallbackLocal}

	v, err := svc.Validate(context.Background(), "welcome10")
	require.NoError(t, err)
	require.Equal(t, SourceFallback, v.Source)

	_, err = svc.Validate(context.Background(), "UNKNOWN")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestServiceDoesNotFallBackOnOtherErrors(t *testing.T) {
	svc := &Service{Primary: failingStore{}, Fallback: DefaultTable(), Policy: FallbackLocal}
	_, err := svc.Validate(context.Background(), "WELCOME10")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrValidationUnreachable)
}

func TestServiceUsesClockForExpiry(t *testing.T) {
	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewTableStore(Code{Code: "NEWYEAR", Kind: KindFixed, Value: money("10"), ExpiresAt: &expires})

	svc := &Service{Primary: store, Now: func() time.Time { return expires.Add(-time.Second) }}
	_, err := svc.Validate(context.Background(), "newyear")
	require.NoError(t, err)

	svc.Now = func() time.Time { return expires }
	_, err = svc.Validate(context.Background(), "newyear")
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, "This discount code has expired.", Reason(err))
}

func TestServiceRecordUsage(t *testing.T) {
	limit := 1
	store := NewTableStore(Code{Code: "ONCE", Kind: KindFixed, Value: money("5"), UsageLimit: &limit})
	svc := &Service{Primary: store}

	require.NoError(t, svc.RecordUsage(context.Background(), "once"))
	_, err := svc.Validate(context.Background(), "once")
	require.ErrorIs(t, err, ErrUsageLimitReached)

	remoteOnly := &Service{Primary: &unreachableStore{}}
	require.NoError(t, remoteOnly.RecordUsage(context.Background(), "once"))
}

func TestParseFallbackPolicy(t *testing.T) {
	p, err := ParseFallbackPolicy("")
	require.NoError(t, err)
	require.Equal(t, FallbackReject, p)

	p, err = ParseFallbackPolicy(" LOCAL ")
	require.NoError(t, err)
	require.Equal(t, FallbackLocal, p)

	_, err = ParseFallbackPolicy("maybe")
	require.Error(t, err)
}
