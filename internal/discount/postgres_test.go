package discount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("scan: column count mismatch")
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case **string:
			if v != nil {
				s := v.(string)
				*d = &s
			}
		case **time.Time:
			if v != nil {
				t := v.(time.Time)
				*d = &t
			}
		case **int32:
			if v != nil {
				n := v.(int32)
				*d = &n
			}
		case *int32:
			*d = v.(int32)
		default:
			return errors.New("scan: unsupported destination")
		}
	}
	return nil
}

type stubQuerier struct {
	row      stubRow
	affected int64
	execErr  error
	execs    []string
}

func (q *stubQuerier) QueryRow(context.Context, string, ...any) pgx.Row { return q.row }

func (q *stubQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	q.execs = append(q.execs, sql)
	if q.execErr != nil {
		return pgconn.CommandTag{}, q.execErr
	}
	if q.affected > 0 {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

func bulkRow(usageCount int32) stubRow {
	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	return stubRow{values: []any{
		"BULK15", "percentage", "15.00", "500.00", "500.00", expires, int32(200), usageCount, "15% off bulk orders",
	}}
}

func TestPGStoreLookup(t *testing.T) {
	store := &PGStore{Q: &stubQuerier{row: bulkRow(3)}}
	c, err := store.Lookup(context.Background(), "bulk15")
	require.NoError(t, err)
	require.Equal(t, "BULK15", c.Code)
	require.Equal(t, KindPercentage, c.Kind)
	require.True(t, money("15").Equal(c.Value))
	require.True(t, money("500").Equal(*c.MaximumDiscount))
	require.Equal(t, 200, *c.UsageLimit)
	require.Equal(t, 3, c.UsageCount)
	require.NotNil(t, c.ExpiresAt)
}

func TestPGStoreLookupErrors(t *testing.T) {
	_, err := (&PGStore{Q: &stubQuerier{row: stubRow{err: pgx.ErrNoRows}}}).Lookup(context.Background(), "X")
	require.ErrorIs(t, err, ErrInvalidCode)

	_, err = (&PGStore{Q: &stubQuerier{row: stubRow{err: errors.New("conn reset")}}}).Lookup(context.Background(), "X")
	require.ErrorIs(t, err, ErrValidationUnreachable)

	var nilStore *PGStore
	_, err = nilStore.Lookup(context.Background(), "X")
	require.ErrorIs(t, err, ErrValidationUnreachable)
}

func TestPGStoreRecordUsage(t *testing.T) {
	q := &stubQuerier{row: bulkRow(200), affected: 1}
	store := &PGStore{Q: q}
	require.NoError(t, store.RecordUsage(context.Background(), "bulk15"))
	require.Len(t, q.execs, 1)

	q.affected = 0
	require.ErrorIs(t, store.RecordUsage(context.Background(), "bulk15"), ErrUsageLimitReached)

	missing := &PGStore{Q: &stubQuerier{row: stubRow{err: pgx.ErrNoRows}}}
	require.ErrorIs(t, missing.RecordUsage(context.Background(), "gone"), ErrInvalidCode)
}

func TestPGStoreUpsert(t *testing.T) {
	q := &stubQuerier{}
	store := &PGStore{Q: q}
	for _, c := range DefaultCodes() {
		require.NoError(t, store.Upsert(context.Background(), c))
	}
	require.Len(t, q.execs, len(DefaultCodes()))
}
