package obs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestPGXTracerRecordsQueries(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	var tracer PGXTracer
	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
		SQL:  "select code\n\t from discount_codes where code = $1",
		Args: []any{"WELCOME10"},
	})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: pgx.ErrNoRows})

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "UPDATE discount_codes SET usage_count = usage_count + 1"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("UPDATE 1"), Err: errors.New("deadlock")})

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	require.Equal(t, "pgx SELECT", spans[0].Name)
	require.Equal(t, "Unset", spans[0].Status.Code.String())
	require.Equal(t, "pgx UPDATE", spans[1].Name)
	require.Equal(t, "Error", spans[1].Status.Code.String())
}

func TestStatementIsCollapsedAndTruncated(t *testing.T) {
	require.Equal(t, "SELECT 1 FROM x", statement("SELECT 1\n  FROM x"))
	long := statement("SELECT " + strings.Repeat("a, ", 200))
	require.Len(t, long, maxStatementLen+3)
	require.Equal(t, "QUERY", sqlOperation("  "))
}
