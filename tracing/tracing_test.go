package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wyfcoding/demaxmin/config"
)

func TestSpanHelpers(t *testing.T) {
	shutdown, err := InitTracer(config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, span := StartSpan(context.Background(), "transport.solve")
	AddTag(ctx, "rows", 3)
	AddTag(ctx, "dummy", "destination")
	SetError(ctx, errors.New("boom"))
	traceID := GetTraceID(ctx)
	carrier := InjectContext(ctx)
	span.End()

	assert.NotEmpty(t, traceID)
	assert.Contains(t, carrier, "traceparent")
	assert.Equal(t, traceID, GetTraceID(ExtractContext(context.Background(), carrier)))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "transport.solve", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Attributes(), 2)
	assert.Empty(t, GetTraceID(context.Background()))
}
