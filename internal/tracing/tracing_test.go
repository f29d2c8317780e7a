package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSpan(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "test", "relay.connection",
		attribute.String("session.id", "abc"))
	assert.True(t, span.SpanContext().IsValid())
	assert.Equal(t, span.SpanContext().TraceID(), spanTraceID(ctx))
	EndSpan(span, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "relay.connection", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("session.id", "abc"))
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}

func TestEndSpanRecordsError(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), "test", "producer.run")
	EndSpan(span, errors.New("connection lost"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "connection lost", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestLogger(t *testing.T) {
	withRecorder(t)

	t.Run("with span", func(t *testing.T) {
		var buf bytes.Buffer
		ctx, span := StartSpan(context.Background(), "test", "op")
		defer span.End()

		Logger(ctx, zerolog.New(&buf)).Info().Msg("hello")
		assert.Contains(t, buf.String(), span.SpanContext().TraceID().String())
	})

	t.Run("without span", func(t *testing.T) {
		var buf bytes.Buffer
		Logger(context.Background(), zerolog.New(&buf)).Info().Msg("hello")
		assert.NotContains(t, buf.String(), "traceId")
	})
}

func TestInitAndShutdown(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	require.NoError(t, Init("logrelay-test"))
	require.NoError(t, Init("ignored"))
	assert.NoError(t, Shutdown(context.Background()))
}

func spanTraceID(ctx context.Context) trace.TraceID {
	return trace.SpanContextFromContext(ctx).TraceID()
}
