package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func sampledContext(t *testing.T) (context.Context, trace.SpanContext) {
	t.Helper()
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	require.True(t, sc.IsValid())
	return trace.ContextWithSpanContext(context.Background(), sc), sc
}

func TestTraceparentFromSpanContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	ctx, sc := sampledContext(t)

	tp := Traceparent(ctx)
	require.NotEmpty(t, tp)
	assert.Contains(t, tp, sc.TraceID().String())
}

func TestTraceparentEmptyWithoutSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	assert.Empty(t, Traceparent(context.Background()))
}

func TestExtractKafkaHeadersRestoresSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	ctx, sc := sampledContext(t)

	headers := []kafka.Header{{Key: TraceparentHeader, Value: []byte(Traceparent(ctx))}}
	restored := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	assert.Equal(t, sc.TraceID(), restored.TraceID())
	assert.Equal(t, sc.SpanID(), restored.SpanID())
}

func TestHeaderValue(t *testing.T) {
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte("inventory.reserved")},
	}
	assert.Equal(t, "inventory.reserved", HeaderValue(headers, "event_type"))
	assert.Empty(t, HeaderValue(headers, "missing"))
}
