package telemetry

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

func TestKafkaHeadersCarryTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	spanCtx, ok := NewRootSpanContext()
	require.True(t, ok)
	traceID := spanCtx.TraceID()
	traceHex := traceID.String()
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	headers := []kafka.Header{{Key: "traceparent", Value: []byte("stale")}}
	InjectKafkaHeaders(ctx, &headers)
	require.Len(t, headers, 1)
	assert.Contains(t, string(headers[0].Value), traceHex)

	extracted := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	assert.True(t, extracted.IsRemote())
	assert.Equal(t, traceID, extracted.TraceID())
	assert.Equal(t, spanCtx.SpanID(), extracted.SpanID())
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "chainnotes", "test", " ")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
