package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestSetupDisabled(t *testing.T) {
	before := otel.GetTracerProvider()

	p, err := Setup(context.Background(), Options{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestSetupWithEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	// gRPC dials lazily, so construction succeeds without a collector.
	p, err := Setup(context.Background(), Options{
		Endpoint:        "127.0.0.1:1",
		Insecure:        true,
		ShutdownTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "probe")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	_ = p.Shutdown(context.Background())
}

func TestNewResource(t *testing.T) {
	res := newResource("svc")
	got := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		got[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "svc", got["service.name"])
	assert.Equal(t, "audit-pipeline", got["service.component"])
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
}
