package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults keep export off", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")
		t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "")
		t.Setenv("ENVIRONMENT", "")

		cfg := NewConfig("photonix-server", "1.0.0")
		assert.False(t, cfg.Enabled)
		assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, 1.0, cfg.SampleRatio)
		assert.Equal(t, 30*time.Second, cfg.MetricInterval)
	})

	t.Run("reads the OTEL variables", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "1")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
		t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "5000")
		t.Setenv("ENVIRONMENT", "production")

		cfg := NewConfig("photonix-server", "1.0.0")
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, 0.25, cfg.SampleRatio)
		assert.Equal(t, 5*time.Second, cfg.MetricInterval)
	})

	t.Run("out of range sample ratio is ignored", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "3")
		assert.Equal(t, 1.0, NewConfig("svc", "v").SampleRatio)
	})
}

func TestInitialize_Disabled(t *testing.T) {
	tel, err := Initialize(context.Background(), Config{ServiceName: "photonix-test"})
	require.NoError(t, err)
	assert.Nil(t, tel.TracerProvider)
	assert.Nil(t, tel.MeterProvider)
	assert.NoError(t, tel.Shutdown(context.Background()))
}
