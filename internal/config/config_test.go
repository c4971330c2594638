package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadReadsObservabilityEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_SERVICE", "")
	t.Setenv("DEPLOYMENT_ENV", "staging")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_ENABLED", "off")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")
	t.Setenv("OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")

	cfg := Load()

	assert.Equal(t, "ancloraflow", cfg.ServiceName())
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "http", cfg.OTLPProtocol)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OTEL_SAMPLING_RATIO", "lots")
	t.Setenv("DATABASE_MAX_OPEN_CONN", "many")
	t.Setenv("OTEL_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.Equal(t, 20, cfg.DBMaxOpenConn)
	assert.True(t, cfg.OtelEnabled)
}
