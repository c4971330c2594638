package observability

import (
	"testing"

	"github.com/smallbiznis/ancloraflow/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestConfigDerivesSubsystemSettings(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:        "1.2.3",
		Environment:       "development",
		LogLevel:          "info",
		LogFormat:         "json",
		OtelEnabled:       true,
		OTLPEndpoint:      " collector:4317 ",
		OTLPProtocol:      "grpc",
		OtelSamplingRatio: 0.5,
	})

	assert.True(t, cfg.Debug())

	lc := cfg.Logger()
	assert.Equal(t, "ancloraflow", lc.ServiceName)
	assert.Equal(t, "1.2.3", lc.Version)
	assert.True(t, lc.IncludeStackOnError)

	tc := cfg.Tracing()
	assert.True(t, tc.Enabled)
	assert.Equal(t, "collector:4317", tc.ExporterEndpoint)
	assert.Equal(t, 0.5, tc.SamplingRatio)

	mc := cfg.Metrics()
	assert.Equal(t, "ancloraflow", mc.ServiceName)
	assert.Equal(t, "development", mc.Environment)
}

func TestDebugFollowsLevelInProduction(t *testing.T) {
	assert.False(t, LoadConfig(config.Config{Environment: "production", LogLevel: "info"}).Debug())
	assert.True(t, LoadConfig(config.Config{Environment: "production", LogLevel: "DEBUG"}).Debug())
}
