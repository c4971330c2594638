package observability

import (
	"strings"

	"github.com/smallbiznis/ancloraflow/internal/config"
	"github.com/smallbiznis/ancloraflow/internal/observability/logger"
	"github.com/smallbiznis/ancloraflow/internal/observability/metrics"
	"github.com/smallbiznis/ancloraflow/internal/observability/tracing"
)

// Config is the observability view of the application config.
type Config struct {
	app config.Config
}

func LoadConfig(cfg config.Config) Config {
	return Config{app: cfg}
}

// Debug is on for debug logging or any development-like environment.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.app.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.app.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func (c Config) Logger() logger.Config {
	return logger.Config{
		ServiceName:         c.app.ServiceName(),
		Environment:         strings.TrimSpace(c.app.Environment),
		Version:             strings.TrimSpace(c.app.AppVersion),
		Level:               c.app.LogLevel,
		Format:              c.app.LogFormat,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.app.OtelEnabled,
		ServiceName:      c.app.ServiceName(),
		ServiceVersion:   strings.TrimSpace(c.app.AppVersion),
		Environment:      strings.TrimSpace(c.app.Environment),
		ExporterEndpoint: strings.TrimSpace(c.app.OTLPEndpoint),
		ExporterProtocol: c.app.OTLPProtocol,
		SamplingRatio:    c.app.OtelSamplingRatio,
	}
}

func (c Config) Metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.app.OtelEnabled,
		ExporterEndpoint: strings.TrimSpace(c.app.OTLPEndpoint),
		ExporterProtocol: c.app.OTLPProtocol,
		ServiceName:      c.app.ServiceName(),
		Environment:      strings.TrimSpace(c.app.Environment),
	}
}
