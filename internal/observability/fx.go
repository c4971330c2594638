package observability

import (
	"github.com/smallbiznis/ancloraflow/internal/observability/logger"
	"github.com/smallbiznis/ancloraflow/internal/observability/metrics"
	"github.com/smallbiznis/ancloraflow/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the zap logger, the OTel tracer and meter providers,
// HTTP metrics and the Verifactu prometheus collectors.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.NewHTTPMetrics,
		metrics.Verifactu,
	),
	fx.Invoke(announce),
)

// announce forces the tracer provider to be built and records what was enabled.
func announce(cfg Config, _ *sdktrace.TracerProvider, log *zap.Logger) {
	tc := cfg.Tracing()
	log.Named("observability").Info("observability ready",
		zap.String("service", tc.ServiceName),
		zap.String("environment", tc.Environment),
		zap.Bool("otel_enabled", tc.Enabled),
		zap.String("otel_protocol", tc.ExporterProtocol),
		zap.Bool("debug", cfg.Debug()),
	)
}
