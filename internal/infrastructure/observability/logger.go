package observability

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// InitLogger initializes the global zerolog logger. An unparsable level
// falls back to debug in development and info elsewhere.
func InitLogger(serviceName, env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
		if env == "development" {
			parsed = zerolog.DebugLevel
		}
	}
	zerolog.SetGlobalLevel(parsed)

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).With().
			Str("service", serviceName).
			Logger()
		return
	}

	log.Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
}

// ContextWithLogger attaches a request-scoped logger, e.g. one carrying the
// authenticated user id, for LoggerFromContext to pick up.
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// LoggerFromContext returns the request-scoped logger (or the global one)
// with trace context
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger := log.Logger
	if scoped := zerolog.Ctx(ctx); scoped != nil && scoped.GetLevel() != zerolog.Disabled {
		logger = *scoped
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return &logger
}

// GetLogger returns the global logger
func GetLogger() *zerolog.Logger {
	return &log.Logger
}
