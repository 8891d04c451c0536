package oteladapters

import (
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"
)

// NewLogger returns a *slog.Logger whose records are emitted to provider,
// suitable for aspects.WithLogger. A nil provider uses the global
// LoggerProvider. Records logged with a context carry its trace correlation.
func NewLogger(name string, provider log.LoggerProvider) *slog.Logger {
	if name == "" {
		name = InstrumentationName
	}
	if provider == nil {
		return otelslog.NewLogger(name)
	}
	return otelslog.NewLogger(name, otelslog.WithLoggerProvider(provider))
}
