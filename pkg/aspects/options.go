package aspects

import (
	"fmt"

	"github.com/codysoyland/aspecthooks/pkg/interceptor"
	"github.com/codysoyland/aspecthooks/pkg/signature"
)

// WithLogger sets the logger. *slog.Logger satisfies interceptor.Logger.
//
// Debug level: patch installation and teardown, forwarding fallbacks
// Info level: hook registration and removal
// Warn level: handlers skipped at dispatch time
func WithLogger(logger interceptor.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithVerbose enables or disables verbose output on stderr. It has no effect
// when a logger is set with WithLogger.
func WithVerbose(v bool) Option {
	return func(c *Config) error {
		c.Verbose = v
		return nil
	}
}

// WithMetrics sets the metrics collector for registrations and dispatches.
func WithMetrics(collector interceptor.MetricsCollector) Option {
	return func(c *Config) error {
		c.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector. Every intercepted call gets a span.
func WithTracing(collector interceptor.TracingCollector) Option {
	return func(c *Config) error {
		c.Tracing = collector
		return nil
	}
}

// WithSignatureReader replaces the reflection-based handler signature reader.
func WithSignatureReader(r signature.Reader) Option {
	return func(c *Config) error {
		if r == nil {
			return fmt.Errorf("signature reader cannot be nil")
		}
		c.SignatureReader = r
		return nil
	}
}

// WithBlacklist adds selectors that may never be hooked.
func WithBlacklist(selectors ...string) Option {
	return func(c *Config) error {
		for _, sel := range selectors {
			if sel == "" {
				return fmt.Errorf("blacklisted selector cannot be empty")
			}
		}
		c.Blacklist = append(c.Blacklist, selectors...)
		return nil
	}
}
