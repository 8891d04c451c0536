package aspects

import (
	"github.com/codysoyland/aspecthooks/pkg/interceptor"
	"github.com/codysoyland/aspecthooks/pkg/objmodel"
	"github.com/codysoyland/aspecthooks/pkg/signature"
)

// Engine registers hooks with its own configuration. Engines share the
// process-wide record of what is hooked and patched; a class patched by one
// engine dispatches through that engine's interceptor until it is restored.
type Engine struct {
	config      *Config
	logger      interceptor.Logger
	interceptor *interceptor.Interceptor
	blacklist   map[string]struct{}

	state   *hookState
	forward objmodel.Forwarder
}

// Config holds all configuration options
type Config struct {
	Verbose bool
	Logger  interceptor.Logger
	Metrics interceptor.MetricsCollector
	Tracing interceptor.TracingCollector
	// SignatureReader reports handler parameter lists. Defaults to
	// signature.ReflectReader.
	SignatureReader signature.Reader
	// Blacklist holds selectors that may never be hooked, in addition to the
	// lifecycle primitives.
	Blacklist []string
}

// Option represents a functional option for configuration
type Option func(*Config) error
