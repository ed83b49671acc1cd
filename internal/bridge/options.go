package bridge

import (
	"log/slog"

	"github.com/born-ml/gradbridge/internal/metrics"
)

// defaultName is used when no name is given.
const defaultName = "bridge"

// Option configures an Op.
type Option func(*config)

type config struct {
	name    string
	logger  *slog.Logger
	metrics *metrics.Bridge
}

// WithName sets the name used in errors, logs and as the graph op name.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records every evaluation on m.
func WithMetrics(m *metrics.Bridge) Option {
	return func(c *config) {
		c.metrics = m
	}
}
