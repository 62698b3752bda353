package rowarena

import "go.uber.org/zap"

// Config carries the collaborators every container needs.
type Config struct {
	Allocator Allocator
	Logger    *zap.Logger
}

// Option configures a container at construction time.
type Option func(*Config)

// WithAllocator sets the allocator backing container storage.
func WithAllocator(a Allocator) Option {
	return func(c *Config) {
		c.Allocator = a
	}
}

// WithLogger sets the logger receiving diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// Apply resolves options against the defaults: HeapAllocator and a no-op logger.
func Apply(opts ...Option) Config {
	var c Config
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	if c.Allocator == nil {
		c.Allocator = HeapAllocator{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Options re-expresses a resolved Config so a container can hand its
// collaborators down to the containers it owns.
func (c Config) Options() []Option {
	return []Option{WithAllocator(c.Allocator), WithLogger(c.Logger)}
}
