package contribution

import (
	"github.com/jonboulle/clockwork"
	"github.com/okian/ccsl/pkg/logger"
)

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithIDGenerator sets the function that assigns contribution ids.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithClock sets the clock used to stamp registrations.
func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger used by the registry.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}
