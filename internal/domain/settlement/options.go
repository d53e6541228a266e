package settlement

import (
	"github.com/jonboulle/clockwork"

	"github.com/okian/ccsl/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithDispatcher hands verification jobs to d instead of starting one
// goroutine per payment.
func WithDispatcher(d Dispatcher) Option {
	return func(e *Engine) {
		if d != nil {
			e.dispatcher = d
		}
	}
}

// WithVerifier sets the verifier used by the built-in goroutine dispatch.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) {
		if v != nil {
			e.verifier = v
		}
	}
}

// WithClock sets the clock used for transaction timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDGenerator sets the function that assigns transaction ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithLogger sets the logger used by the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
