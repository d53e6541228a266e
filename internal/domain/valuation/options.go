package valuation

import "github.com/okian/ccsl/pkg/logger"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithEvaluators replaces the evaluator set. Passing none yields an engine
// whose composite value is always zero.
func WithEvaluators(evaluators ...Evaluator) Option {
	return func(e *Engine) {
		e.evaluators = append([]Evaluator(nil), evaluators...)
	}
}

// WithParallelism bounds the number of fragments EvaluateBatch scores at once.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithLogger sets the logger used by the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
