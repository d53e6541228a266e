// Package valuation scores source fragments with six lexical metric
// evaluators and reduces them to one composite value in [0, 1].
package valuation

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/ccsl/pkg/logger"
	"github.com/okian/ccsl/pkg/metrics"
)

// Engine runs every evaluator over a fragment. It is safe for concurrent use;
// evaluation is deterministic for a given input.
type Engine struct {
	evaluators  []Evaluator
	parallelism int
	log         logger.Logger
}

// Fragment is one piece of code submitted to EvaluateBatch.
type Fragment struct {
	ID   string
	Code string
}

// Result is the valuation of one Fragment.
type Result struct {
	ID          string
	Evaluations []Evaluation
	Value       float64
}

// NewEngine creates an engine with the built-in evaluators.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		evaluators:  Evaluators(),
		parallelism: runtime.NumCPU(),
		log:         logger.NamedOrNop("valuation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs each evaluator once, in Kind order.
func (e *Engine) Evaluate(code string) []Evaluation {
	start := time.Now()
	out := make([]Evaluation, 0, len(e.evaluators))
	for _, ev := range e.evaluators {
		res := ev.Evaluate(code)
		metrics.RecordEvaluation(res.Kind.String(), res.Value)
		out = append(out, res)
	}
	metrics.RecordValuation(float64(time.Since(start).Microseconds()) / 1000)
	return out
}

// Value returns the composite score of code.
func (e *Engine) Value(code string) float64 {
	return Composite(e.Evaluate(code))
}

// Composite is the arithmetic mean of the evaluation values, or 0 for none.
func Composite(evals []Evaluation) float64 {
	if len(evals) == 0 {
		return 0
	}
	var sum float64
	for _, ev := range evals {
		sum += ev.Value
	}
	return sum / float64(len(evals))
}

// EvaluateBatch scores fragments concurrently. Results keep input order.
// It stops early and returns ctx's error if ctx is cancelled.
func (e *Engine) EvaluateBatch(ctx context.Context, fragments []Fragment) ([]Result, error) {
	results := make([]Result, len(fragments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	for i, f := range fragments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("evaluate %q: %w", f.ID, err)
			}
			evals := e.Evaluate(f.Code)
			results[i] = Result{ID: f.ID, Evaluations: evals, Value: Composite(evals)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Warn(ctx, "batch valuation aborted", logger.Int("fragments", len(fragments)), logger.Error(err))
		return nil, err
	}
	e.log.Debug(ctx, "batch valuation complete", logger.Int("fragments", len(fragments)))
	return results, nil
}
