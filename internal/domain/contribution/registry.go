package contribution

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/okian/ccsl/internal/domain/valuation"
	"github.com/okian/ccsl/pkg/logger"
	"github.com/okian/ccsl/pkg/metrics"
)

// Registry holds registered contributions. No two contributions of the same
// file share a line. All methods are safe for concurrent use and return copies.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byID   map[string]*Contribution
	byFile map[string][]*Contribution

	newID func() string
	clock clockwork.Clock
	log   logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byID:   make(map[string]*Contribution),
		byFile: make(map[string][]*Contribution),
		newID:  uuid.NewString,
		clock:  clockwork.NewRealClock(),
		log:    logger.NamedOrNop("contribution"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores a copy of c and returns its assigned id. Later changes to c
// do not affect the registry.
func (r *Registry) Register(c *Contribution) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: nil contribution", ErrInvalidContribution)
	}
	if _, err := New(c.Contributor, c.FileID, c.LineStart, c.LineEnd); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byFile[c.FileID] {
		if existing.Overlaps(c) {
			metrics.RecordContributionConflict()
			r.log.Debug(context.Background(), "contribution rejected",
				logger.String("file", c.FileID),
				logger.Int("start", c.LineStart),
				logger.Int("end", c.LineEnd),
				logger.String("conflicts_with", existing.ID),
			)
			return "", fmt.Errorf("%w: %s lines %d-%d intersect %s lines %d-%d",
				ErrOverlapConflict, c.FileID, c.LineStart, c.LineEnd, existing.ID, existing.LineStart, existing.LineEnd)
		}
	}

	stored := c.clone()
	stored.ID = r.newID()
	stored.RegisteredAt = r.clock.Now()
	r.byID[stored.ID] = stored
	r.byFile[stored.FileID] = append(r.byFile[stored.FileID], stored)
	r.order = append(r.order, stored.ID)

	metrics.RecordContributionRegistered()
	metrics.UpdateContributionCount(len(r.order))
	return stored.ID, nil
}

// AttachEvaluation records ev on the contribution, replacing any earlier
// evaluation of the same kind. Values outside [0, 1] are clamped.
func (r *Registry) AttachEvaluation(id string, ev valuation.Evaluation) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, ev.Kind)
	}
	ev.Value = math.Max(0, math.Min(1, ev.Value))
	if math.IsNaN(ev.Value) {
		ev.Value = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.setEvaluation(ev)
	return nil
}

// AttachEvaluations attaches each evaluation in turn.
func (r *Registry) AttachEvaluations(id string, evs []valuation.Evaluation) error {
	for _, ev := range evs {
		if err := r.AttachEvaluation(id, ev); err != nil {
			return err
		}
	}
	return nil
}

// Value returns the composite value of a registered contribution.
func (r *Registry) Value(id string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.Value(), nil
}

// Get returns a copy of the contribution with the given id.
func (r *Registry) Get(id string) (*Contribution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return c.clone(), true
}

// List returns copies of all contributions in registration order.
func (r *Registry) List() []*Contribution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Contribution, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// Len returns the number of registered contributions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
