// Package contribution tracks attributed line ranges and the metric
// evaluations attached to them.
package contribution

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/ccsl/internal/domain/valuation"
)

// Contribution is a contiguous, inclusive line range of one file attributed
// to a contributor.
type Contribution struct {
	ID           string
	Contributor  string
	FileID       string
	LineStart    int
	LineEnd      int
	RegisteredAt time.Time

	evaluations map[valuation.Kind]valuation.Evaluation
}

// New validates and builds an unregistered contribution.
func New(contributor, fileID string, lineStart, lineEnd int) (*Contribution, error) {
	switch {
	case strings.TrimSpace(contributor) == "":
		return nil, fmt.Errorf("%w: empty contributor", ErrInvalidContribution)
	case strings.TrimSpace(fileID) == "":
		return nil, fmt.Errorf("%w: empty file id", ErrInvalidContribution)
	case lineStart > lineEnd:
		return nil, fmt.Errorf("%w: line start %d after line end %d", ErrInvalidContribution, lineStart, lineEnd)
	}
	return &Contribution{
		Contributor: contributor,
		FileID:      fileID,
		LineStart:   lineStart,
		LineEnd:     lineEnd,
		evaluations: make(map[valuation.Kind]valuation.Evaluation),
	}, nil
}

// Lines is the number of lines in the range.
func (c *Contribution) Lines() int {
	return c.LineEnd - c.LineStart + 1
}

// Overlaps reports whether both contributions touch at least one common line of the same file.
func (c *Contribution) Overlaps(other *Contribution) bool {
	return c.FileID == other.FileID && c.LineStart <= other.LineEnd && other.LineStart <= c.LineEnd
}

// Evaluations returns the attached evaluations in kind order.
func (c *Contribution) Evaluations() []valuation.Evaluation {
	out := make([]valuation.Evaluation, 0, len(c.evaluations))
	for _, k := range valuation.Kinds() {
		if ev, ok := c.evaluations[k]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// Value is the mean of the attached evaluation values, 0 when none are attached.
func (c *Contribution) Value() float64 {
	return valuation.Composite(c.Evaluations())
}

// setEvaluation stores ev, replacing any previous evaluation of the same kind.
func (c *Contribution) setEvaluation(ev valuation.Evaluation) {
	if c.evaluations == nil {
		c.evaluations = make(map[valuation.Kind]valuation.Evaluation)
	}
	c.evaluations[ev.Kind] = ev
}

// clone returns a deep copy.
func (c *Contribution) clone() *Contribution {
	cp := *c
	cp.evaluations = make(map[valuation.Kind]valuation.Evaluation, len(c.evaluations))
	for k, v := range c.evaluations {
		cp.evaluations[k] = v
	}
	return &cp
}
