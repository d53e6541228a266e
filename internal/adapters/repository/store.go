// Package repository holds the in-memory transaction log shared by the
// settlement engine and its verification workers.
package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/ccsl/internal/domain/model"
	"github.com/okian/ccsl/pkg/metrics"
)

// Store provides read/write access to payment transactions.
type Store interface {
	// Append stores a new transaction. The id must be unique.
	Append(ctx context.Context, tx model.Transaction) error
	// MarkVerified sets the verified flag and returns the updated record.
	// Returns ErrNotFound for an unknown id.
	MarkVerified(ctx context.Context, id string) (model.Transaction, error)
	// Get returns a copy of one transaction.
	Get(ctx context.Context, id string) (model.Transaction, bool)
	// List returns copies of all transactions in insertion order.
	List(ctx context.Context) []model.Transaction
	// ListByContribution returns copies of the transactions for one contribution in insertion order.
	ListByContribution(ctx context.Context, contributionID string) []model.Transaction
	// Count returns the number of stored transactions.
	Count(ctx context.Context) int
}

// MemoryStore is an append-only Store guarded by a single RWMutex. Readers
// always receive copies, so a record is never observed half-updated.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.Transaction
	byID    map[string]int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]int)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, tx model.Transaction) error {
	if tx.ID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[tx.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, tx.ID)
	}
	s.byID[tx.ID] = len(s.records)
	s.records = append(s.records, tx)
	return nil
}

// MarkVerified implements Store.
func (s *MemoryStore) MarkVerified(_ context.Context, id string) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.records[idx].Verified = true
	return s.records[idx], nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return model.Transaction{}, false
	}
	return s.records[idx], true
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) []model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Transaction, len(s.records))
	copy(out, s.records)
	return out
}

// ListByContribution implements Store.
func (s *MemoryStore) ListByContribution(_ context.Context, contributionID string) []model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Transaction
	for _, tx := range s.records {
		if tx.ContributionID == contributionID {
			out = append(out, tx)
		}
	}
	return out
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
