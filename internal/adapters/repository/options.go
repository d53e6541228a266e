package repository

import "github.com/okian/ccsl/internal/domain/model"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithCapacity pre-sizes the store for n transactions.
func WithCapacity(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.byID = make(map[string]int, n)
			s.records = make([]model.Transaction, 0, n)
		}
	}
}
