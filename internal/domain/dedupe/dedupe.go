// Package dedupe tracks idempotency keys so a repeated payment request
// resolves to the transaction created by the first one.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper maps idempotency keys to the transaction ids they produced.
type Deduper interface {
	// SeenAndRecord atomically checks key and claims it if unseen.
	// Returns the recorded transaction id and true if key was already seen;
	// the id is empty while the first request is still in flight.
	SeenAndRecord(ctx context.Context, key string) (string, bool)

	// Complete stores the transaction id produced for a claimed key.
	Complete(ctx context.Context, key, txID string)

	// Unrecord releases a claimed key so the request can be retried, for
	// example after the payment was rejected.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key  string
	txID string
}

// inMemoryDeduper keeps at most maxSize keys and evicts the oldest first.
// A non-positive maxSize disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is oldest
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		return el.Value.(*entry).txID, true
	}

	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(*entry).key)
	}
	d.seen[key] = d.order.PushBack(&entry{key: key})
	return "", false
}

// Complete implements Deduper.
func (d *inMemoryDeduper) Complete(_ context.Context, key, txID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.seen[key]; ok {
		el.Value.(*entry).txID = txID
	}
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

// Size returns the current number of keys.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
