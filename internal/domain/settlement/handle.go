package settlement

import (
	"context"
	"sync"

	"github.com/okian/ccsl/internal/domain/model"
)

// Handle tracks one sent payment until its verification completes.
type Handle struct {
	tx   model.Transaction
	done chan struct{}
	once sync.Once
	err  error
}

func newHandle(tx model.Transaction) *Handle {
	return &Handle{tx: tx, done: make(chan struct{})}
}

// ID returns the transaction id. It is available immediately after Send.
func (h *Handle) ID() string {
	return h.tx.ID
}

// Transaction returns the provisional record as it was when sent.
func (h *Handle) Transaction() model.Transaction {
	return h.tx
}

// Done is closed once verification has completed, successfully or not.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the verification error once Done is closed, nil before.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until verification completes or ctx is done. On success it
// returns the transaction id. Giving up on ctx does not stop verification.
func (h *Handle) Wait(ctx context.Context) (string, error) {
	select {
	case <-h.done:
		if h.err != nil {
			return "", h.err
		}
		return h.tx.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// resolve completes the handle. Only the first call has an effect.
func (h *Handle) resolve(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}
