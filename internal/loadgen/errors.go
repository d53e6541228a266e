package loadgen

import "errors"

var (
	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrLedgerMismatch is returned when the ledger did not move by the verified amount.
	ErrLedgerMismatch = errors.New("ledger total does not match verified payments")
	// ErrReplayMismatch is returned when an idempotent replay paid twice or returned another transaction.
	ErrReplayMismatch = errors.New("idempotent replay mismatch")
)
