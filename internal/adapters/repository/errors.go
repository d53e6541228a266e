package repository

import "errors"

// Sentinel kinds for transaction log errors.
var (
	ErrNotFound    = errors.New("transaction not found")
	ErrDuplicateID = errors.New("duplicate transaction id")
	ErrMissingID   = errors.New("transaction id is required")
)
