package valuation

import "errors"

// Sentinel kinds for valuation errors.
var (
	ErrUnknownKind = errors.New("unknown metric kind")
)
