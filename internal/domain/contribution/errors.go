package contribution

import (
	"errors"
	"fmt"
)

// Sentinel kinds for registry errors.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidContribution = fmt.Errorf("%w: invalid contribution", ErrInvalidArgument)
	ErrOverlapConflict     = errors.New("contribution overlaps an existing range")
	ErrNotFound            = errors.New("contribution not found")
)
