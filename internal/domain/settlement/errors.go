package settlement

import "errors"

// Sentinel kinds for settlement errors.
var (
	ErrInvalidWallet      = errors.New("invalid wallet address")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrClosed             = errors.New("settlement engine closed")
	ErrBackpressure       = errors.New("verification queue rejected the payment")
	ErrVerificationFailed = errors.New("payment verification failed")
)
