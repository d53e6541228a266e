// Package model contains domain models passed between layers.
package model

import "time"

// Transaction is a payment from one wallet to another on behalf of a
// contribution. It is created unverified and flips to verified at most once.
type Transaction struct {
	ID                string    // unique id assigned at send
	SourceWallet      string    // paying wallet address
	DestinationWallet string    // receiving wallet address
	Amount            float64   // strictly positive
	Timestamp         time.Time // time of send
	ContributionID    string    // contribution (or subscriber) the payment settles
	Verified          bool      // set by the verification worker
}

// VerificationJob carries a provisional transaction to a verification worker.
type VerificationJob struct {
	Transaction Transaction
	EnqueuedAt  time.Time
}
