package domain

import (
	"time"
)

// RawTransaction is one transaction as delivered by the upstream feed.
// The feed guarantees nothing about its shape: fields appear, disappear
// and get renamed between runs, so it stays an open map until the aligner
// pins it to the model's expected schema.
type RawTransaction map[string]interface{}

// AlignedPayload is a transaction reshaped to exactly the field set the
// scoring model currently expects. Every expected field is present and
// non-nil; nothing else is.
type AlignedPayload map[string]interface{}

// ScoreResult is the model's verdict for one aligned payload.
type ScoreResult struct {
	Probability float64 // fraud probability in [0, 1]
	Prediction  int     // binary label, 0 or 1
}

// TransactionRecord is one persisted scoring outcome, keyed by
// TransactionID. UpdatedAt is nil until the same id is written a second
// time (a replayed or retried run).
type TransactionRecord struct {
	TransactionID    string
	Amount           float64
	Merchant         string
	FraudProbability float64
	Prediction       int
	InsertedAt       time.Time
	UpdatedAt        *time.Time
}
