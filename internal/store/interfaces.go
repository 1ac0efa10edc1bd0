// Package store persists scored transactions. All backends implement the
// same keyed atomic upsert: one row per transaction id, insert on first
// sight, overwrite on replay.
package store

import (
	"context"
	"errors"

	"github.com/cnoret/fraudpipe/internal/domain"
)

var (
	// ErrUnavailable classifies storage connectivity failures. Runs that
	// hit it are safe to retry in full; the upsert is idempotent.
	ErrUnavailable = errors.New("store: storage unavailable")
	// ErrNotFound is returned by Get for an unknown transaction id.
	ErrNotFound = errors.New("store: transaction not found")
)

// maxMerchantLen is the persisted merchant column cap, in runes.
const maxMerchantLen = 255

// TransactionStore is the persistence contract the recorder depends on.
type TransactionStore interface {
	// EnsureSchema idempotently creates the table and its unique index.
	// Safe to call on every startup; never assumes pre-provisioning.
	EnsureSchema(ctx context.Context) error

	// UpsertScore atomically inserts or overwrites the row for
	// rec.TransactionID. On overwrite, inserted_at is left untouched and
	// updated_at is set; the caller's InsertedAt/UpdatedAt fields are
	// ignored. The statement is a single conditional write, so overlapping
	// runs for the same id resolve to last-committed-wins, never two rows.
	UpsertScore(ctx context.Context, rec *domain.TransactionRecord) error

	// Get fetches the persisted row for a transaction id.
	Get(ctx context.Context, transactionID string) (*domain.TransactionRecord, error)

	Close() error
}

// capMerchant enforces the merchant column's length cap.
func capMerchant(m string) string {
	r := []rune(m)
	if len(r) > maxMerchantLen {
		return string(r[:maxMerchantLen])
	}
	return m
}
