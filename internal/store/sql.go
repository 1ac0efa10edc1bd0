package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cnoret/fraudpipe/internal/domain"

	// Supported database/sql drivers.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore persists scored transactions through database/sql. It supports
// the sqlite3 and postgres drivers; the DDL and the upsert are written in
// the dialect subset both accept.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens a SQL-backed store. driver is a registered database/sql
// driver name ("sqlite3" or "postgres").
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrUnavailable, driver, err)
	}
	if driver == "sqlite3" {
		// sqlite allows one writer; funneling through a single connection
		// turns would-be SQLITE_BUSY errors into queueing.
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// EnsureSchema creates the fraud_transactions table and its unique index
// if they do not exist. The index is created separately so a table
// provisioned by an earlier deployment without a primary key still ends up
// with the uniqueness guarantee the upsert depends on.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fraud_transactions (
			transaction_id    TEXT,
			amount            DOUBLE PRECISION,
			merchant          TEXT,
			fraud_probability DOUBLE PRECISION,
			prediction        INTEGER,
			inserted_at       TIMESTAMP,
			updated_at        TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS fraud_transactions_transaction_id_uidx
			ON fraud_transactions (transaction_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensuring schema: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// UpsertScore implements the keyed atomic upsert via a single
// INSERT ... ON CONFLICT DO UPDATE statement.
func (s *SQLStore) UpsertScore(ctx context.Context, rec *domain.TransactionRecord) error {
	now := time.Now().UTC()
	q := s.rebind(`
		INSERT INTO fraud_transactions (
			transaction_id, amount, merchant, fraud_probability, prediction, inserted_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT (transaction_id) DO UPDATE SET
			amount            = excluded.amount,
			merchant          = excluded.merchant,
			fraud_probability = excluded.fraud_probability,
			prediction        = excluded.prediction,
			updated_at        = ?`)

	_, err := s.db.ExecContext(ctx, q,
		rec.TransactionID,
		rec.Amount,
		capMerchant(rec.Merchant),
		rec.FraudProbability,
		rec.Prediction,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("%w: upserting %s: %v", ErrUnavailable, rec.TransactionID, err)
	}
	return nil
}

// Get fetches one persisted row by transaction id.
func (s *SQLStore) Get(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	q := s.rebind(`
		SELECT transaction_id, amount, merchant, fraud_probability, prediction, inserted_at, updated_at
		FROM fraud_transactions
		WHERE transaction_id = ?`)

	var rec domain.TransactionRecord
	var updated sql.NullTime
	err := s.db.QueryRowContext(ctx, q, transactionID).Scan(
		&rec.TransactionID,
		&rec.Amount,
		&rec.Merchant,
		&rec.FraudProbability,
		&rec.Prediction,
		&rec.InsertedAt,
		&updated,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, transactionID, err)
	}
	if updated.Valid {
		t := updated.Time
		rec.UpdatedAt = &t
	}
	return &rec, nil
}

// Close closes the underlying pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to the $n form postgres expects.
func (s *SQLStore) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
