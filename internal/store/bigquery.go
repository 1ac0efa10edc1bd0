package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/cnoret/fraudpipe/internal/domain"
)

const bqTable = "fraud_transactions"

// BigQueryStore persists scored transactions in a BigQuery table. BigQuery
// has no unique indexes, so the one-row-per-id invariant is carried
// entirely by the MERGE statement, which BigQuery executes as a single
// atomic DML operation.
type BigQueryStore struct {
	client  *bigquery.Client
	dataset string
}

// scoreRow is the BigQuery row shape of a persisted transaction.
type scoreRow struct {
	TransactionID    string                 `bigquery:"transaction_id"`
	Amount           float64                `bigquery:"amount"`
	Merchant         string                 `bigquery:"merchant"`
	FraudProbability float64                `bigquery:"fraud_probability"`
	Prediction       int64                  `bigquery:"prediction"`
	InsertedAt       time.Time              `bigquery:"inserted_at"`
	UpdatedAt        bigquery.NullTimestamp `bigquery:"updated_at"`
}

// NewBigQueryStore creates a store bound to project and dataset.
func NewBigQueryStore(ctx context.Context, project, dataset string) (*BigQueryStore, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("%w: bigquery client: %v", ErrUnavailable, err)
	}
	return &BigQueryStore{client: client, dataset: dataset}, nil
}

// EnsureSchema creates the scores table if it does not exist.
func (s *BigQueryStore) EnsureSchema(ctx context.Context) error {
	q := s.client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			transaction_id    STRING,
			amount            FLOAT64,
			merchant          STRING,
			fraud_probability FLOAT64,
			prediction        INT64,
			inserted_at       TIMESTAMP,
			updated_at        TIMESTAMP
		)`, s.dataset, bqTable))

	if err := s.runAndWait(ctx, q); err != nil {
		return fmt.Errorf("%w: ensuring schema: %v", ErrUnavailable, err)
	}
	return nil
}

// UpsertScore merges one scored transaction into the table, keyed by
// transaction id.
func (s *BigQueryStore) UpsertScore(ctx context.Context, rec *domain.TransactionRecord) error {
	q := s.client.Query(fmt.Sprintf(`
		MERGE %s.%s t
		USING (SELECT @transaction_id AS transaction_id) src
		ON t.transaction_id = src.transaction_id
		WHEN MATCHED THEN UPDATE SET
			amount            = @amount,
			merchant          = @merchant,
			fraud_probability = @fraud_probability,
			prediction        = @prediction,
			updated_at        = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN INSERT (
			transaction_id, amount, merchant, fraud_probability, prediction, inserted_at, updated_at
		) VALUES (
			@transaction_id, @amount, @merchant, @fraud_probability, @prediction, CURRENT_TIMESTAMP(), NULL
		)`, s.dataset, bqTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: rec.TransactionID},
		{Name: "amount", Value: rec.Amount},
		{Name: "merchant", Value: capMerchant(rec.Merchant)},
		{Name: "fraud_probability", Value: rec.FraudProbability},
		{Name: "prediction", Value: int64(rec.Prediction)},
	}

	if err := s.runAndWait(ctx, q); err != nil {
		return fmt.Errorf("%w: merging %s: %v", ErrUnavailable, rec.TransactionID, err)
	}
	return nil
}

// Get fetches one persisted row by transaction id.
func (s *BigQueryStore) Get(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id, amount, merchant, fraud_probability, prediction, inserted_at, updated_at
		FROM %s.%s
		WHERE transaction_id = @transaction_id`, s.dataset, bqTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: transactionID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, transactionID, err)
	}

	var row scoreRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: iterating %s: %v", ErrUnavailable, transactionID, err)
	}

	rec := &domain.TransactionRecord{
		TransactionID:    row.TransactionID,
		Amount:           row.Amount,
		Merchant:         row.Merchant,
		FraudProbability: row.FraudProbability,
		Prediction:       int(row.Prediction),
		InsertedAt:       row.InsertedAt,
	}
	if row.UpdatedAt.Valid {
		t := row.UpdatedAt.Timestamp
		rec.UpdatedAt = &t
	}
	return rec, nil
}

// Close releases the BigQuery client.
func (s *BigQueryStore) Close() error {
	return s.client.Close()
}

func (s *BigQueryStore) runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
