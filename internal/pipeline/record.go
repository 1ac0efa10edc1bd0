package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cnoret/fraudpipe/internal/alert"
	"github.com/cnoret/fraudpipe/internal/domain"
	"github.com/cnoret/fraudpipe/internal/logger"
	"github.com/cnoret/fraudpipe/internal/store"
)

// RecordStep durably upserts the scored transaction and, above the alert
// threshold, raises the advisory alert signal.
type RecordStep struct {
	Store          store.TransactionStore
	Notifier       alert.Notifier
	AlertThreshold float64
}

func (s *RecordStep) Name() string { return "record" }

func (s *RecordStep) Execute(ctx context.Context, state *State) error {
	rec := recordFromRun(state.Raw, state.Result)
	state.TransactionID = rec.TransactionID

	if err := s.Store.UpsertScore(ctx, rec); err != nil {
		return err
	}

	// Alerting is observational only. A notifier error must never undo or
	// fail the write that already happened.
	if state.Result.Probability > s.AlertThreshold && s.Notifier != nil {
		state.Alerted = true
		sig := alert.Signal{
			TransactionID: rec.TransactionID,
			Probability:   rec.FraudProbability,
			Amount:        rec.Amount,
		}
		if err := s.Notifier.Notify(ctx, sig); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Alert delivery failed")
		}
	}
	return nil
}

// recordFromRun derives the persisted tuple from the raw transaction and
// the score. Identity comes from the feed's record, not the aligned
// payload: the model's schema may not ask for the transaction number at
// all, but storage is still keyed by the upstream identity. A record
// without a usable transaction number gets an id synthesized from
// wall-clock seconds; two id-less runs within the same second would
// collide, a known limitation inherited from the upstream feed.
func recordFromRun(raw domain.RawTransaction, result domain.ScoreResult) *domain.TransactionRecord {
	id := stringField(raw, "trans_num")
	if id == "" {
		id = fmt.Sprintf("tx_%d", time.Now().Unix())
	}
	merchant := stringField(raw, "merchant")
	if merchant == "" {
		merchant = "Unknown"
	}
	return &domain.TransactionRecord{
		TransactionID:    id,
		Amount:           floatField(raw, "amt"),
		Merchant:         merchant,
		FraudProbability: result.Probability,
		Prediction:       result.Prediction,
	}
}

func stringField(raw domain.RawTransaction, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func floatField(raw domain.RawTransaction, key string) float64 {
	switch n := raw[key].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
