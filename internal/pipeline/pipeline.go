// Package pipeline composes one scoring run: fetch a raw transaction,
// align it to the model's schema, score it, and record the result. Stages
// run strictly in sequence; each stage's output is the next one's sole
// input, and only the final recording stage mutates durable state.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cnoret/fraudpipe/internal/domain"
	"github.com/cnoret/fraudpipe/internal/logger"
	"github.com/cnoret/fraudpipe/internal/metrics"
)

// Fetcher retrieves one raw transaction from the upstream feed.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.RawTransaction, error)
}

// Aligner reshapes a raw transaction onto the model's expected schema.
// Alignment never fails; schema discovery problems are absorbed inside.
type Aligner interface {
	Align(ctx context.Context, raw domain.RawTransaction) domain.AlignedPayload
}

// Scorer obtains a fraud probability and label for an aligned payload.
type Scorer interface {
	Score(ctx context.Context, payload domain.AlignedPayload) (domain.ScoreResult, error)
}

// State is the shared state threaded through the steps of one run.
type State struct {
	RunID         string
	Raw           domain.RawTransaction
	Payload       domain.AlignedPayload
	Result        domain.ScoreResult
	TransactionID string
	Alerted       bool
}

// Step is a single stage of the run.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline from the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Run executes one complete scoring run. It is stateless between calls and
// safe to invoke repeatedly or concurrently: the recorder's atomic upsert
// is what keeps overlapping runs for the same transaction consistent. A
// failed run commits nothing besides, at most, that single upsert, so the
// scheduler may retry the whole run as-is.
func (p *Pipeline) Run(ctx context.Context) (*State, error) {
	state := &State{RunID: uuid.NewString()}
	log := logger.FromContext(ctx).With().Str("run_id", state.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().Msg("Starting scoring run")

	for _, step := range p.steps {
		start := time.Now()
		err := step.Execute(ctx, state)
		metrics.StageLatency.WithLabelValues(step.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.StageFailures.WithLabelValues(step.Name()).Inc()
			metrics.RunsTotal.WithLabelValues("failure").Inc()
			log.Error().
				Err(err).
				Str("stage", step.Name()).
				Str("transaction_id", state.TransactionID).
				Msg("Scoring run failed")
			return state, fmt.Errorf("pipeline: %s stage: %w", step.Name(), err)
		}
	}

	metrics.RunsTotal.WithLabelValues("success").Inc()
	log.Info().
		Str("transaction_id", state.TransactionID).
		Float64("probability", state.Result.Probability).
		Int("prediction", state.Result.Prediction).
		Bool("alerted", state.Alerted).
		Msg("Scoring run completed")
	return state, nil
}
