package pipeline

import (
	"context"

	"github.com/cnoret/fraudpipe/internal/archive"
	"github.com/cnoret/fraudpipe/internal/logger"
)

// FetchStep retrieves one raw transaction from the feed.
type FetchStep struct {
	Fetcher Fetcher
}

func (s *FetchStep) Name() string { return "fetch" }

func (s *FetchStep) Execute(ctx context.Context, state *State) error {
	raw, err := s.Fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	state.Raw = raw
	return nil
}

// ArchiveStep writes the raw record to the audit archive. Advisory: a
// failed archive write is logged and the run continues.
type ArchiveStep struct {
	Archiver archive.Archiver
}

func (s *ArchiveStep) Name() string { return "archive" }

func (s *ArchiveStep) Execute(ctx context.Context, state *State) error {
	if s.Archiver == nil {
		return nil
	}
	if err := s.Archiver.ArchiveRaw(ctx, state.RunID, state.Raw); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Raw record archiving failed")
	}
	return nil
}

// AlignStep reshapes the raw transaction onto the model's schema.
type AlignStep struct {
	Aligner Aligner
}

func (s *AlignStep) Name() string { return "align" }

func (s *AlignStep) Execute(ctx context.Context, state *State) error {
	state.Payload = s.Aligner.Align(ctx, state.Raw)
	return nil
}

// ScoreStep obtains the model's verdict for the aligned payload.
type ScoreStep struct {
	Scorer Scorer
}

func (s *ScoreStep) Name() string { return "score" }

func (s *ScoreStep) Execute(ctx context.Context, state *State) error {
	result, err := s.Scorer.Score(ctx, state.Payload)
	if err != nil {
		return err
	}
	state.Result = result
	return nil
}
