package pipeline

import (
	"github.com/cnoret/fraudpipe/internal/alert"
	"github.com/cnoret/fraudpipe/internal/archive"
	"github.com/cnoret/fraudpipe/internal/store"
)

// NewScoringPipeline assembles the standard fetch → archive → align →
// score → record run. archiver may be nil to disable raw-record archiving.
func NewScoringPipeline(
	fetcher Fetcher,
	aligner Aligner,
	scorer Scorer,
	st store.TransactionStore,
	notifier alert.Notifier,
	archiver archive.Archiver,
	alertThreshold float64,
) *Pipeline {
	return NewPipeline(
		&FetchStep{Fetcher: fetcher},
		&ArchiveStep{Archiver: archiver},
		&AlignStep{Aligner: aligner},
		&ScoreStep{Scorer: scorer},
		&RecordStep{Store: st, Notifier: notifier, AlertThreshold: alertThreshold},
	)
}
