// Command run executes a single scoring pipeline run and exits. Useful for
// smoke-testing a deployment and for external schedulers that exec a
// process per tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/cnoret/fraudpipe/internal/align"
	"github.com/cnoret/fraudpipe/internal/alert"
	"github.com/cnoret/fraudpipe/internal/archive"
	"github.com/cnoret/fraudpipe/internal/config"
	"github.com/cnoret/fraudpipe/internal/feed"
	"github.com/cnoret/fraudpipe/internal/logger"
	"github.com/cnoret/fraudpipe/internal/pipeline"
	"github.com/cnoret/fraudpipe/internal/scoring"
	"github.com/cnoret/fraudpipe/internal/store"
)

func main() {
	log := logger.New()

	budget := flag.Duration("budget", 2*time.Minute, "overall time budget for the run")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *budget)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, err := store.FromConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure storage schema")
	}

	var archiver archive.Archiver
	if cfg.ArchiveBucket != "" {
		a, err := archive.NewGCSArchiver(ctx, cfg.ArchiveBucket)
		if err != nil {
			log.Warn().Err(err).Msg("Archiver unavailable, raw records will not be kept")
		} else {
			archiver = a
			defer a.Close()
		}
	}

	scorer := scoring.NewClient(cfg.ScoringURL, cfg.SchemaURL, cfg.HTTPTimeout)
	p := pipeline.NewScoringPipeline(
		feed.NewClient(cfg.FeedURL, cfg.HTTPTimeout),
		align.New(scorer, align.DefaultTable()),
		scorer,
		st,
		alert.LogNotifier{},
		archiver,
		cfg.AlertThreshold,
	)

	state, err := p.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Scoring run failed")
	}

	fmt.Printf("Scored transaction %s: probability=%.6f prediction=%d\n",
		state.TransactionID, state.Result.Probability, state.Result.Prediction)
}
