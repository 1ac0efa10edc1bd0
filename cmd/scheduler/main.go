// Command scheduler runs the scoring pipeline on a fixed interval. Each
// tick publishes one job to an in-memory queue; a small worker pool
// executes runs and re-publishes failed ones up to the configured retry
// count. Overlapping runs are tolerated: the recorder's atomic upsert is
// the only shared mutable state.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cnoret/fraudpipe/internal/align"
	"github.com/cnoret/fraudpipe/internal/alert"
	"github.com/cnoret/fraudpipe/internal/archive"
	"github.com/cnoret/fraudpipe/internal/config"
	"github.com/cnoret/fraudpipe/internal/feed"
	"github.com/cnoret/fraudpipe/internal/jobs"
	"github.com/cnoret/fraudpipe/internal/jobs/inmemory"
	"github.com/cnoret/fraudpipe/internal/logger"
	"github.com/cnoret/fraudpipe/internal/pipeline"
	"github.com/cnoret/fraudpipe/internal/scoring"
	"github.com/cnoret/fraudpipe/internal/store"
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
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

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(100, 2, jobStore)

	handler := func(ctx context.Context, job *jobs.ScoreRunJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Time("scheduled_at", job.ScheduledAt).
			Int("retry_count", job.RetryCount).
			Msg("Processing scoring job")
		_, err := p.Run(ctx)
		return err
	}

	if err := queue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// Metrics and liveness listener.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics listener failed")
		}
	}()

	// Tick loop. Each tick is an independent invocation; a slow run simply
	// overlaps the next one.
	ticker := time.NewTicker(cfg.ScheduleInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-ticker.C:
				job := &jobs.ScoreRunJob{
					ScheduledAt: tick,
					MaxRetries:  cfg.MaxRetries,
				}
				if err := queue.PublishScoreRun(ctx, job); err != nil {
					log.Error().Err(err).Msg("Failed to publish scoring job")
				}
			}
		}
	}()

	log.Info().
		Dur("interval", cfg.ScheduleInterval).
		Str("storage_driver", cfg.StorageDriver).
		Msg("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down scheduler")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics listener shutdown failed")
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error waiting for in-flight jobs")
	}
	if err := queue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Scheduler exited")
}
