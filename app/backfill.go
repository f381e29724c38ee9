package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/adapters/metrics"
	"github.com/quietpage/reflectd/ports"
)

// Backfill batch defaults and bounds.
const (
	defaultBackfillBatchSize  = 10
	defaultBackfillMaxBatches = 10
	maxBackfillErrors         = 20
)

// BackfillOptions controls a title backfill run.
type BackfillOptions struct {
	DryRun     bool
	BatchSize  int
	MaxBatches int
}

// BackfillResult reports the outcome of a title backfill run.
type BackfillResult struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Batches    int      `json:"batches"`
	Errors     []string `json:"errors,omitempty"`
}

// BackfillService generates titles for saved journals that never got one.
// Manually titled journals are out of scope by query.
type BackfillService struct {
	journals ports.JournalStore
	titles   ports.TitleGenerator
	clock    ports.Clock
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// NewBackfillService creates a new title backfill service.
func NewBackfillService(
	journals ports.JournalStore,
	titles ports.TitleGenerator,
	clock ports.Clock,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *BackfillService {
	return &BackfillService{
		journals: journals,
		titles:   titles,
		clock:    clock,
		metrics:  collector,
		logger:   logger,
	}
}

// Run walks journals missing a generated title in batches. Successful updates
// shrink the candidate set, so the read offset only advances past entries
// that were skipped or failed.
func (s *BackfillService) Run(ctx context.Context, opts BackfillOptions) (BackfillResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBackfillBatchSize
	}
	if opts.MaxBatches <= 0 {
		opts.MaxBatches = defaultBackfillMaxBatches
	}

	var result BackfillResult
	offset := 0

	for result.Batches < opts.MaxBatches {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.journals.ListMissingTitle(ctx, opts.BatchSize, offset)
		if err != nil {
			return result, fmt.Errorf("list journals missing titles: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		result.Batches++

		for _, j := range batch {
			result.Processed++

			if j.Summary == "" {
				result.Skipped++
				offset++
				continue
			}
			if opts.DryRun {
				result.Skipped++
				offset++
				continue
			}

			gen, err := s.titles.Generate(ctx, j.Summary)
			if err != nil {
				s.recordFailure(&result, j.ID, err)
				offset++
				continue
			}
			if err := s.journals.UpdateTitle(ctx, j.ID, gen.Title, gen.Model, s.clock.Now()); err != nil {
				s.recordFailure(&result, j.ID, err)
				offset++
				continue
			}

			result.Successful++
			s.metrics.TitleGenerations.WithLabelValues("backfill").Inc()
		}
	}

	s.logger.Info().
		Bool("dry_run", opts.DryRun).
		Int("processed", result.Processed).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int("batches", result.Batches).
		Msg("title backfill complete")
	return result, nil
}

func (s *BackfillService) recordFailure(result *BackfillResult, journalID string, err error) {
	result.Failed++
	s.metrics.TitleGenerations.WithLabelValues("failure").Inc()
	if len(result.Errors) < maxBackfillErrors {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", journalID, err))
	}
	s.logger.Warn().Err(err).
		Str("journal_id", journalID).
		Msg("title backfill failed for journal")
}
