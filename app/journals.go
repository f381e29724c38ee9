package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/adapters/metrics"
	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/domain/entitlement"
	"github.com/quietpage/reflectd/domain/identity"
	"github.com/quietpage/reflectd/domain/journal"
	"github.com/quietpage/reflectd/ports"
)

// ErrInvalidPayload is returned when a save request fails validation.
var ErrInvalidPayload = errors.New("invalid journal payload")

// NotEntitledError is returned when the persistence gate denies a save.
type NotEntitledError struct {
	Reason string
}

func (e *NotEntitledError) Error() string {
	return "not entitled: " + e.Reason
}

// SaveInput is a request to save a journal.
type SaveInput struct {
	Summary        string
	ReflectionType journal.ReflectionType
	Title          string // optional, marks the title as manual
}

// SaveResult reports the stored journal and whether its title came from the
// AI generator.
type SaveResult struct {
	Journal        journal.Journal
	TitleGenerated bool
}

// JournalService saves and lists journals. Every save re-evaluates entitlement
// at write time; the client's view of its own entitlement is advisory only.
type JournalService struct {
	journals     ports.JournalStore
	entitlements *EntitlementService
	titles       ports.TitleGenerator
	idGen        ports.IDGenerator
	clock        ports.Clock
	metrics      *metrics.Collector
	logger       zerolog.Logger
}

// NewJournalService creates a new journal service.
func NewJournalService(
	journals ports.JournalStore,
	entitlements *EntitlementService,
	titles ports.TitleGenerator,
	idGen ports.IDGenerator,
	clock ports.Clock,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *JournalService {
	return &JournalService{
		journals:     journals,
		entitlements: entitlements,
		titles:       titles,
		idGen:        idGen,
		clock:        clock,
		metrics:      collector,
		logger:       logger,
	}
}

// Save validates, gates, titles, and persists a journal.
func (s *JournalService) Save(ctx context.Context, who identity.Claims, in SaveInput) (SaveResult, error) {
	in.Summary = strings.TrimSpace(in.Summary)
	if in.Summary == "" || !journal.ValidType(in.ReflectionType) {
		return SaveResult{}, ErrInvalidPayload
	}

	verdict, err := s.entitlements.Evaluate(ctx, who)
	if err != nil {
		return SaveResult{}, err
	}
	if !verdict.CanCreateJournals {
		s.logger.Info().
			Str("user_id", who.SubjectID).
			Str("reason", verdict.Reason).
			Msg("journal save denied")
		return SaveResult{}, &NotEntitledError{Reason: verdict.Reason}
	}

	now := s.clock.Now()
	j := journal.Journal{
		ID:             s.idGen.New(),
		UserID:         who.SubjectID,
		Summary:        in.Summary,
		ReflectionType: in.ReflectionType,
		Saved:          true,
		CreatedAt:      now,
		CompletedAt:    &now,
	}

	titleGenerated := false
	if manual := journal.CleanTitle(in.Title); manual != "" {
		j.Title = manual
		j.TitleSource = journal.TitleSourceManual
	} else {
		j.Title, j.TitleSource, titleGenerated = s.title(ctx, &j, in.Summary)
	}

	// The write itself re-checks the cap for free-tier users so two racing
	// saves cannot both land past the limit.
	if verdict.PlanName == billing.TierFree {
		err = s.journals.InsertSavedIfUnder(ctx, j, entitlement.FreeTierLimit)
		if errors.Is(err, ports.ErrLimitReached) {
			return SaveResult{}, &NotEntitledError{Reason: entitlement.ReasonFreeTierLimit}
		}
	} else {
		err = s.journals.Insert(ctx, j)
	}
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", who.SubjectID).
			Msg("failed to persist journal")
		return SaveResult{}, fmt.Errorf("persist journal: %w", err)
	}

	s.logger.Info().
		Str("user_id", who.SubjectID).
		Str("journal_id", j.ID).
		Str("title_source", string(j.TitleSource)).
		Msg("journal saved")
	return SaveResult{Journal: j, TitleGenerated: titleGenerated}, nil
}

// title attempts AI generation and falls back to the deterministic default.
// Generation failures are never fatal to a save.
func (s *JournalService) title(ctx context.Context, j *journal.Journal, summary string) (string, journal.TitleSource, bool) {
	gen, err := s.titles.Generate(ctx, summary)
	if err != nil {
		s.metrics.TitleGenerations.WithLabelValues("fallback").Inc()
		s.logger.Warn().Err(err).
			Str("journal_id", j.ID).
			Msg("title generation failed, using default title")
		return journal.DefaultTitle(j.ReflectionType), journal.TitleSourceDefault, false
	}
	s.metrics.TitleGenerations.WithLabelValues("success").Inc()
	j.GeneratedTitle = gen.Title
	j.TitleModel = gen.Model
	j.TitleGeneratedAt = &j.CreatedAt
	return gen.Title, journal.TitleSourceAI, true
}

// List returns a user's saved journals, newest first.
func (s *JournalService) List(ctx context.Context, who identity.Claims) ([]journal.Journal, error) {
	out, err := s.journals.ListByUser(ctx, who.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}
	return out, nil
}
