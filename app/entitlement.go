// Package app contains application services. Services orchestrate stores and
// providers; decisions themselves live in domain packages as pure functions.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/adapters/metrics"
	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/domain/entitlement"
	"github.com/quietpage/reflectd/domain/identity"
	"github.com/quietpage/reflectd/ports"
)

// ErrCountUnavailable is returned when the saved-journal count cannot be read.
// Without the count no free-tier decision is safe, so the caller must fail
// rather than guess.
var ErrCountUnavailable = errors.New("journal count unavailable")

// EntitlementService computes entitlement verdicts. The snapshot store is the
// source of truth; a live provider lookup happens only when no snapshot exists
// yet (cold start) and its result is never written back.
type EntitlementService struct {
	snapshots ports.SnapshotStore
	journals  ports.JournalStore
	provider  ports.BillingProvider
	prices    billing.TierSource
	clock     ports.Clock
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

// NewEntitlementService creates a new entitlement service.
func NewEntitlementService(
	snapshots ports.SnapshotStore,
	journals ports.JournalStore,
	provider ports.BillingProvider,
	prices billing.TierSource,
	clock ports.Clock,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *EntitlementService {
	return &EntitlementService{
		snapshots: snapshots,
		journals:  journals,
		provider:  provider,
		prices:    prices,
		clock:     clock,
		metrics:   collector,
		logger:    logger,
	}
}

// Evaluate computes the verdict for an authenticated user.
func (s *EntitlementService) Evaluate(ctx context.Context, who identity.Claims) (entitlement.Verdict, error) {
	now := s.clock.Now()

	count, err := s.journals.CountSaved(ctx, who.SubjectID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", who.SubjectID).
			Msg("failed to count saved journals")
		return entitlement.Verdict{}, fmt.Errorf("%w: %v", ErrCountUnavailable, err)
	}

	snap, err := s.Snapshot(ctx, who)
	if err != nil {
		return entitlement.Verdict{}, err
	}

	verdict := entitlement.Evaluate(snap, count, now)
	s.metrics.Verdicts.WithLabelValues(verdict.Reason).Inc()
	return verdict, nil
}

// Snapshot resolves the subscription snapshot governing a user's entitlement.
// It returns nil when the user has no subscription anywhere, which is a valid
// state, not an error.
func (s *EntitlementService) Snapshot(ctx context.Context, who identity.Claims) (*billing.Snapshot, error) {
	snap, err := s.snapshots.Get(ctx, who.SubjectID)
	if err == nil {
		return &snap, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		s.logger.Error().Err(err).
			Str("user_id", who.SubjectID).
			Msg("snapshot store read failed")
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return s.liveFallback(ctx, who), nil
}

// liveFallback covers the window between signup and the first webhook: the
// cache has no row yet, so ask the provider directly. The result is NOT
// persisted; only the webhook/sync ingestor writes snapshots. Any provider
// failure degrades to the free tier instead of blocking the user.
func (s *EntitlementService) liveFallback(ctx context.Context, who identity.Claims) *billing.Snapshot {
	s.metrics.ProviderFallbacks.Inc()

	cust, err := s.provider.FindCustomerByEmail(ctx, who.Email)
	if errors.Is(err, ports.ErrNoCustomer) {
		return nil
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", who.SubjectID).
			Msg("provider customer lookup failed, degrading to free tier")
		return nil
	}

	subs, err := s.provider.ListSubscriptions(ctx, cust.ID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", who.SubjectID).
			Str("customer_id", cust.ID).
			Msg("provider subscription lookup failed, degrading to free tier")
		return nil
	}

	sub, ok := billing.Pick(subs)
	if !ok {
		return nil
	}
	snap := billing.SnapshotFrom(sub, who.SubjectID, s.prices, s.clock.Now())
	return &snap
}
