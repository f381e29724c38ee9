package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/adapters/metrics"
	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/ports"
)

// SyncResult reports the outcome of a bulk reconciliation run.
type SyncResult struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
}

// SyncService reconciles the snapshot store against the provider's full
// subscription list. It repairs drift from missed webhooks.
type SyncService struct {
	snapshots ports.SnapshotStore
	profiles  ports.ProfileStore
	directory ports.Directory
	provider  ports.BillingProvider
	prices    billing.TierSource
	clock     ports.Clock
	delay     time.Duration // pause between customers, keeps under provider rate limits
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

// NewSyncService creates a new bulk sync service.
func NewSyncService(
	snapshots ports.SnapshotStore,
	profiles ports.ProfileStore,
	directory ports.Directory,
	provider ports.BillingProvider,
	prices billing.TierSource,
	clock ports.Clock,
	delay time.Duration,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		snapshots: snapshots,
		profiles:  profiles,
		directory: directory,
		provider:  provider,
		prices:    prices,
		clock:     clock,
		delay:     delay,
		metrics:   collector,
		logger:    logger,
	}
}

// SyncAll fetches every provider subscription, picks the governing one per
// customer, and upserts snapshots. A failure on one customer is counted and
// skipped; the run continues.
func (s *SyncService) SyncAll(ctx context.Context) (SyncResult, error) {
	subs, err := s.provider.ListAllSubscriptions(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list provider subscriptions: %w", err)
	}

	byCustomer := make(map[string][]billing.ProviderSubscription)
	for _, sub := range subs {
		byCustomer[sub.CustomerID] = append(byCustomer[sub.CustomerID], sub)
	}

	customers := make([]string, 0, len(byCustomer))
	for id := range byCustomer {
		customers = append(customers, id)
	}
	sort.Strings(customers)

	var result SyncResult
	for i, customerID := range customers {
		if i > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.delay):
			}
		}

		if err := s.syncCustomer(ctx, customerID, byCustomer[customerID]); err != nil {
			result.Errors++
			s.metrics.SyncErrors.Inc()
			s.logger.Warn().Err(err).
				Str("customer_id", customerID).
				Msg("skipping customer in sync run")
			continue
		}
		result.Synced++
		s.metrics.SyncedSubscriptions.Inc()
	}

	s.logger.Info().
		Int("synced", result.Synced).
		Int("errors", result.Errors).
		Msg("subscription sync complete")
	return result, nil
}

func (s *SyncService) syncCustomer(ctx context.Context, customerID string, subs []billing.ProviderSubscription) error {
	sub, ok := billing.Pick(subs)
	if !ok {
		return fmt.Errorf("no subscriptions for customer %s", customerID)
	}

	cust, err := s.provider.GetCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("get customer: %w", err)
	}
	if cust.Email == "" {
		return fmt.Errorf("customer %s has no email", customerID)
	}

	userID, err := resolveUserByEmail(ctx, s.profiles, s.directory, cust.Email, s.clock.Now(), s.logger)
	if err != nil {
		return fmt.Errorf("resolve user for %s: %w", customerID, err)
	}

	snap := billing.SnapshotFrom(sub, userID, s.prices, s.clock.Now())
	if err := s.snapshots.Upsert(ctx, snap); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}
