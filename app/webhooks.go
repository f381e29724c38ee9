package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/adapters/metrics"
	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/ports"
)

// WebhookService ingests verified billing provider events into the snapshot
// store. It is the only writer of snapshots besides the bulk sync job.
type WebhookService struct {
	snapshots ports.SnapshotStore
	profiles  ports.ProfileStore
	directory ports.Directory
	provider  ports.BillingProvider
	prices    billing.TierSource
	clock     ports.Clock
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

// NewWebhookService creates a new webhook ingestion service.
func NewWebhookService(
	snapshots ports.SnapshotStore,
	profiles ports.ProfileStore,
	directory ports.Directory,
	provider ports.BillingProvider,
	prices billing.TierSource,
	clock ports.Clock,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *WebhookService {
	return &WebhookService{
		snapshots: snapshots,
		profiles:  profiles,
		directory: directory,
		provider:  provider,
		prices:    prices,
		clock:     clock,
		metrics:   collector,
		logger:    logger,
	}
}

// Process applies a verified event to the snapshot store. Replays are safe:
// the upsert is a pure overwrite keyed by user ID, so applying the same event
// twice converges on the same row.
func (s *WebhookService) Process(ctx context.Context, event billing.Event) error {
	if !billing.IsSubscriptionEvent(event.Type) {
		s.metrics.WebhookEvents.WithLabelValues(event.Type, "ignored").Inc()
		s.logger.Debug().
			Str("type", event.Type).
			Msg("ignoring webhook event type")
		return nil
	}

	userID, err := s.resolveUser(ctx, event.Subscription.CustomerID)
	if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrNoCustomer) {
		// Neither the profile store nor the auth directory knows this
		// customer. Ack it so the provider stops retrying; the sync job will
		// pick it up once the user exists.
		s.metrics.WebhookEvents.WithLabelValues(event.Type, "skipped").Inc()
		s.logger.Warn().
			Str("type", event.Type).
			Str("customer_id", event.Subscription.CustomerID).
			Msg("no local user for webhook customer, skipping")
		return nil
	}
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		return err
	}

	snap := billing.SnapshotFrom(event.Subscription, userID, s.prices, s.clock.Now())
	if err := s.snapshots.Upsert(ctx, snap); err != nil {
		s.metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Msg("failed to upsert snapshot from webhook")
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	s.metrics.WebhookEvents.WithLabelValues(event.Type, "ok").Inc()
	s.logger.Info().
		Str("type", event.Type).
		Str("user_id", userID).
		Str("status", string(snap.Status)).
		Str("tier", snap.Tier).
		Msg("snapshot updated from webhook")
	return nil
}

// resolveUser maps a provider customer ID to a local user ID via the
// customer's email.
func (s *WebhookService) resolveUser(ctx context.Context, customerID string) (string, error) {
	cust, err := s.provider.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, ports.ErrNoCustomer) {
			return "", err
		}
		return "", fmt.Errorf("get customer %s: %w", customerID, err)
	}
	if cust.Email == "" {
		return "", ports.ErrNotFound
	}
	return resolveUserByEmail(ctx, s.profiles, s.directory, cust.Email, s.clock.Now(), s.logger)
}
