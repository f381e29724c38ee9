package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/domain/identity"
	"github.com/quietpage/reflectd/ports"
)

// ErrNoSubscription is returned by cancel and reactivate when the user has no
// subscription to act on.
var ErrNoSubscription = errors.New("no subscription")

// ErrCustomerReconciliation is returned when a billing customer could neither
// be found nor created for the user.
var ErrCustomerReconciliation = errors.New("customer reconciliation failed")

// SubscriptionCheck is the lightweight answer for the subscription probe.
type SubscriptionCheck struct {
	Subscribed      bool
	SubscriptionEnd *time.Time
}

// BillingStatus is the full billing view for the account page.
type BillingStatus struct {
	Tier              string
	Status            billing.SubscriptionStatus
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	UnitAmount        int64
	Currency          string
	Interval          string
	Invoices          []billing.Invoice
}

// invoiceHistoryLimit bounds the invoice list on the account page.
const invoiceHistoryLimit = 12

// BillingService serves account-facing billing operations. Reads prefer the
// snapshot cache; the mutating operations talk to the provider directly and
// rely on webhooks to refresh the cache.
type BillingService struct {
	entitlements *EntitlementService
	provider     ports.BillingProvider
	prices       billing.TierSource
	clock        ports.Clock
	returnURL    string
	logger       zerolog.Logger
}

// NewBillingService creates a new billing service.
func NewBillingService(
	entitlements *EntitlementService,
	provider ports.BillingProvider,
	prices billing.TierSource,
	clock ports.Clock,
	returnURL string,
	logger zerolog.Logger,
) *BillingService {
	return &BillingService{
		entitlements: entitlements,
		provider:     provider,
		prices:       prices,
		clock:        clock,
		returnURL:    returnURL,
		logger:       logger,
	}
}

// CheckSubscription reports whether the user currently holds a granting
// subscription, from the snapshot cache with the usual cold-start fallback.
func (s *BillingService) CheckSubscription(ctx context.Context, who identity.Claims) (SubscriptionCheck, error) {
	snap, err := s.entitlements.Snapshot(ctx, who)
	if err != nil {
		return SubscriptionCheck{}, err
	}
	if snap == nil {
		return SubscriptionCheck{}, nil
	}

	now := s.clock.Now()
	subscribed := snap.Status == billing.StatusActive ||
		(snap.Status == billing.StatusTrialing &&
			snap.CurrentPeriodEnd != nil && snap.CurrentPeriodEnd.After(now))
	if !subscribed {
		return SubscriptionCheck{}, nil
	}
	return SubscriptionCheck{Subscribed: true, SubscriptionEnd: snap.CurrentPeriodEnd}, nil
}

// Status returns the live billing view for the account page, including
// invoice history. Users without a billing customer get the free-tier view.
func (s *BillingService) Status(ctx context.Context, who identity.Claims) (BillingStatus, error) {
	free := BillingStatus{Tier: billing.TierFree}

	cust, err := s.provider.FindCustomerByEmail(ctx, who.Email)
	if errors.Is(err, ports.ErrNoCustomer) {
		return free, nil
	}
	if err != nil {
		return BillingStatus{}, fmt.Errorf("find customer: %w", err)
	}

	subs, err := s.provider.ListSubscriptions(ctx, cust.ID)
	if err != nil {
		return BillingStatus{}, fmt.Errorf("list subscriptions: %w", err)
	}
	sub, ok := billing.Pick(subs)
	if !ok {
		return free, nil
	}

	invoices, err := s.provider.ListInvoices(ctx, cust.ID, invoiceHistoryLimit)
	if err != nil {
		// The subscription view is still useful without history.
		s.logger.Warn().Err(err).
			Str("customer_id", cust.ID).
			Msg("failed to list invoices")
	}

	return BillingStatus{
		Tier:              s.prices.Tier(sub.PriceID),
		Status:            sub.Status,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		UnitAmount:        sub.UnitAmount,
		Currency:          sub.Currency,
		Interval:          sub.Interval,
		Invoices:          invoices,
	}, nil
}

// Cancel schedules the user's subscription to end at the period boundary.
func (s *BillingService) Cancel(ctx context.Context, who identity.Claims) (billing.ProviderSubscription, error) {
	return s.setCancel(ctx, who, true)
}

// CancelImmediately ends the subscription now, forfeiting remaining paid time.
func (s *BillingService) CancelImmediately(ctx context.Context, who identity.Claims) (billing.ProviderSubscription, error) {
	subID, err := s.subscriptionID(ctx, who)
	if err != nil {
		return billing.ProviderSubscription{}, err
	}

	sub, err := s.provider.CancelNow(ctx, subID)
	if err != nil {
		return billing.ProviderSubscription{}, fmt.Errorf("cancel subscription: %w", err)
	}

	s.logger.Info().
		Str("user_id", who.SubjectID).
		Str("subscription_id", subID).
		Msg("subscription canceled immediately")
	return sub, nil
}

// Reactivate clears a pending cancellation before the period ends.
func (s *BillingService) Reactivate(ctx context.Context, who identity.Claims) (billing.ProviderSubscription, error) {
	return s.setCancel(ctx, who, false)
}

func (s *BillingService) setCancel(ctx context.Context, who identity.Claims, cancel bool) (billing.ProviderSubscription, error) {
	subID, err := s.subscriptionID(ctx, who)
	if err != nil {
		return billing.ProviderSubscription{}, err
	}

	sub, err := s.provider.SetCancelAtPeriodEnd(ctx, subID, cancel)
	if err != nil {
		return billing.ProviderSubscription{}, fmt.Errorf("update subscription: %w", err)
	}

	s.logger.Info().
		Str("user_id", who.SubjectID).
		Str("subscription_id", subID).
		Bool("cancel_at_period_end", cancel).
		Msg("subscription cancellation flag updated")
	return sub, nil
}

// subscriptionID resolves the user's governing subscription ID, from the
// snapshot when possible and from the provider otherwise.
func (s *BillingService) subscriptionID(ctx context.Context, who identity.Claims) (string, error) {
	snap, err := s.entitlements.Snapshot(ctx, who)
	if err != nil {
		return "", err
	}
	if snap != nil && snap.SubscriptionID != "" {
		return snap.SubscriptionID, nil
	}

	cust, err := s.provider.FindCustomerByEmail(ctx, who.Email)
	if errors.Is(err, ports.ErrNoCustomer) {
		return "", ErrNoSubscription
	}
	if err != nil {
		return "", fmt.Errorf("find customer: %w", err)
	}
	subs, err := s.provider.ListSubscriptions(ctx, cust.ID)
	if err != nil {
		return "", fmt.Errorf("list subscriptions: %w", err)
	}
	sub, ok := billing.Pick(subs)
	if !ok {
		return "", ErrNoSubscription
	}
	return sub.ID, nil
}

// Upcoming previews the user's next invoice.
func (s *BillingService) Upcoming(ctx context.Context, who identity.Claims) (billing.UpcomingInvoice, error) {
	cust, err := s.provider.FindCustomerByEmail(ctx, who.Email)
	if errors.Is(err, ports.ErrNoCustomer) {
		return billing.UpcomingInvoice{}, ports.ErrNoUpcomingInvoice
	}
	if err != nil {
		return billing.UpcomingInvoice{}, fmt.Errorf("find customer: %w", err)
	}
	return s.provider.UpcomingInvoice(ctx, cust.ID)
}

// Portal creates a customer portal session, creating the billing customer
// first if the user has none yet.
func (s *BillingService) Portal(ctx context.Context, who identity.Claims) (string, error) {
	cust, err := s.provider.FindCustomerByEmail(ctx, who.Email)
	if errors.Is(err, ports.ErrNoCustomer) {
		cust, err = s.provider.CreateCustomer(ctx, who.Email, who.SubjectID)
		if err != nil {
			s.logger.Error().Err(err).
				Str("user_id", who.SubjectID).
				Msg("failed to create billing customer for portal")
			return "", fmt.Errorf("%w: %v", ErrCustomerReconciliation, err)
		}
		s.logger.Info().
			Str("user_id", who.SubjectID).
			Str("customer_id", cust.ID).
			Msg("created billing customer for portal session")
	} else if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCustomerReconciliation, err)
	}

	url, err := s.provider.CreatePortalSession(ctx, cust.ID, s.returnURL)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return url, nil
}
