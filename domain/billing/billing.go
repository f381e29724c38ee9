// Package billing provides subscription value types and pure functions.
// A Snapshot is the locally cached mirror of the billing provider's view of a
// user's subscription; it is written only by the webhook/sync ingestor.
package billing

import (
	"sort"
	"sync"
	"time"
)

// SubscriptionStatus represents subscription state as reported by the provider.
type SubscriptionStatus string

const (
	StatusActive            SubscriptionStatus = "active"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusPastDue           SubscriptionStatus = "past_due"
	StatusUnpaid            SubscriptionStatus = "unpaid"
	StatusCanceled          SubscriptionStatus = "canceled"
	StatusIncomplete        SubscriptionStatus = "incomplete"
	StatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
)

// Tier names. The closed price-to-tier mapping lives in PriceTable; anything
// the table does not recognize maps to the free tier.
const (
	TierFree    = "Free Spirit"
	TierPremium = "Inner Explorer"
)

// Snapshot is the cached local copy of a user's provider subscription state
// (one row per user, pure overwrite keyed by UserID).
type Snapshot struct {
	UserID            string
	Tier              string
	Status            SubscriptionStatus
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	PriceID           string
	ProductID         string
	SubscriptionID    string // external provider subscription ID
	UpdatedAt         time.Time
}

// ProviderSubscription is a subscription object as returned by the billing
// provider (value type, already mapped out of the provider SDK's shape).
type ProviderSubscription struct {
	ID                string
	CustomerID        string
	Status            SubscriptionStatus
	PriceID           string
	ProductID         string
	UnitAmount        int64 // cents
	Currency          string
	Interval          string // "month", "year"
	CurrentPeriodEnd  *time.Time
	TrialEnd          *time.Time
	CancelAtPeriodEnd bool
	Created           time.Time
}

// Customer is a billing-provider customer record.
type Customer struct {
	ID    string
	Email string
}

// Invoice is a settled or open invoice as listed by the provider.
type Invoice struct {
	ID         string
	Date       time.Time
	AmountPaid int64
	Currency   string
	Status     string
	HostedURL  string
	PDFURL     string
	Number     string
}

// UpcomingInvoice is a preview of the next invoice.
type UpcomingInvoice struct {
	AmountDue   int64
	Currency    string
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Lines       []InvoiceLine
}

// InvoiceLine is a single line on an invoice preview.
type InvoiceLine struct {
	Description string
	Amount      int64
	Currency    string
	Quantity    int64
}

// Event is a verified webhook event from the billing provider.
type Event struct {
	Type         string
	Subscription ProviderSubscription // populated for subscription events
}

// Subscription event types handled by the ingestor.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// IsSubscriptionEvent reports whether an event type carries a subscription
// object the ingestor should upsert.
// This is a PURE function.
func IsSubscriptionEvent(eventType string) bool {
	switch eventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return true
	}
	return false
}

// TierSource resolves provider price IDs to tier names. PriceTable is the
// plain implementation; Prices adds runtime replacement for config reloads.
type TierSource interface {
	Tier(priceID string) string
}

// PriceTable maps provider price IDs to tier names (closed set).
type PriceTable map[string]string

// Tier resolves a price ID to a tier name. Unrecognized prices map to the
// free tier so a misconfigured price never silently grants paid access.
// This is a PURE function.
func (t PriceTable) Tier(priceID string) string {
	if tier, ok := t[priceID]; ok {
		return tier
	}
	return TierFree
}

// Prices is a replaceable price table. Services hold it for the process
// lifetime; a config reload swaps the underlying table without a restart.
type Prices struct {
	mu    sync.RWMutex
	table PriceTable
}

// NewPrices creates a replaceable price table.
func NewPrices(table PriceTable) *Prices {
	return &Prices{table: table}
}

// Tier resolves a price ID against the current table.
func (p *Prices) Tier(priceID string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.table.Tier(priceID)
}

// Replace swaps in a new table.
func (p *Prices) Replace(table PriceTable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.table = table
}

var _ TierSource = (*Prices)(nil)
var _ TierSource = PriceTable(nil)

// Pick selects the subscription that governs entitlement when a customer has
// several (plan changes leave stale records behind): active wins over
// trialing, which wins over the most recently created of any other status.
// This is a PURE function.
func Pick(subs []ProviderSubscription) (ProviderSubscription, bool) {
	if len(subs) == 0 {
		return ProviderSubscription{}, false
	}
	for _, s := range subs {
		if s.Status == StatusActive {
			return s, true
		}
	}
	for _, s := range subs {
		if s.Status == StatusTrialing {
			return s, true
		}
	}
	sorted := make([]ProviderSubscription, len(subs))
	copy(sorted, subs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Created.After(sorted[j].Created)
	})
	return sorted[0], true
}

// SnapshotFrom maps a provider subscription to a local snapshot for a user.
// For trialing subscriptions the trial end bounds the access window, so it is
// preferred over the period end when both are present.
// This is a PURE function.
func SnapshotFrom(sub ProviderSubscription, userID string, table TierSource, now time.Time) Snapshot {
	periodEnd := sub.CurrentPeriodEnd
	if sub.Status == StatusTrialing && sub.TrialEnd != nil {
		periodEnd = sub.TrialEnd
	}
	return Snapshot{
		UserID:            userID,
		Tier:              table.Tier(sub.PriceID),
		Status:            sub.Status,
		CurrentPeriodEnd:  periodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		PriceID:           sub.PriceID,
		ProductID:         sub.ProductID,
		SubscriptionID:    sub.ID,
		UpdatedAt:         now,
	}
}

// IsActive returns true if the subscription grants access right now.
func (s ProviderSubscription) IsActive(now time.Time) bool {
	switch s.Status {
	case StatusActive:
		return true
	case StatusTrialing:
		end := s.TrialEnd
		if end == nil {
			end = s.CurrentPeriodEnd
		}
		return end != nil && end.After(now)
	}
	return false
}
