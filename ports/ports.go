// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/domain/identity"
	"github.com/quietpage/reflectd/domain/journal"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ErrNotFound is returned by stores when a record does not exist.
// Absence of a subscription snapshot is a valid state (new/free user), so
// callers must branch on this error rather than failing.
var ErrNotFound = errors.New("not found")

// ErrLimitReached is returned by the conditional journal insert when the
// saved-journal cap is already met.
var ErrLimitReached = errors.New("saved journal limit reached")

// SnapshotStore persists the local mirror of provider subscription state,
// one row per user. Written only by the webhook/sync ingestor.
type SnapshotStore interface {
	// Get retrieves the snapshot for a user, or ErrNotFound.
	Get(ctx context.Context, userID string) (billing.Snapshot, error)

	// Upsert overwrites the snapshot keyed by UserID (no event log).
	Upsert(ctx context.Context, snap billing.Snapshot) error
}

// JournalStore persists journal records.
type JournalStore interface {
	// Get retrieves a journal by ID.
	Get(ctx context.Context, id string) (journal.Journal, error)

	// ListByUser returns a user's saved journals, newest first.
	ListByUser(ctx context.Context, userID string) ([]journal.Journal, error)

	// CountSaved returns the number of saved journals for a user.
	CountSaved(ctx context.Context, userID string) (int, error)

	// Insert stores a new journal record.
	Insert(ctx context.Context, j journal.Journal) error

	// InsertSavedIfUnder stores a saved journal only while the user's saved
	// count is below maxSaved, as a single conditional write. Returns
	// ErrLimitReached when the cap is already met.
	InsertSavedIfUnder(ctx context.Context, j journal.Journal, maxSaved int) error

	// ListMissingTitle returns saved journals without a generated title,
	// oldest first, for the backfill job.
	ListMissingTitle(ctx context.Context, limit, offset int) ([]journal.Journal, error)

	// UpdateTitle sets a generated title on a journal.
	UpdateTitle(ctx context.Context, id, title, model string, at time.Time) error
}

// Profile is a locally stored user profile.
type Profile struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// ProfileStore persists user profiles mirrored from the auth provider.
type ProfileStore interface {
	// Get retrieves a profile by user ID.
	Get(ctx context.Context, id string) (Profile, error)

	// GetByEmail retrieves a profile by email.
	GetByEmail(ctx context.Context, email string) (Profile, error)

	// Upsert stores or updates a profile.
	Upsert(ctx context.Context, p Profile) error
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// ErrNoCustomer is returned when the billing provider has no customer for a
// lookup key.
var ErrNoCustomer = errors.New("no billing customer")

// ErrNoUpcomingInvoice is returned when no invoice preview is available.
var ErrNoUpcomingInvoice = errors.New("no upcoming invoice")

// BillingProvider interfaces with the payment processor (Stripe).
type BillingProvider interface {
	// Name returns the provider name (e.g., "stripe").
	Name() string

	// FindCustomerByEmail returns the customer indexed under an email, or
	// ErrNoCustomer.
	FindCustomerByEmail(ctx context.Context, email string) (billing.Customer, error)

	// GetCustomer retrieves a customer by ID.
	GetCustomer(ctx context.Context, customerID string) (billing.Customer, error)

	// CreateCustomer creates a customer, tagging it with the user ID.
	CreateCustomer(ctx context.Context, email, userID string) (billing.Customer, error)

	// ListSubscriptions returns all subscriptions for a customer.
	ListSubscriptions(ctx context.Context, customerID string) ([]billing.ProviderSubscription, error)

	// ListAllSubscriptions returns every subscription the provider knows
	// about, for the bulk sync job.
	ListAllSubscriptions(ctx context.Context) ([]billing.ProviderSubscription, error)

	// SetCancelAtPeriodEnd flips the cancel-at-period-end flag.
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (billing.ProviderSubscription, error)

	// CancelNow cancels a subscription immediately.
	CancelNow(ctx context.Context, subscriptionID string) (billing.ProviderSubscription, error)

	// CreatePortalSession creates a customer portal session and returns its URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// ListInvoices returns recent invoices for a customer.
	ListInvoices(ctx context.Context, customerID string, limit int) ([]billing.Invoice, error)

	// UpcomingInvoice previews the next invoice, or ErrNoUpcomingInvoice.
	UpcomingInvoice(ctx context.Context, customerID string) (billing.UpcomingInvoice, error)

	// VerifyWebhook checks the event signature and returns the parsed event.
	VerifyWebhook(payload []byte, signature string) (billing.Event, error)
}

// Directory looks up users in the auth provider's user directory. It is the
// fallback when a billing customer's email has no local profile row yet
// (a webhook can arrive before the profile is mirrored).
type Directory interface {
	// UserIDByEmail returns the auth provider's user ID for an email, or
	// ErrNotFound.
	UserIDByEmail(ctx context.Context, email string) (string, error)
}

// TitleGenerator produces a short display title for a journal summary.
// Failures are always non-fatal to the caller.
type TitleGenerator interface {
	Generate(ctx context.Context, summary string) (journal.Generated, error)
}

// -----------------------------------------------------------------------------
// Authentication Ports
// -----------------------------------------------------------------------------

// IdentityResolver extracts identity claims from a bearer credential.
type IdentityResolver interface {
	Resolve(credential string) (identity.Claims, error)
}
