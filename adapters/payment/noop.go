package payment

import (
	"context"
	"errors"

	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/ports"
)

// ErrBillingDisabled is returned when billing is not configured.
var ErrBillingDisabled = errors.New("billing is not configured")

// NoopProvider is a no-op billing provider for when billing is disabled.
// Lookups report no customer, so every user evaluates to the free tier.
type NoopProvider struct{}

// NewNoopProvider creates a new no-op billing provider.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Name returns the provider name.
func (p *NoopProvider) Name() string {
	return "none"
}

// FindCustomerByEmail reports no customer.
func (p *NoopProvider) FindCustomerByEmail(ctx context.Context, email string) (billing.Customer, error) {
	return billing.Customer{}, ports.ErrNoCustomer
}

// GetCustomer reports no customer.
func (p *NoopProvider) GetCustomer(ctx context.Context, customerID string) (billing.Customer, error) {
	return billing.Customer{}, ports.ErrNoCustomer
}

// CreateCustomer returns an error as billing is disabled.
func (p *NoopProvider) CreateCustomer(ctx context.Context, email, userID string) (billing.Customer, error) {
	return billing.Customer{}, ErrBillingDisabled
}

// ListSubscriptions returns no subscriptions.
func (p *NoopProvider) ListSubscriptions(ctx context.Context, customerID string) ([]billing.ProviderSubscription, error) {
	return nil, nil
}

// ListAllSubscriptions returns no subscriptions.
func (p *NoopProvider) ListAllSubscriptions(ctx context.Context) ([]billing.ProviderSubscription, error) {
	return nil, nil
}

// SetCancelAtPeriodEnd returns an error as billing is disabled.
func (p *NoopProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (billing.ProviderSubscription, error) {
	return billing.ProviderSubscription{}, ErrBillingDisabled
}

// CancelNow returns an error as billing is disabled.
func (p *NoopProvider) CancelNow(ctx context.Context, subscriptionID string) (billing.ProviderSubscription, error) {
	return billing.ProviderSubscription{}, ErrBillingDisabled
}

// CreatePortalSession returns an error as billing is disabled.
func (p *NoopProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "", ErrBillingDisabled
}

// ListInvoices returns no invoices.
func (p *NoopProvider) ListInvoices(ctx context.Context, customerID string, limit int) ([]billing.Invoice, error) {
	return nil, nil
}

// UpcomingInvoice reports no upcoming invoice.
func (p *NoopProvider) UpcomingInvoice(ctx context.Context, customerID string) (billing.UpcomingInvoice, error) {
	return billing.UpcomingInvoice{}, ports.ErrNoUpcomingInvoice
}

// VerifyWebhook returns an error as billing is disabled.
func (p *NoopProvider) VerifyWebhook(payload []byte, signature string) (billing.Event, error) {
	return billing.Event{}, ErrBillingDisabled
}

// Ensure interface compliance.
var _ ports.BillingProvider = (*NoopProvider)(nil)
