// Package payment provides billing provider adapters.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/billingportal/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/invoice"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/ports"
)

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// StripeProvider implements ports.BillingProvider for Stripe.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) *StripeProvider {
	stripe.Key = config.SecretKey
	return &StripeProvider{config: config}
}

// Name returns the provider name.
func (p *StripeProvider) Name() string {
	return "stripe"
}

// FindCustomerByEmail returns the first customer indexed under an email.
func (p *StripeProvider) FindCustomerByEmail(ctx context.Context, email string) (billing.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	it := customer.List(params)
	for it.Next() {
		c := it.Customer()
		return billing.Customer{ID: c.ID, Email: c.Email}, nil
	}
	if err := it.Err(); err != nil {
		return billing.Customer{}, fmt.Errorf("list customers: %w", err)
	}
	return billing.Customer{}, ports.ErrNoCustomer
}

// GetCustomer retrieves a customer by ID.
func (p *StripeProvider) GetCustomer(ctx context.Context, customerID string) (billing.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := customer.Get(customerID, params)
	if err != nil {
		return billing.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return billing.Customer{ID: c.ID, Email: c.Email}, nil
}

// CreateCustomer creates a customer, tagging it with the user ID.
func (p *StripeProvider) CreateCustomer(ctx context.Context, email, userID string) (billing.Customer, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.AddMetadata("user_id", userID)
	params.Context = ctx

	c, err := customer.New(params)
	if err != nil {
		return billing.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return billing.Customer{ID: c.ID, Email: c.Email}, nil
}

// ListSubscriptions returns all subscriptions for a customer, any status.
func (p *StripeProvider) ListSubscriptions(ctx context.Context, customerID string) ([]billing.ProviderSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	return collectSubscriptions(subscription.List(params))
}

// ListAllSubscriptions returns every subscription Stripe knows about, for the
// bulk sync job.
func (p *StripeProvider) ListAllSubscriptions(ctx context.Context) ([]billing.ProviderSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Status: stripe.String("all"),
	}
	params.Limit = stripe.Int64(100)
	params.Context = ctx
	return collectSubscriptions(subscription.List(params))
}

// SetCancelAtPeriodEnd flips the cancel-at-period-end flag.
func (p *StripeProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (billing.ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx

	s, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return billing.ProviderSubscription{}, fmt.Errorf("update subscription: %w", err)
	}
	return mapSubscription(s), nil
}

// CancelNow cancels a subscription immediately.
func (p *StripeProvider) CancelNow(ctx context.Context, subscriptionID string) (billing.ProviderSubscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	s, err := subscription.Cancel(subscriptionID, params)
	if err != nil {
		return billing.ProviderSubscription{}, fmt.Errorf("cancel subscription: %w", err)
	}
	return mapSubscription(s), nil
}

// CreatePortalSession creates a customer portal session.
func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return s.URL, nil
}

// ListInvoices returns recent invoices for a customer.
func (p *StripeProvider) ListInvoices(ctx context.Context, customerID string, limit int) ([]billing.Invoice, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
	}
	params.Limit = stripe.Int64(int64(limit))
	params.Context = ctx

	var out []billing.Invoice
	it := invoice.List(params)
	for it.Next() {
		inv := it.Invoice()
		out = append(out, billing.Invoice{
			ID:         inv.ID,
			Date:       time.Unix(inv.Created, 0).UTC(),
			AmountPaid: inv.AmountPaid,
			Currency:   string(inv.Currency),
			Status:     string(inv.Status),
			HostedURL:  inv.HostedInvoiceURL,
			PDFURL:     inv.InvoicePDF,
			Number:     inv.Number,
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

// UpcomingInvoice previews the next invoice for a customer. Stripe reports a
// dedicated error code when there is nothing to preview (no subscription).
func (p *StripeProvider) UpcomingInvoice(ctx context.Context, customerID string) (billing.UpcomingInvoice, error) {
	params := &stripe.InvoiceUpcomingParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx

	inv, err := invoice.Upcoming(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Code == stripe.ErrorCodeInvoiceUpcomingNone {
			return billing.UpcomingInvoice{}, ports.ErrNoUpcomingInvoice
		}
		return billing.UpcomingInvoice{}, fmt.Errorf("upcoming invoice: %w", err)
	}

	out := billing.UpcomingInvoice{
		AmountDue: inv.AmountDue,
		Currency:  string(inv.Currency),
	}
	if inv.PeriodStart > 0 {
		t := time.Unix(inv.PeriodStart, 0).UTC()
		out.PeriodStart = &t
	}
	if inv.PeriodEnd > 0 {
		t := time.Unix(inv.PeriodEnd, 0).UTC()
		out.PeriodEnd = &t
	}
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			out.Lines = append(out.Lines, billing.InvoiceLine{
				Description: line.Description,
				Amount:      line.Amount,
				Currency:    string(line.Currency),
				Quantity:    line.Quantity,
			})
		}
	}
	return out, nil
}

// VerifyWebhook checks the event signature and returns the parsed event.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (billing.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.config.WebhookSecret)
	if err != nil {
		return billing.Event{}, err
	}

	out := billing.Event{Type: string(event.Type)}
	if billing.IsSubscriptionEvent(out.Type) {
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return billing.Event{}, fmt.Errorf("decode subscription event: %w", err)
		}
		out.Subscription = mapSubscription(&sub)
	}
	return out, nil
}

func collectSubscriptions(it *subscription.Iter) ([]billing.ProviderSubscription, error) {
	var out []billing.ProviderSubscription
	for it.Next() {
		out = append(out, mapSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return out, nil
}

func mapSubscription(s *stripe.Subscription) billing.ProviderSubscription {
	sub := billing.ProviderSubscription{
		ID:                s.ID,
		Status:            billing.SubscriptionStatus(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Created:           time.Unix(s.Created, 0).UTC(),
	}
	if s.Customer != nil {
		sub.CustomerID = s.Customer.ID
	}
	if s.CurrentPeriodEnd > 0 {
		t := time.Unix(s.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &t
	}
	if s.TrialEnd > 0 {
		t := time.Unix(s.TrialEnd, 0).UTC()
		sub.TrialEnd = &t
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		price := s.Items.Data[0].Price
		if price != nil {
			sub.PriceID = price.ID
			sub.UnitAmount = price.UnitAmount
			sub.Currency = string(price.Currency)
			if price.Product != nil {
				sub.ProductID = price.Product.ID
			}
			if price.Recurring != nil {
				sub.Interval = string(price.Recurring.Interval)
			}
		}
	}
	return sub
}

// Ensure interface compliance.
var _ ports.BillingProvider = (*StripeProvider)(nil)
