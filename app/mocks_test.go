package app

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/adapters/clock"
	"github.com/quietpage/reflectd/adapters/metrics"
	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/domain/identity"
	"github.com/quietpage/reflectd/domain/journal"
	"github.com/quietpage/reflectd/ports"
)

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

var alice = identity.Claims{
	SubjectID: "user-alice",
	Issuer:    "https://auth.example.com",
	Email:     "alice@example.com",
}

func testClock() *clock.Fake {
	return clock.NewFake(testNow)
}

func testMetrics() *metrics.Collector {
	return metrics.NewWithRegistry(prometheus.NewRegistry())
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeProvider is a configurable in-memory billing provider.
type fakeProvider struct {
	customers     map[string]billing.Customer // by email
	subscriptions map[string][]billing.ProviderSubscription
	invoices      []billing.Invoice
	upcoming      billing.UpcomingInvoice
	hasUpcoming   bool
	portalURL     string
	created       []billing.Customer
	updated       map[string]bool // subscription ID -> cancel flag passed

	err error // when set, every call fails with it
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customers:     make(map[string]billing.Customer),
		subscriptions: make(map[string][]billing.ProviderSubscription),
		updated:       make(map[string]bool),
		portalURL:     "https://billing.example.com/session",
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FindCustomerByEmail(ctx context.Context, email string) (billing.Customer, error) {
	if p.err != nil {
		return billing.Customer{}, p.err
	}
	c, ok := p.customers[email]
	if !ok {
		return billing.Customer{}, ports.ErrNoCustomer
	}
	return c, nil
}

func (p *fakeProvider) GetCustomer(ctx context.Context, customerID string) (billing.Customer, error) {
	if p.err != nil {
		return billing.Customer{}, p.err
	}
	for _, c := range p.customers {
		if c.ID == customerID {
			return c, nil
		}
	}
	return billing.Customer{}, ports.ErrNoCustomer
}

func (p *fakeProvider) CreateCustomer(ctx context.Context, email, userID string) (billing.Customer, error) {
	if p.err != nil {
		return billing.Customer{}, p.err
	}
	c := billing.Customer{ID: "cus_new_" + userID, Email: email}
	p.customers[email] = c
	p.created = append(p.created, c)
	return c, nil
}

func (p *fakeProvider) ListSubscriptions(ctx context.Context, customerID string) ([]billing.ProviderSubscription, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.subscriptions[customerID], nil
}

func (p *fakeProvider) ListAllSubscriptions(ctx context.Context) ([]billing.ProviderSubscription, error) {
	if p.err != nil {
		return nil, p.err
	}
	var out []billing.ProviderSubscription
	for _, subs := range p.subscriptions {
		out = append(out, subs...)
	}
	return out, nil
}

func (p *fakeProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (billing.ProviderSubscription, error) {
	if p.err != nil {
		return billing.ProviderSubscription{}, p.err
	}
	p.updated[subscriptionID] = cancel
	for _, subs := range p.subscriptions {
		for _, s := range subs {
			if s.ID == subscriptionID {
				s.CancelAtPeriodEnd = cancel
				return s, nil
			}
		}
	}
	return billing.ProviderSubscription{ID: subscriptionID, CancelAtPeriodEnd: cancel}, nil
}

func (p *fakeProvider) CancelNow(ctx context.Context, subscriptionID string) (billing.ProviderSubscription, error) {
	if p.err != nil {
		return billing.ProviderSubscription{}, p.err
	}
	return billing.ProviderSubscription{ID: subscriptionID, Status: billing.StatusCanceled}, nil
}

func (p *fakeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.portalURL, nil
}

func (p *fakeProvider) ListInvoices(ctx context.Context, customerID string, limit int) ([]billing.Invoice, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.invoices, nil
}

func (p *fakeProvider) UpcomingInvoice(ctx context.Context, customerID string) (billing.UpcomingInvoice, error) {
	if p.err != nil {
		return billing.UpcomingInvoice{}, p.err
	}
	if !p.hasUpcoming {
		return billing.UpcomingInvoice{}, ports.ErrNoUpcomingInvoice
	}
	return p.upcoming, nil
}

func (p *fakeProvider) VerifyWebhook(payload []byte, signature string) (billing.Event, error) {
	return billing.Event{}, errors.New("not used in tests")
}

var _ ports.BillingProvider = (*fakeProvider)(nil)

// fakeDirectory is an in-memory auth user directory keyed by email.
type fakeDirectory struct {
	users map[string]string // email -> user ID
	err   error
	calls int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]string)}
}

func (d *fakeDirectory) UserIDByEmail(ctx context.Context, email string) (string, error) {
	d.calls++
	if d.err != nil {
		return "", d.err
	}
	id, ok := d.users[email]
	if !ok {
		return "", ports.ErrNotFound
	}
	return id, nil
}

var _ ports.Directory = (*fakeDirectory)(nil)

// fakeTitles is a configurable title generator.
type fakeTitles struct {
	title string
	model string
	err   error
	calls int
}

func (g *fakeTitles) Generate(ctx context.Context, summary string) (journal.Generated, error) {
	g.calls++
	if g.err != nil {
		return journal.Generated{}, g.err
	}
	return journal.Generated{Title: g.title, Model: g.model}, nil
}

var _ ports.TitleGenerator = (*fakeTitles)(nil)

// failingJournals wraps a JournalStore and fails CountSaved.
type failingJournals struct {
	ports.JournalStore
}

func (s failingJournals) CountSaved(ctx context.Context, userID string) (int, error) {
	return 0, errors.New("database locked")
}

func testPrices() billing.PriceTable {
	return billing.PriceTable{"price_premium_monthly": billing.TierPremium}
}

func premiumSub(id, customerID string, status billing.SubscriptionStatus) billing.ProviderSubscription {
	periodEnd := testNow.Add(14 * 24 * time.Hour)
	return billing.ProviderSubscription{
		ID:               id,
		CustomerID:       customerID,
		Status:           status,
		PriceID:          "price_premium_monthly",
		ProductID:        "prod_premium",
		UnitAmount:       999,
		Currency:         "usd",
		Interval:         "month",
		CurrentPeriodEnd: &periodEnd,
		Created:          testNow.Add(-30 * 24 * time.Hour),
	}
}
