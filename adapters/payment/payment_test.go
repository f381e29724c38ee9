package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/quietpage/reflectd/config"
	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/ports"
)

func configFor(mode, secret string) config.BillingConfig {
	return config.BillingConfig{Mode: mode, SecretKey: secret, WebhookSecret: "whsec_test"}
}

func TestMapSubscription(t *testing.T) {
	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trialEnd := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	s := &stripe.Subscription{
		ID:                "sub_123",
		Status:            stripe.SubscriptionStatusTrialing,
		CancelAtPeriodEnd: true,
		Created:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		CurrentPeriodEnd:  periodEnd.Unix(),
		TrialEnd:          trialEnd.Unix(),
		Customer:          &stripe.Customer{ID: "cus_123"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				Price: &stripe.Price{
					ID:         "price_123",
					UnitAmount: 999,
					Currency:   stripe.CurrencyUSD,
					Product:    &stripe.Product{ID: "prod_123"},
					Recurring:  &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalMonth},
				},
			}},
		},
	}

	got := mapSubscription(s)

	if got.ID != "sub_123" || got.CustomerID != "cus_123" {
		t.Errorf("IDs = %q/%q", got.ID, got.CustomerID)
	}
	if got.Status != billing.StatusTrialing {
		t.Errorf("Status = %q, want trialing", got.Status)
	}
	if !got.CancelAtPeriodEnd {
		t.Error("CancelAtPeriodEnd = false, want true")
	}
	if got.PriceID != "price_123" || got.ProductID != "prod_123" {
		t.Errorf("price/product = %q/%q", got.PriceID, got.ProductID)
	}
	if got.UnitAmount != 999 || got.Currency != "usd" || got.Interval != "month" {
		t.Errorf("amount/currency/interval = %d/%q/%q", got.UnitAmount, got.Currency, got.Interval)
	}
	if got.CurrentPeriodEnd == nil || !got.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("CurrentPeriodEnd = %v, want %v", got.CurrentPeriodEnd, periodEnd)
	}
	if got.TrialEnd == nil || !got.TrialEnd.Equal(trialEnd) {
		t.Errorf("TrialEnd = %v, want %v", got.TrialEnd, trialEnd)
	}
}

func TestMapSubscriptionSparse(t *testing.T) {
	// Deleted-subscription events arrive with most fields cleared.
	got := mapSubscription(&stripe.Subscription{
		ID:     "sub_gone",
		Status: stripe.SubscriptionStatusCanceled,
	})

	if got.Status != billing.StatusCanceled {
		t.Errorf("Status = %q, want canceled", got.Status)
	}
	if got.CurrentPeriodEnd != nil || got.TrialEnd != nil {
		t.Error("expected nil period and trial ends")
	}
	if got.PriceID != "" || got.CustomerID != "" {
		t.Errorf("expected empty price/customer, got %q/%q", got.PriceID, got.CustomerID)
	}
}

func TestNoopProvider(t *testing.T) {
	ctx := context.Background()
	p := NewNoopProvider()

	if p.Name() != "none" {
		t.Errorf("Name = %q, want none", p.Name())
	}
	if _, err := p.FindCustomerByEmail(ctx, "a@b.com"); !errors.Is(err, ports.ErrNoCustomer) {
		t.Errorf("FindCustomerByEmail = %v, want ErrNoCustomer", err)
	}
	subs, err := p.ListSubscriptions(ctx, "cus_1")
	if err != nil || len(subs) != 0 {
		t.Errorf("ListSubscriptions = %v, %v", subs, err)
	}
	if _, err := p.CreatePortalSession(ctx, "cus_1", "https://example.com"); !errors.Is(err, ErrBillingDisabled) {
		t.Errorf("CreatePortalSession = %v, want ErrBillingDisabled", err)
	}
}

func TestNewProviderModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		secret  string
		want    string
		wantErr bool
	}{
		{name: "stripe", mode: "stripe", secret: "sk_test_123", want: "stripe"},
		{name: "stripe without key", mode: "stripe", wantErr: true},
		{name: "none", mode: "none", want: "none"},
		{name: "empty defaults to none", mode: "", want: "none"},
		{name: "unknown", mode: "paypal", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(configFor(tt.mode, tt.secret))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("Name = %q, want %q", p.Name(), tt.want)
			}
		})
	}
}
