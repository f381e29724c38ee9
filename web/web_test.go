package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/adapters/clock"
	"github.com/quietpage/reflectd/adapters/idgen"
	"github.com/quietpage/reflectd/adapters/memory"
	"github.com/quietpage/reflectd/adapters/metrics"
	"github.com/quietpage/reflectd/app"
	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/domain/identity"
	"github.com/quietpage/reflectd/domain/journal"
	"github.com/quietpage/reflectd/ports"
)

var (
	testNow   = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	testToken = "Bearer good-token"
	alice     = identity.Claims{
		SubjectID: "user-alice",
		Issuer:    "https://auth.example.com",
		Email:     "alice@example.com",
	}
)

// stubResolver accepts exactly one credential.
type stubResolver struct{}

func (stubResolver) Resolve(credential string) (identity.Claims, error) {
	if credential != testToken {
		return identity.Claims{}, errors.New("bad token")
	}
	return alice, nil
}

// stubProvider is a minimal billing provider for handler tests.
type stubProvider struct {
	event    billing.Event
	eventErr error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FindCustomerByEmail(ctx context.Context, email string) (billing.Customer, error) {
	return billing.Customer{}, ports.ErrNoCustomer
}

func (p *stubProvider) GetCustomer(ctx context.Context, customerID string) (billing.Customer, error) {
	return billing.Customer{}, ports.ErrNoCustomer
}

func (p *stubProvider) CreateCustomer(ctx context.Context, email, userID string) (billing.Customer, error) {
	return billing.Customer{ID: "cus_new", Email: email}, nil
}

func (p *stubProvider) ListSubscriptions(ctx context.Context, customerID string) ([]billing.ProviderSubscription, error) {
	return nil, nil
}

func (p *stubProvider) ListAllSubscriptions(ctx context.Context) ([]billing.ProviderSubscription, error) {
	return nil, nil
}

func (p *stubProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (billing.ProviderSubscription, error) {
	return billing.ProviderSubscription{ID: subscriptionID, CancelAtPeriodEnd: cancel}, nil
}

func (p *stubProvider) CancelNow(ctx context.Context, subscriptionID string) (billing.ProviderSubscription, error) {
	return billing.ProviderSubscription{ID: subscriptionID, Status: billing.StatusCanceled}, nil
}

func (p *stubProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.example.com/session", nil
}

func (p *stubProvider) ListInvoices(ctx context.Context, customerID string, limit int) ([]billing.Invoice, error) {
	return nil, nil
}

func (p *stubProvider) UpcomingInvoice(ctx context.Context, customerID string) (billing.UpcomingInvoice, error) {
	return billing.UpcomingInvoice{}, ports.ErrNoUpcomingInvoice
}

func (p *stubProvider) VerifyWebhook(payload []byte, signature string) (billing.Event, error) {
	if p.eventErr != nil {
		return billing.Event{}, p.eventErr
	}
	return p.event, nil
}

var _ ports.BillingProvider = (*stubProvider)(nil)

// stubTitles always fails so saves use default titles.
type stubTitles struct{}

func (stubTitles) Generate(ctx context.Context, summary string) (journal.Generated, error) {
	return journal.Generated{}, errors.New("disabled")
}

// stubDirectory never resolves, so ingestion relies on the profile store.
type stubDirectory struct{}

func (stubDirectory) UserIDByEmail(ctx context.Context, email string) (string, error) {
	return "", ports.ErrNotFound
}

type testEnv struct {
	handler   *Handler
	journals  *memory.JournalStore
	snapshots *memory.SnapshotStore
	profiles  *memory.ProfileStore
	provider  *stubProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	journals := memory.NewJournalStore()
	snapshots := memory.NewSnapshotStore()
	profiles := memory.NewProfileStore()
	provider := &stubProvider{}
	prices := billing.PriceTable{"price_premium_monthly": billing.TierPremium}
	clk := clock.NewFake(testNow)
	collector := metrics.NewWithRegistry(prometheus.NewRegistry())
	logger := zerolog.Nop()

	entitlements := app.NewEntitlementService(snapshots, journals, provider, prices, clk, collector, logger)
	journalSvc := app.NewJournalService(journals, entitlements, stubTitles{}, idgen.NewSequential("journal-"), clk, collector, logger)
	billingSvc := app.NewBillingService(entitlements, provider, prices, clk, "https://app.example.com", logger)
	webhookSvc := app.NewWebhookService(snapshots, profiles, stubDirectory{}, provider, prices, clk, collector, logger)
	syncSvc := app.NewSyncService(snapshots, profiles, stubDirectory{}, provider, prices, clk, 0, collector, logger)
	backfillSvc := app.NewBackfillService(journals, stubTitles{}, clk, collector, logger)

	handler := NewHandler(Deps{
		Resolver:     stubResolver{},
		Entitlements: entitlements,
		Journals:     journalSvc,
		Billing:      billingSvc,
		Webhooks:     webhookSvc,
		Sync:         syncSvc,
		Backfill:     backfillSvc,
		Provider:     provider,
		Metrics:      collector,
		AdminToken:   "admin-secret",
		Logger:       logger,
	})

	return &testEnv{
		handler:   handler,
		journals:  journals,
		snapshots: snapshots,
		profiles:  profiles,
		provider:  provider,
	}
}

func (e *testEnv) request(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if authed {
		r.Header.Set("Authorization", testToken)
	}
	w := httptest.NewRecorder()
	e.handler.Router().ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestEntitlementEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/v1/entitlement", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	if body["entitled"] != true || body["reason"] != "free_tier" {
		t.Errorf("body = %v", body)
	}
	if body["plan_name"] != billing.TierFree {
		t.Errorf("plan_name = %v", body["plan_name"])
	}
	if body["journals_remaining"] != float64(3) {
		t.Errorf("journals_remaining = %v", body["journals_remaining"])
	}
	if body["can_view_journals"] != true {
		t.Errorf("can_view_journals = %v", body["can_view_journals"])
	}
}

func TestEntitlementRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/v1/entitlement", "", false)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestSaveJournal(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/v1/journals/",
		`{"summary":"Walked by the lake.","reflection_type":"daily"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	j := body["reflection"].(map[string]any)
	if j["title"] != "Daily Reflection" || j["title_source"] != "default" {
		t.Errorf("reflection = %v", j)
	}
	if body["titleGenerated"] != false {
		t.Errorf("titleGenerated = %v", body["titleGenerated"])
	}
}

func TestSaveJournalDeniedAtLimitLeavesStoreUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, id := range []string{"j1", "j2", "j3"} {
		env.journals.Insert(ctx, journal.Journal{ID: id, UserID: alice.SubjectID, Saved: true, CreatedAt: testNow})
	}

	w := env.request(t, http.MethodPost, "/v1/journals/",
		`{"summary":"One more.","reflection_type":"daily"}`, true)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	if body["error"] != "not_entitled" || body["reason"] != "free_tier_limit_reached" {
		t.Errorf("body = %v", body)
	}

	if count, _ := env.journals.CountSaved(ctx, alice.SubjectID); count != 3 {
		t.Errorf("CountSaved = %d, denied request must not write", count)
	}
}

func TestSaveJournalInvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`not json`,
		`{"summary":"","reflection_type":"daily"}`,
		`{"summary":"hi","reflection_type":"weekly"}`,
	} {
		w := env.request(t, http.MethodPost, "/v1/journals/", body, true)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d for body %q", w.Code, body)
		}
	}
}

func TestListJournals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.journals.Insert(ctx, journal.Journal{ID: "j1", UserID: alice.SubjectID, Saved: true, Title: "One", CreatedAt: testNow})

	w := env.request(t, http.MethodGet, "/v1/journals/", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if list := body["journals"].([]any); len(list) != 1 {
		t.Errorf("journals = %v", list)
	}
}

func TestCheckSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	end := testNow.Add(10 * 24 * time.Hour)
	env.snapshots.Upsert(ctx, billing.Snapshot{
		UserID:           alice.SubjectID,
		Status:           billing.StatusActive,
		Tier:             billing.TierPremium,
		CurrentPeriodEnd: &end,
	})

	w := env.request(t, http.MethodGet, "/v1/check-subscription", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["subscribed"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestWebhookSignatureFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.eventErr = errors.New("bad signature")

	w := env.request(t, http.MethodPost, "/v1/webhooks/stripe", `{}`, false)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
	if body := decode(t, w); body["error"] != "invalid_signature" {
		t.Errorf("body = %v", body)
	}
}

func TestWebhookIgnoredEventAcks(t *testing.T) {
	env := newTestEnv(t)
	env.provider.event = billing.Event{Type: "invoice.payment_succeeded"}

	w := env.request(t, http.MethodPost, "/v1/webhooks/stripe", `{}`, false)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d: %s", w.Code, w.Body.String())
	}
}

func TestBillingCancelWithoutSubscription(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/v1/billing/cancel", "", true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["error"] != "no_subscription" {
		t.Errorf("body = %v", body)
	}
}

func TestBillingCancelImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.snapshots.Upsert(ctx, billing.Snapshot{
		UserID:         alice.SubjectID,
		Status:         billing.StatusActive,
		SubscriptionID: "sub_1",
	})

	w := env.request(t, http.MethodPost, "/v1/billing/cancel",
		`{"cancel_at_period_end":false}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	sub := body["subscription"].(map[string]any)
	if sub["status"] != "canceled" {
		t.Errorf("subscription = %v", sub)
	}
}

func TestBillingUpcomingNone(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/v1/billing/upcoming", "", true)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestBillingPortalCreatesCustomer(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/v1/billing/portal", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["url"] != "https://billing.example.com/session" {
		t.Errorf("body = %v", body)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/v1/admin/sync-subscriptions", "", false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d without token", w.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/v1/admin/sync-subscriptions", nil)
	r.Header.Set("X-Admin-Token", "admin-secret")
	rec := httptest.NewRecorder()
	env.handler.Router().ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d with token: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["synced"] != float64(0) || body["errors"] != float64(0) {
		t.Errorf("body = %v", body)
	}
}

func TestBackfillTitlesAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.journals.Insert(ctx, journal.Journal{
		ID: "j1", UserID: alice.SubjectID, Summary: "s", Saved: true,
		TitleSource: journal.TitleSourceDefault, CreatedAt: testNow,
	})

	r := httptest.NewRequest(http.MethodPost, "/v1/admin/backfill-titles",
		strings.NewReader(`{"dryRun":true,"batchSize":5}`))
	r.Header.Set("X-Admin-Token", "admin-secret")
	rec := httptest.NewRecorder()
	env.handler.Router().ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["processed"] != float64(1) || body["skipped"] != float64(1) {
		t.Errorf("body = %v", body)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/healthz", "", false)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
