package app

import (
	"context"
	"testing"

	"github.com/quietpage/reflectd/adapters/memory"
	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/ports"
)

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	profiles := memory.NewProfileStore()
	provider := newFakeProvider()

	provider.customers["alice@example.com"] = billing.Customer{ID: "cus_a", Email: "alice@example.com"}
	provider.customers["bob@example.com"] = billing.Customer{ID: "cus_b", Email: "bob@example.com"}
	provider.subscriptions["cus_a"] = []billing.ProviderSubscription{
		premiumSub("sub_a", "cus_a", billing.StatusActive),
	}
	provider.subscriptions["cus_b"] = []billing.ProviderSubscription{
		premiumSub("sub_b", "cus_b", billing.StatusPastDue),
	}

	profiles.Upsert(ctx, ports.Profile{ID: "user-a", Email: "alice@example.com"})
	profiles.Upsert(ctx, ports.Profile{ID: "user-b", Email: "bob@example.com"})

	svc := NewSyncService(snapshots, profiles, newFakeDirectory(), provider,
		testPrices(), testClock(), 0, testMetrics(), testLogger())

	result, err := svc.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if result.Synced != 2 || result.Errors != 0 {
		t.Errorf("result = %+v, want 2 synced", result)
	}

	snapA, err := snapshots.Get(ctx, "user-a")
	if err != nil {
		t.Fatalf("Get user-a: %v", err)
	}
	if snapA.Status != billing.StatusActive || snapA.Tier != billing.TierPremium {
		t.Errorf("snapshot A = %+v", snapA)
	}
	snapB, err := snapshots.Get(ctx, "user-b")
	if err != nil {
		t.Fatalf("Get user-b: %v", err)
	}
	if snapB.Status != billing.StatusPastDue {
		t.Errorf("snapshot B = %+v", snapB)
	}
}

func TestSyncAllSkipsFailures(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	profiles := memory.NewProfileStore()
	provider := newFakeProvider()

	provider.customers["alice@example.com"] = billing.Customer{ID: "cus_a", Email: "alice@example.com"}
	provider.subscriptions["cus_a"] = []billing.ProviderSubscription{
		premiumSub("sub_a", "cus_a", billing.StatusActive),
	}
	// cus_orphan has a subscription but no local profile: counted as an error,
	// never aborts the run.
	provider.customers["ghost@example.com"] = billing.Customer{ID: "cus_orphan", Email: "ghost@example.com"}
	provider.subscriptions["cus_orphan"] = []billing.ProviderSubscription{
		premiumSub("sub_o", "cus_orphan", billing.StatusActive),
	}

	profiles.Upsert(ctx, ports.Profile{ID: "user-a", Email: "alice@example.com"})

	svc := NewSyncService(snapshots, profiles, newFakeDirectory(), provider,
		testPrices(), testClock(), 0, testMetrics(), testLogger())

	result, err := svc.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if result.Synced != 1 || result.Errors != 1 {
		t.Errorf("result = %+v, want 1 synced and 1 error", result)
	}

	if _, err := snapshots.Get(ctx, "user-a"); err != nil {
		t.Errorf("user-a snapshot missing after partial failure: %v", err)
	}
}

func TestSyncAllResolvesViaDirectory(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	profiles := memory.NewProfileStore()
	provider := newFakeProvider()
	dir := newFakeDirectory()

	// Carol has a subscription but no mirrored profile yet; the directory
	// resolves her email so the run repairs instead of skipping.
	provider.customers["carol@example.com"] = billing.Customer{ID: "cus_c", Email: "carol@example.com"}
	provider.subscriptions["cus_c"] = []billing.ProviderSubscription{
		premiumSub("sub_c", "cus_c", billing.StatusActive),
	}
	dir.users["carol@example.com"] = "user-c"

	svc := NewSyncService(snapshots, profiles, dir, provider,
		testPrices(), testClock(), 0, testMetrics(), testLogger())
	result, err := svc.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if result.Synced != 1 || result.Errors != 0 {
		t.Errorf("result = %+v, want the directory hit synced", result)
	}

	snap, err := snapshots.Get(ctx, "user-c")
	if err != nil {
		t.Fatalf("Get user-c: %v", err)
	}
	if snap.Tier != billing.TierPremium {
		t.Errorf("snapshot = %+v", snap)
	}
	if profile, err := profiles.GetByEmail(ctx, "carol@example.com"); err != nil || profile.ID != "user-c" {
		t.Errorf("backfilled profile = %+v, %v", profile, err)
	}
}

func TestSyncAllPicksGoverningSubscription(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	profiles := memory.NewProfileStore()
	provider := newFakeProvider()

	// A stale canceled record plus a live one: the active subscription governs.
	provider.customers["alice@example.com"] = billing.Customer{ID: "cus_a", Email: "alice@example.com"}
	provider.subscriptions["cus_a"] = []billing.ProviderSubscription{
		premiumSub("sub_old", "cus_a", billing.StatusCanceled),
		premiumSub("sub_live", "cus_a", billing.StatusActive),
	}
	profiles.Upsert(ctx, ports.Profile{ID: "user-a", Email: "alice@example.com"})

	svc := NewSyncService(snapshots, profiles, newFakeDirectory(), provider,
		testPrices(), testClock(), 0, testMetrics(), testLogger())
	if _, err := svc.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}

	snap, _ := snapshots.Get(ctx, "user-a")
	if snap.SubscriptionID != "sub_live" || snap.Status != billing.StatusActive {
		t.Errorf("snapshot = %+v, want the active subscription", snap)
	}
}
