package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/ports"
)

// SnapshotStore is a SQLite implementation of ports.SnapshotStore.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SQLite snapshot store.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Get retrieves the snapshot for a user.
func (s *SnapshotStore) Get(ctx context.Context, userID string) (billing.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, tier, status, current_period_end, cancel_at_period_end,
		       price_id, product_id, subscription_id, updated_at
		FROM subscriptions WHERE user_id = ?
	`, userID)
	return scanSnapshot(row)
}

// Upsert overwrites the snapshot keyed by user ID.
func (s *SnapshotStore) Upsert(ctx context.Context, snap billing.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			user_id, tier, status, current_period_end, cancel_at_period_end,
			price_id, product_id, subscription_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			tier = excluded.tier,
			status = excluded.status,
			current_period_end = excluded.current_period_end,
			cancel_at_period_end = excluded.cancel_at_period_end,
			price_id = excluded.price_id,
			product_id = excluded.product_id,
			subscription_id = excluded.subscription_id,
			updated_at = excluded.updated_at
	`, snap.UserID, snap.Tier, string(snap.Status), nullTime(snap.CurrentPeriodEnd),
		boolToInt(snap.CancelAtPeriodEnd), nullString(snap.PriceID),
		nullString(snap.ProductID), nullString(snap.SubscriptionID), snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func scanSnapshot(row *sql.Row) (billing.Snapshot, error) {
	var snap billing.Snapshot
	var status string
	var periodEnd sql.NullTime
	var cancel int
	var priceID, productID, subID sql.NullString

	err := row.Scan(&snap.UserID, &snap.Tier, &status, &periodEnd, &cancel,
		&priceID, &productID, &subID, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Snapshot{}, ports.ErrNotFound
	}
	if err != nil {
		return billing.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}

	snap.Status = billing.SubscriptionStatus(status)
	if periodEnd.Valid {
		t := periodEnd.Time
		snap.CurrentPeriodEnd = &t
	}
	snap.CancelAtPeriodEnd = cancel != 0
	snap.PriceID = priceID.String
	snap.ProductID = productID.String
	snap.SubscriptionID = subID.String
	return snap, nil
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)
