// Package memory provides in-memory implementations of storage ports,
// used in tests and for running without a database file.
package memory

import (
	"context"
	"sync"

	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/ports"
)

// SnapshotStore is an in-memory implementation of ports.SnapshotStore.
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]billing.Snapshot // by user ID
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snaps: make(map[string]billing.Snapshot)}
}

// Get retrieves the snapshot for a user.
func (s *SnapshotStore) Get(ctx context.Context, userID string) (billing.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[userID]
	if !ok {
		return billing.Snapshot{}, ports.ErrNotFound
	}
	return snap, nil
}

// Upsert overwrites the snapshot keyed by UserID.
func (s *SnapshotStore) Upsert(ctx context.Context, snap billing.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snaps[snap.UserID] = snap
	return nil
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)
