package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/quietpage/reflectd/ports"
)

// ProfileStore is an in-memory implementation of ports.ProfileStore.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]ports.Profile // by ID
	byEmail  map[string]string        // email -> ID
}

// NewProfileStore creates a new in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]ports.Profile),
		byEmail:  make(map[string]string),
	}
}

// Get retrieves a profile by user ID.
func (s *ProfileStore) Get(ctx context.Context, id string) (ports.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return ports.Profile{}, ports.ErrNotFound
	}
	return p, nil
}

// GetByEmail retrieves a profile by email (case-insensitive).
func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (ports.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return ports.Profile{}, ports.ErrNotFound
	}
	return s.profiles[id], nil
}

// Upsert stores or updates a profile.
func (s *ProfileStore) Upsert(ctx context.Context, p ports.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.profiles[p.ID]; ok && old.Email != p.Email {
		delete(s.byEmail, strings.ToLower(old.Email))
	}
	s.profiles[p.ID] = p
	s.byEmail[strings.ToLower(p.Email)] = p.ID
	return nil
}

// Ensure interface compliance.
var _ ports.ProfileStore = (*ProfileStore)(nil)
