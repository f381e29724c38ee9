package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quietpage/reflectd/domain/journal"
	"github.com/quietpage/reflectd/ports"
)

// JournalStore is an in-memory implementation of ports.JournalStore.
type JournalStore struct {
	mu       sync.Mutex
	journals map[string]journal.Journal // by ID
}

// NewJournalStore creates a new in-memory journal store.
func NewJournalStore() *JournalStore {
	return &JournalStore{journals: make(map[string]journal.Journal)}
}

// Get retrieves a journal by ID.
func (s *JournalStore) Get(ctx context.Context, id string) (journal.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.journals[id]
	if !ok {
		return journal.Journal{}, ports.ErrNotFound
	}
	return j, nil
}

// ListByUser returns a user's saved journals, newest first.
func (s *JournalStore) ListByUser(ctx context.Context, userID string) ([]journal.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []journal.Journal
	for _, j := range s.journals {
		if j.UserID == userID && j.Saved {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out, nil
}

// CountSaved returns the number of saved journals for a user.
func (s *JournalStore) CountSaved(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.countSavedLocked(userID), nil
}

func (s *JournalStore) countSavedLocked(userID string) int {
	n := 0
	for _, j := range s.journals {
		if j.UserID == userID && j.Saved {
			n++
		}
	}
	return n
}

// Insert stores a new journal record.
func (s *JournalStore) Insert(ctx context.Context, j journal.Journal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journals[j.ID] = j
	return nil
}

// InsertSavedIfUnder stores a saved journal only while the user's saved count
// is below maxSaved. Count and insert happen under one lock, so the free-tier
// cap cannot be exceeded by concurrent writers through this path.
func (s *JournalStore) InsertSavedIfUnder(ctx context.Context, j journal.Journal, maxSaved int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countSavedLocked(j.UserID) >= maxSaved {
		return ports.ErrLimitReached
	}
	s.journals[j.ID] = j
	return nil
}

// ListMissingTitle returns saved journals without a generated title, oldest first.
func (s *JournalStore) ListMissingTitle(ctx context.Context, limit, offset int) ([]journal.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []journal.Journal
	for _, j := range s.journals {
		if j.Saved && j.GeneratedTitle == "" && j.TitleSource != journal.TitleSourceManual {
			all = append(all, j)
		}
	}
	sort.Slice(all, func(i, k int) bool {
		return all[i].CreatedAt.Before(all[k].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// UpdateTitle sets a generated title on a journal.
func (s *JournalStore) UpdateTitle(ctx context.Context, id, title, model string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.journals[id]
	if !ok {
		return ports.ErrNotFound
	}
	j.Title = title
	j.GeneratedTitle = title
	j.TitleSource = journal.TitleSourceAI
	j.TitleModel = model
	j.TitleGeneratedAt = &at
	s.journals[id] = j
	return nil
}

// Ensure interface compliance.
var _ ports.JournalStore = (*JournalStore)(nil)
