package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quietpage/reflectd/ports"
)

// ProfileStore is a SQLite implementation of ports.ProfileStore.
type ProfileStore struct {
	db *DB
}

// NewProfileStore creates a new SQLite profile store.
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Get retrieves a profile by user ID.
func (s *ProfileStore) Get(ctx context.Context, id string) (ports.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, created_at FROM profiles WHERE id = ?", id)
	return scanProfile(row)
}

// GetByEmail retrieves a profile by email. The email column is COLLATE NOCASE
// so the lookup is case-insensitive.
func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (ports.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, created_at FROM profiles WHERE email = ?", email)
	return scanProfile(row)
}

// Upsert stores or updates a profile.
func (s *ProfileStore) Upsert(ctx context.Context, p ports.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email
	`, p.ID, p.Email, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func scanProfile(row *sql.Row) (ports.Profile, error) {
	var p ports.Profile
	err := row.Scan(&p.ID, &p.Email, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Profile{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	return p, nil
}

// Ensure interface compliance.
var _ ports.ProfileStore = (*ProfileStore)(nil)
