package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quietpage/reflectd/domain/journal"
	"github.com/quietpage/reflectd/ports"
)

// JournalStore is a SQLite implementation of ports.JournalStore.
type JournalStore struct {
	db *DB
}

// NewJournalStore creates a new SQLite journal store.
func NewJournalStore(db *DB) *JournalStore {
	return &JournalStore{db: db}
}

const journalColumns = `id, user_id, summary, reflection_type, saved, title,
	generated_title, title_source, title_model, title_generated_at,
	created_at, completed_at`

// Get retrieves a journal by ID.
func (s *JournalStore) Get(ctx context.Context, id string) (journal.Journal, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+journalColumns+" FROM reflections WHERE id = ?", id)
	j, err := scanJournal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Journal{}, ports.ErrNotFound
	}
	return j, err
}

// ListByUser returns a user's saved journals, newest first.
func (s *JournalStore) ListByUser(ctx context.Context, userID string) ([]journal.Journal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+journalColumns+" FROM reflections WHERE user_id = ? AND saved = 1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}
	defer rows.Close()
	return collectJournals(rows)
}

// CountSaved returns the number of saved journals for a user.
func (s *JournalStore) CountSaved(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reflections WHERE user_id = ? AND saved = 1", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count saved journals: %w", err)
	}
	return count, nil
}

// Insert stores a new journal record.
func (s *JournalStore) Insert(ctx context.Context, j journal.Journal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reflections (`+journalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.UserID, j.Summary, string(j.ReflectionType), boolToInt(j.Saved),
		j.Title, nullString(j.GeneratedTitle), string(j.TitleSource),
		nullString(j.TitleModel), nullTime(j.TitleGeneratedAt),
		j.CreatedAt, nullTime(j.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert journal: %w", err)
	}
	return nil
}

// InsertSavedIfUnder stores a saved journal only while the user's saved count
// is below maxSaved. The count check and the insert run as one statement so
// concurrent saves cannot push a user over the cap.
func (s *JournalStore) InsertSavedIfUnder(ctx context.Context, j journal.Journal, maxSaved int) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reflections (`+journalColumns+`)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE (SELECT COUNT(*) FROM reflections WHERE user_id = ? AND saved = 1) < ?
	`, j.ID, j.UserID, j.Summary, string(j.ReflectionType), boolToInt(j.Saved),
		j.Title, nullString(j.GeneratedTitle), string(j.TitleSource),
		nullString(j.TitleModel), nullTime(j.TitleGeneratedAt),
		j.CreatedAt, nullTime(j.CompletedAt),
		j.UserID, maxSaved)
	if err != nil {
		return fmt.Errorf("conditional insert journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conditional insert journal: %w", err)
	}
	if n == 0 {
		return ports.ErrLimitReached
	}
	return nil
}

// ListMissingTitle returns saved journals without a generated title, oldest
// first, for the backfill job. Manually titled journals are never touched.
func (s *JournalStore) ListMissingTitle(ctx context.Context, limit, offset int) ([]journal.Journal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+journalColumns+` FROM reflections
		WHERE saved = 1 AND generated_title IS NULL AND title_source != 'manual'
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list missing titles: %w", err)
	}
	defer rows.Close()
	return collectJournals(rows)
}

// UpdateTitle sets a generated title on a journal.
func (s *JournalStore) UpdateTitle(ctx context.Context, id, title, model string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reflections
		SET title = ?, generated_title = ?, title_source = 'ai',
		    title_model = ?, title_generated_at = ?
		WHERE id = ?
	`, title, title, model, at, id)
	if err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJournal(row rowScanner) (journal.Journal, error) {
	var j journal.Journal
	var reflType, titleSource string
	var saved int
	var genTitle, titleModel sql.NullString
	var titleAt, completedAt sql.NullTime

	err := row.Scan(&j.ID, &j.UserID, &j.Summary, &reflType, &saved, &j.Title,
		&genTitle, &titleSource, &titleModel, &titleAt, &j.CreatedAt, &completedAt)
	if err != nil {
		return journal.Journal{}, err
	}

	j.ReflectionType = journal.ReflectionType(reflType)
	j.Saved = saved != 0
	j.GeneratedTitle = genTitle.String
	j.TitleSource = journal.TitleSource(titleSource)
	j.TitleModel = titleModel.String
	if titleAt.Valid {
		t := titleAt.Time
		j.TitleGeneratedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return j, nil
}

func collectJournals(rows *sql.Rows) ([]journal.Journal, error) {
	var out []journal.Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journals: %w", err)
	}
	return out, nil
}

// Ensure interface compliance.
var _ ports.JournalStore = (*JournalStore)(nil)
