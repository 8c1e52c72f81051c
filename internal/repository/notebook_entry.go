package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/windfall/poplingo_service/internal/client"
)

// ExampleSentence is one usage example: foreign text and its translation.
type ExampleSentence struct {
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

// Entry is a dictionary result. Entries are never modified after the
// lookup that created them.
type Entry struct {
	ID         string            `json:"id"`
	Term       string            `json:"term"`
	Definition string            `json:"definition"`
	Examples   []ExampleSentence `json:"examples"`
	UsageNote  string            `json:"usage_note"`
	ImageURL   string            `json:"image_url,omitempty"`
	NativeLang string            `json:"native_lang,omitempty"`
	TargetLang string            `json:"target_lang,omitempty"`
	// Timestamp is the creation time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// GetID implements Entity.
func (e *Entry) GetID() string {
	return e.ID
}

// CreatedAt returns Timestamp as a time.
func (e *Entry) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Examples = append([]ExampleSentence(nil), e.Examples...)
	return &c
}

// NotebookRepository stores each user's saved entries. Terms are unique
// per user; List returns the most recently saved entry first.
type NotebookRepository interface {
	Add(ctx context.Context, userID string, entry *Entry) error
	GetByID(ctx context.Context, userID, id string) (*Entry, error)
	GetByTerm(ctx context.Context, userID, term string) (*Entry, error)
	List(ctx context.Context, userID string) ([]*Entry, error)
	Delete(ctx context.Context, userID, id string) error
}

// PostgresNotebookRepository implements NotebookRepository with PostgreSQL.
type PostgresNotebookRepository struct {
	db *client.PostgresClient
}

// NewPostgresNotebookRepository creates a new PostgresNotebookRepository.
func NewPostgresNotebookRepository(db *client.PostgresClient) *PostgresNotebookRepository {
	return &PostgresNotebookRepository{db: db}
}

const (
	uniqueViolation      = "23505"
	notebookPKConstraint = "notebook_entries_pkey"
)

const entryColumns = `id, term, definition, examples, usage_note, image_url, native_lang, target_lang, created_at`

func (r *PostgresNotebookRepository) Add(ctx context.Context, userID string, entry *Entry) error {
	if r.db == nil || r.db.Pool == nil {
		return ErrNotConfigured
	}

	examples, err := json.Marshal(entry.Examples)
	if err != nil {
		return fmt.Errorf("failed to marshal examples: %w", err)
	}

	query := `
		INSERT INTO notebook_entries (
			id, user_id, term, definition, examples, usage_note, image_url, native_lang, target_lang, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		entry.ID,
		userID,
		entry.Term,
		entry.Definition,
		examples,
		entry.UsageNote,
		entry.ImageURL,
		entry.NativeLang,
		entry.TargetLang,
		entry.CreatedAt(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == notebookPKConstraint {
				return ErrDuplicateID
			}
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to add notebook entry: %w", err)
	}
	return nil
}

func (r *PostgresNotebookRepository) GetByID(ctx context.Context, userID, id string) (*Entry, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, ErrNotConfigured
	}

	query := `SELECT ` + entryColumns + ` FROM notebook_entries WHERE user_id = $1 AND id = $2`
	return r.getOne(ctx, query, userID, id)
}

func (r *PostgresNotebookRepository) GetByTerm(ctx context.Context, userID, term string) (*Entry, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, ErrNotConfigured
	}

	query := `SELECT ` + entryColumns + ` FROM notebook_entries WHERE user_id = $1 AND term = $2`
	return r.getOne(ctx, query, userID, term)
}

func (r *PostgresNotebookRepository) getOne(ctx context.Context, query string, args ...any) (*Entry, error) {
	entry, err := scanEntry(r.db.Pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notebook entry: %w", err)
	}
	return entry, nil
}

func (r *PostgresNotebookRepository) List(ctx context.Context, userID string) ([]*Entry, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, ErrNotConfigured
	}

	query := `SELECT ` + entryColumns + ` FROM notebook_entries WHERE user_id = $1 ORDER BY saved_at DESC`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notebook entries: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notebook entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *PostgresNotebookRepository) Delete(ctx context.Context, userID, id string) error {
	if r.db == nil || r.db.Pool == nil {
		return ErrNotConfigured
	}

	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM notebook_entries WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete notebook entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		entry     Entry
		examples  []byte
		createdAt time.Time
	)
	if err := row.Scan(
		&entry.ID,
		&entry.Term,
		&entry.Definition,
		&examples,
		&entry.UsageNote,
		&entry.ImageURL,
		&entry.NativeLang,
		&entry.TargetLang,
		&createdAt,
	); err != nil {
		return nil, err
	}
	if len(examples) > 0 {
		if err := json.Unmarshal(examples, &entry.Examples); err != nil {
			return nil, fmt.Errorf("failed to unmarshal examples: %w", err)
		}
	}
	entry.Timestamp = createdAt.UnixMilli()
	return &entry, nil
}
