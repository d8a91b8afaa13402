package professor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Repository persists professor documents in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Store is the persistence surface the session service needs. Satisfied
// by Repository and by test fakes.
type Store interface {
	GetByID(ctx context.Context, id string) (*Professor, error)
	GetByEmail(ctx context.Context, email string) (*Professor, error)
	Update(ctx context.Context, p Professor) error
}

func decode(raw []byte, id string) (*Professor, error) {
	var p Professor
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("professor document: %w", err)
	}
	p.ID = id
	return &p, nil
}

// GetByID returns a professor document, or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id string) (*Professor, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, doc FROM professors WHERE id = $1
	`, id)
	var raw []byte
	var docID string
	if err := row.Scan(&docID, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decode(raw, docID)
}

// GetByEmail returns the professor whose email exactly matches, or
// ErrNotFound. The lookup is case-sensitive, matching how sign-in has
// always behaved.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Professor, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, doc FROM professors WHERE doc->>'email' = $1
	`, email)
	var raw []byte
	var docID string
	if err := row.Scan(&docID, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decode(raw, docID)
}

// Update rewrites the professor document.
func (r *Repository) Update(ctx context.Context, p Professor) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE professors SET doc = $2, updated_at = NOW() WHERE id = $1
	`, p.ID, raw)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
