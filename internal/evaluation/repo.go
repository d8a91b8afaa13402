package evaluation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DeadlineKey is the well-known key of the singleton deadline document.
const DeadlineKey = "current"

// Repository reads and writes evaluation documents in Postgres. Documents
// keep their original JSON shape in a jsonb column so legacy field
// variations survive round trips.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetDeadline returns the current deadline document, or nil when none is
// configured.
func (r *Repository) GetDeadline(ctx context.Context) (*Deadline, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT doc FROM evaluation_deadlines WHERE key = $1
	`, DeadlineKey)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var d Deadline
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("deadline document: %w", err)
	}
	return &d, nil
}

// SetDeadline upserts the singleton deadline document.
func (r *Repository) SetDeadline(ctx context.Context, d Deadline) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO evaluation_deadlines (key, doc, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, DeadlineKey, raw)
	return err
}

// ListResultsByEmail returns all result documents for a professor.
// Period filtering happens in the aggregator, not here, so a period
// change never depends on a fresh query shape.
func (r *Repository) ListResultsByEmail(ctx context.Context, email string) ([]Result, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT doc FROM evaluation_results
		WHERE professor_email = $1
		ORDER BY created_at
	`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var res Result
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("result document: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// InsertResult writes a new result document from the ingest worker.
func (r *Repository) InsertResult(ctx context.Context, res Result) (string, error) {
	if res.ProfessorEmail == "" {
		return "", errors.New("professor email required")
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO evaluation_results (id, professor_email, doc, created_at)
		VALUES ($1, $2, $3, NOW())
	`, id, res.ProfessorEmail, raw)
	if err != nil {
		return "", err
	}
	return id, nil
}

// student mirrors the fields of a users-collection document the counter
// cares about.
type student struct {
	Section       string   `json:"section"`
	Subjects      []string `json:"subjects"`
	AccountStatus string   `json:"accountStatus"`
}

// CountStudents counts active students whose section is handled by the
// professor and, when both sides carry subjects, whose subjects overlap.
func (r *Repository) CountStudents(ctx context.Context, sections, subjects []string) (int, error) {
	if len(sections) == 0 {
		return 0, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT doc FROM users`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	handledSections := make(map[string]bool, len(sections))
	for _, s := range sections {
		handledSections[s] = true
	}
	handledSubjects := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		handledSubjects[s] = true
	}

	count := 0
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return 0, err
		}
		var st student
		if err := json.Unmarshal(raw, &st); err != nil {
			continue
		}
		if !strings.EqualFold(st.AccountStatus, "active") {
			continue
		}
		if !handledSections[st.Section] {
			continue
		}
		if len(handledSubjects) > 0 && len(st.Subjects) > 0 {
			match := false
			for _, subj := range st.Subjects {
				if handledSubjects[subj] {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		count++
	}
	return count, rows.Err()
}
