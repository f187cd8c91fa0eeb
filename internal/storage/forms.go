package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const formColumns = `id, owner_id, title, description, is_published, is_accepting_responses, connections_generated, created_at, updated_at`

// CreateForm inserts a new unpublished form.
func (s *Store) CreateForm(f Form) error {
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO forms (id, owner_id, title, description, is_published, is_accepting_responses, connections_generated, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, 0, 0, ?, ?)`,
		f.ID, f.OwnerID, f.Title, f.Description,
		f.CreatedAt.Format(time.RFC3339), f.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// GetForm returns the form with the given ID.
func (s *Store) GetForm(id string) (Form, error) {
	row := s.db.QueryRow(`SELECT `+formColumns+` FROM forms WHERE id = ?`, id)
	return scanForm(row)
}

// ListFormsByOwner returns all forms belonging to ownerID, newest first.
func (s *Store) ListFormsByOwner(ownerID string) ([]Form, error) {
	rows, err := s.db.Query(`SELECT `+formColumns+` FROM forms WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// UpdateForm updates the title and description of a form.
func (s *Store) UpdateForm(id, title, description string) error {
	res, err := s.db.Exec(`
		UPDATE forms SET title = ?, description = ?, updated_at = ? WHERE id = ?`,
		title, description, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// PublishForm marks the form published and opens it for responses.
func (s *Store) PublishForm(id string) error {
	res, err := s.db.Exec(`
		UPDATE forms SET is_published = 1, is_accepting_responses = 1, updated_at = ?
		WHERE id = ?`, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// StopAcceptingResponses closes the form to further submissions.
// Publishing state is untouched; the transition is one-way in normal flow.
func (s *Store) StopAcceptingResponses(id string) error {
	res, err := s.db.Exec(`
		UPDATE forms SET is_accepting_responses = 0, updated_at = ?
		WHERE id = ?`, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkConnectionsGenerated records that at least one ranking run completed.
func (s *Store) MarkConnectionsGenerated(id string) error {
	res, err := s.db.Exec(`
		UPDATE forms SET connections_generated = 1, updated_at = ?
		WHERE id = ?`, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteForm removes the form; questions, responses, answers, and
// connections cascade.
func (s *Store) DeleteForm(id string) error {
	res, err := s.db.Exec(`DELETE FROM forms WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AddQuestions inserts questions for a form in one transaction.
func (s *Store) AddQuestions(questions []Question) error {
	if len(questions) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning questions transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO questions (id, form_id, text, position, time_limit, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing question insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, q := range questions {
		var limit any
		if q.TimeLimit != nil {
			limit = *q.TimeLimit
		}
		if _, err := stmt.Exec(q.ID, q.FormID, q.Text, q.Position, limit, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

// ListQuestions returns the form's questions in position order.
func (s *Store) ListQuestions(formID string) ([]Question, error) {
	rows, err := s.db.Query(`
		SELECT id, form_id, text, position, time_limit, created_at
		FROM questions WHERE form_id = ? ORDER BY position ASC`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		var limit sql.NullInt64
		var createdAt string
		if err := rows.Scan(&q.ID, &q.FormID, &q.Text, &q.Position, &limit, &createdAt); err != nil {
			return nil, err
		}
		if limit.Valid {
			v := int(limit.Int64)
			q.TimeLimit = &v
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		q.CreatedAt = t
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (Form, error) {
	var f Form
	var createdAt, updatedAt string
	err := row.Scan(&f.ID, &f.OwnerID, &f.Title, &f.Description,
		&f.IsPublished, &f.IsAcceptingResponses, &f.ConnectionsGenerated,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Form{}, ErrNotFound
	}
	if err != nil {
		return Form{}, err
	}
	if f.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Form{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if f.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Form{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return f, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
