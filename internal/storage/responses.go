package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const responseColumns = `id, form_id, respondent_name, respondent_email, summary, embedding_id, created_at`

// CreateResponse inserts a new response with no summary or embedding yet.
func (s *Store) CreateResponse(r Response) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO responses (id, form_id, respondent_name, respondent_email, summary, embedding_id, created_at)
		VALUES (?, ?, ?, ?, '', '', ?)`,
		r.ID, r.FormID, r.RespondentName, r.RespondentEmail, r.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// GetResponse returns the response with the given ID.
func (s *Store) GetResponse(id string) (Response, error) {
	row := s.db.QueryRow(`SELECT `+responseColumns+` FROM responses WHERE id = ?`, id)
	return scanResponse(row)
}

// ListResponses returns all responses for a form, oldest first.
func (s *Store) ListResponses(formID string) ([]Response, error) {
	return s.queryResponses(`SELECT `+responseColumns+` FROM responses WHERE form_id = ? ORDER BY created_at ASC, id ASC`, formID)
}

// ListUnprocessedResponses returns responses still missing a summary or an
// embedding. Fully processed responses (both set) are never reprocessed.
func (s *Store) ListUnprocessedResponses(formID string) ([]Response, error) {
	return s.queryResponses(`
		SELECT `+responseColumns+` FROM responses
		WHERE form_id = ? AND (summary = '' OR embedding_id = '')
		ORDER BY created_at ASC, id ASC`, formID)
}

// UpdateResponseSummary records the synthesized summary for a response.
func (s *Store) UpdateResponseSummary(id, summary string) error {
	res, err := s.db.Exec(`UPDATE responses SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateResponseEmbeddingID records the vector index key for a response.
func (s *Store) UpdateResponseEmbeddingID(id, embeddingID string) error {
	res, err := s.db.Exec(`UPDATE responses SET embedding_id = ? WHERE id = ?`, embeddingID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveAnswers inserts a response's answers in one transaction.
func (s *Store) SaveAnswers(answers []Answer) error {
	if len(answers) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning answers transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO answers (id, response_id, question_id, text, time_spent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing answer insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range answers {
		if _, err := stmt.Exec(a.ID, a.ResponseID, a.QuestionID, a.Text, a.TimeSpent, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting answer %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// AnswersForResponse returns the answers of one response keyed by question ID.
func (s *Store) AnswersForResponse(responseID string) (map[string]Answer, error) {
	rows, err := s.db.Query(`
		SELECT id, response_id, question_id, text, time_spent, created_at
		FROM answers WHERE response_id = ?`, responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[string]Answer)
	for rows.Next() {
		var a Answer
		var createdAt string
		if err := rows.Scan(&a.ID, &a.ResponseID, &a.QuestionID, &a.Text, &a.TimeSpent, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		a.CreatedAt = t
		answers[a.QuestionID] = a
	}
	return answers, rows.Err()
}

func (s *Store) queryResponses(query string, args ...any) ([]Response, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

func scanResponse(row rowScanner) (Response, error) {
	var r Response
	var createdAt string
	err := row.Scan(&r.ID, &r.FormID, &r.RespondentName, &r.RespondentEmail,
		&r.Summary, &r.EmbeddingID, &createdAt)
	if err == sql.ErrNoRows {
		return Response{}, ErrNotFound
	}
	if err != nil {
		return Response{}, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Response{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return r, nil
}
