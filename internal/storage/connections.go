package storage

import (
	"fmt"
	"time"
)

// NextConnectionGeneration returns the epoch number the next ranking run
// should write under.
func (s *Store) NextConnectionGeneration(formID string) (int, error) {
	var gen int
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(generation), 0) + 1 FROM connections WHERE form_id = ?`, formID).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("reading connection generation: %w", err)
	}
	return gen, nil
}

// SaveConnections writes a ranking run's output under the given generation
// in one transaction, preserving the slice order (rowid keeps the ranking).
func (s *Store) SaveConnections(formID string, generation int, conns []Connection) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning connections transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO connections (id, form_id, generation, response_a_id, response_b_id, respondent_a_name, respondent_b_name, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing connection insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range conns {
		if _, err := stmt.Exec(c.ID, formID, generation, c.ResponseAID, c.ResponseBID,
			c.RespondentAName, c.RespondentBName, c.Score, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting connection %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// LatestConnections returns the most recent generation's connections for the
// form, highest score first.
func (s *Store) LatestConnections(formID string) ([]Connection, error) {
	rows, err := s.db.Query(`
		SELECT id, form_id, generation, response_a_id, response_b_id, respondent_a_name, respondent_b_name, score, created_at
		FROM connections
		WHERE form_id = ? AND generation = (SELECT COALESCE(MAX(generation), 0) FROM connections WHERE form_id = ?)
		ORDER BY score DESC, rowid ASC`, formID, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []Connection
	for rows.Next() {
		var c Connection
		var createdAt string
		if err := rows.Scan(&c.ID, &c.FormID, &c.Generation, &c.ResponseAID, &c.ResponseBID,
			&c.RespondentAName, &c.RespondentBName, &c.Score, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		c.CreatedAt = t
		conns = append(conns, c)
	}
	return conns, rows.Err()
}
