package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/connectu/connectu/internal/similarity"
)

// Compile-time check that SQLiteIndex implements Index.
var _ Index = (*SQLiteIndex)(nil)

// SQLiteIndex keeps vectors as little-endian float32 blobs in SQLite.
// It is the default backend for embedded deployments and tests; swap in
// Qdrant when the index must be shared across processes.
type SQLiteIndex struct {
	db         *sql.DB
	dimensions int
}

// NewSQLiteIndex wraps an existing *sql.DB for vector operations.
func NewSQLiteIndex(db *sql.DB, dimensions int) *SQLiteIndex {
	return &SQLiteIndex{db: db, dimensions: dimensions}
}

// EnsureCollection creates the vector table if missing and pins the
// collection dimensionality. A second call is a no-op; a call with a
// different dimensionality than previously recorded is an error.
func (s *SQLiteIndex) EnsureCollection(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS response_vectors (
			id TEXT PRIMARY KEY,
			form_id TEXT NOT NULL,
			response_id TEXT NOT NULL,
			respondent_name TEXT NOT NULL DEFAULT '',
			respondent_email TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			embedding BLOB,
			created_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating response_vectors table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_response_vectors_form ON response_vectors(form_id)`); err != nil {
		return fmt.Errorf("creating form index: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vector_collection_meta (
			name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating collection meta table: %w", err)
	}

	var dims int
	err = s.db.QueryRowContext(ctx,
		`SELECT dimensions FROM vector_collection_meta WHERE name = 'response_vectors'`).Scan(&dims)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO vector_collection_meta (name, dimensions) VALUES ('response_vectors', ?)`,
			s.dimensions); err != nil {
			return fmt.Errorf("recording collection dimensions: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading collection dimensions: %w", err)
	case dims != s.dimensions:
		return fmt.Errorf("collection has dimensionality %d, configured %d: %w",
			dims, s.dimensions, similarity.ErrDimensionMismatch)
	}
	return nil
}

// Upsert writes the point, replacing any existing point with the same ID.
func (s *SQLiteIndex) Upsert(ctx context.Context, p Point) error {
	if len(p.Vector) != s.dimensions {
		return fmt.Errorf("upsert %s: %w: got %d, want %d", p.ID, similarity.ErrDimensionMismatch, len(p.Vector), s.dimensions)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO response_vectors (id, form_id, response_id, respondent_name, respondent_email, summary, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			respondent_name = excluded.respondent_name,
			respondent_email = excluded.respondent_email,
			summary = excluded.summary,
			embedding = excluded.embedding`,
		p.ID, p.Payload.FormID, p.Payload.ResponseID, p.Payload.RespondentName,
		p.Payload.RespondentEmail, p.Payload.Summary, encodeFloat32s(p.Vector),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting point %s: %w", p.ID, err)
	}
	return nil
}

// ScrollByForm returns every point for the form. SQLite has no page-size
// limit, so a single scan is the complete set.
func (s *SQLiteIndex) ScrollByForm(ctx context.Context, formID string) ([]Point, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, response_id, respondent_name, respondent_email, summary, embedding
		FROM response_vectors WHERE form_id = ? ORDER BY created_at ASC, id ASC`, formID)
	if err != nil {
		return nil, fmt.Errorf("querying form %s vectors: %w", formID, err)
	}
	defer rows.Close()

	return scanPoints(rows)
}

// DeleteByForm removes all points for the form.
func (s *SQLiteIndex) DeleteByForm(ctx context.Context, formID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM response_vectors WHERE form_id = ?`, formID); err != nil {
		return fmt.Errorf("deleting form %s points: %w", formID, err)
	}
	return nil
}

// Count returns the number of stored points.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM response_vectors`).Scan(&count)
	return count, err
}

func scanPoints(rows *sql.Rows) ([]Point, error) {
	var points []Point
	for rows.Next() {
		var p Point
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Payload.FormID, &p.Payload.ResponseID,
			&p.Payload.RespondentName, &p.Payload.RespondentEmail, &p.Payload.Summary, &blob); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}
		if len(blob) > 0 {
			vec, err := decodeFloat32s(blob)
			if err != nil {
				return nil, fmt.Errorf("decoding embedding for %s: %w", p.ID, err)
			}
			p.Vector = vec
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a float32 slice.
// A length not divisible by 4 indicates data corruption.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
