// Package vectorindex stores respondent embeddings in a named,
// dimensionality-fixed collection and retrieves them by form.
//
// The Qdrant implementation talks to a hosted index over REST; the SQLite
// implementation keeps vectors as blobs next to the relational data and is
// used for embedded deployments and tests. Both enforce the configured
// dimensionality on write so historical records never mix dimensionalities.
package vectorindex

import "context"

// Payload mirrors the respondent identity and summary stored next to each
// vector, so rankings can be rendered without a relational round trip.
type Payload struct {
	FormID          string `json:"form_id"`
	ResponseID      string `json:"response_id"`
	RespondentName  string `json:"respondent_name"`
	RespondentEmail string `json:"respondent_email"`
	Summary         string `json:"summary"`
}

// Point is one stored embedding with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// PointID derives the collection key for a response's embedding.
func PointID(formID, responseID string) string {
	return formID + "_" + responseID
}

// Index is the vector index boundary.
type Index interface {
	// EnsureCollection creates the collection if it does not exist.
	// Idempotent: an existing collection is a no-op, not an error.
	EnsureCollection(ctx context.Context) error

	// Upsert writes a point (vector + payload) under its ID, replacing any
	// previous point with the same ID.
	Upsert(ctx context.Context, p Point) error

	// ScrollByForm returns every point belonging to the form, paginating
	// internally. Callers always receive the complete set, never a
	// truncated page. Points may come back with a nil vector if the stored
	// record is inconsistent; callers decide whether to skip them.
	ScrollByForm(ctx context.Context, formID string) ([]Point, error)

	// DeleteByForm removes all points belonging to the form.
	DeleteByForm(ctx context.Context, formID string) error

	// Count returns the number of points in the collection.
	Count(ctx context.Context) (int, error)
}
