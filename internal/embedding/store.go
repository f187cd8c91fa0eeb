package embedding

import (
	"context"
	"fmt"

	"github.com/connectu/connectu/internal/vectorindex"
)

// Store pairs the embedder with a vector index. One respondent's summary
// becomes one point keyed by vectorindex.PointID, so re-storing the same
// response replaces its point instead of accumulating duplicates.
type Store struct {
	embedder *Embedder
	index    vectorindex.Index
}

// NewStore creates a Store over the given embedder and index.
func NewStore(embedder *Embedder, index vectorindex.Index) *Store {
	return &Store{embedder: embedder, index: index}
}

// Init ensures the backing collection exists. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	if err := s.index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensuring collection: %w", err)
	}
	return nil
}

// Store embeds the summary and upserts the resulting point. The upsert only
// happens after a successful embed, so a failure leaves no partial record in
// the index. Returns the point ID.
func (s *Store) Store(ctx context.Context, payload vectorindex.Payload) (string, error) {
	vec, err := s.embedder.Embed(ctx, payload.Summary)
	if err != nil {
		return "", err
	}

	id := vectorindex.PointID(payload.FormID, payload.ResponseID)
	point := vectorindex.Point{ID: id, Vector: vec, Payload: payload}
	if err := s.index.Upsert(ctx, point); err != nil {
		return "", fmt.Errorf("upserting point %s: %w", id, err)
	}
	return id, nil
}

// RetrieveAll returns every stored point for a form, vectors included.
func (s *Store) RetrieveAll(ctx context.Context, formID string) ([]vectorindex.Point, error) {
	points, err := s.index.ScrollByForm(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("scrolling form %s: %w", formID, err)
	}
	return points, nil
}
