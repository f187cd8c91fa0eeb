package embedding

import (
	"context"
	"fmt"

	"github.com/connectu/connectu/internal/similarity"
)

// EmbedClient is the embedding surface of the LLM client.
type EmbedClient interface {
	Embed(ctx context.Context, model, text string, dimensions int) ([]float32, error)
}

// Embedder generates fixed-dimensionality embedding vectors for summaries.
type Embedder struct {
	client     EmbedClient
	model      string
	dimensions int
}

// NewEmbedder creates an Embedder producing vectors of the given size.
func NewEmbedder(client EmbedClient, model string, dimensions int) *Embedder {
	return &Embedder{client: client, model: model, dimensions: dimensions}
}

// Dimensions returns the vector size this embedder produces.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed returns the embedding vector for a single text. A vector of the
// wrong size from the upstream is rejected rather than stored.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.model, text, e.dimensions)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vec) != e.dimensions {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", similarity.ErrDimensionMismatch, len(vec), e.dimensions)
	}
	return vec, nil
}
