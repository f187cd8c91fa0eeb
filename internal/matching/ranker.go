// Package matching ranks every pair of respondents in a form by the cosine
// similarity of their profile embeddings.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/connectu/connectu/internal/similarity"
	"github.com/connectu/connectu/internal/vectorindex"
)

// Connection is one scored pairing of two responses. A and B follow the
// retrieval order of the underlying points, so A was stored before B.
type Connection struct {
	ResponseAID     string
	ResponseBID     string
	RespondentAName string
	RespondentBName string
	Score           float64
}

// PointSource yields the complete set of stored points for a form.
type PointSource interface {
	RetrieveAll(ctx context.Context, formID string) ([]vectorindex.Point, error)
}

// Ranker computes all-pairs similarity over a form's stored embeddings.
type Ranker struct {
	source PointSource
}

// NewRanker creates a Ranker over the given point source.
func NewRanker(source PointSource) *Ranker {
	return &Ranker{source: source}
}

// Rank retrieves every embedded response for the form, scores each unordered
// pair, and returns the pairs sorted by score descending. Ties keep
// discovery order, so repeated runs over unchanged data produce identical
// rankings.
//
// Inconsistent points (missing vector or response ID) are skipped with a
// warning, as is any pair whose vectors disagree on dimensionality; one bad
// record degrades the ranking instead of failing the run. With fewer than
// two usable points the result is an empty slice and nil error.
func (r *Ranker) Rank(ctx context.Context, formID string) ([]Connection, error) {
	points, err := r.source.RetrieveAll(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("retrieving points for form %s: %w", formID, err)
	}

	usable := points[:0:0]
	for _, p := range points {
		if len(p.Vector) == 0 || p.Payload.ResponseID == "" {
			slog.Warn("skipping inconsistent point", "form_id", formID, "point_id", p.ID)
			continue
		}
		usable = append(usable, p)
	}

	if len(usable) < 2 {
		return []Connection{}, nil
	}

	connections := make([]Connection, 0, len(usable)*(len(usable)-1)/2)
	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			a, b := usable[i], usable[j]
			score, err := similarity.Cosine(a.Vector, b.Vector)
			if err != nil {
				if errors.Is(err, similarity.ErrDimensionMismatch) {
					slog.Warn("skipping mismatched pair",
						"form_id", formID, "point_a", a.ID, "point_b", b.ID,
						"dim_a", len(a.Vector), "dim_b", len(b.Vector))
					continue
				}
				return nil, fmt.Errorf("scoring pair %s/%s: %w", a.ID, b.ID, err)
			}
			connections = append(connections, Connection{
				ResponseAID:     a.Payload.ResponseID,
				ResponseBID:     b.Payload.ResponseID,
				RespondentAName: a.Payload.RespondentName,
				RespondentBName: b.Payload.RespondentName,
				Score:           float64(score),
			})
		}
	}

	sort.SliceStable(connections, func(i, j int) bool {
		return connections[i].Score > connections[j].Score
	})
	return connections, nil
}
