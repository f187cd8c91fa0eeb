package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/connectu/connectu/internal/similarity"
)

const (
	qdrantTimeout  = 15 * time.Second
	scrollPageSize = 100
)

// Compile-time check that Qdrant implements Index.
var _ Index = (*Qdrant)(nil)

// Qdrant talks to a Qdrant instance over its REST API.
type Qdrant struct {
	baseURL    string
	apiKey     string
	collection string
	dimensions int
	httpClient *http.Client
}

// NewQdrant creates a client for the given Qdrant URL and collection.
// apiKey may be empty for unauthenticated local instances.
func NewQdrant(baseURL, apiKey, collection string, dimensions int) *Qdrant {
	return &Qdrant{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: qdrantTimeout},
	}
}

// EnsureCollection creates the collection with cosine distance if missing.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	status, _, err := q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", q.collection, err)
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("checking collection %s: unexpected status %d", q.collection, status)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimensions,
			"distance": "Cosine",
		},
	}
	status, respBody, err := q.do(ctx, http.MethodPut, "/collections/"+q.collection, body)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", q.collection, err)
	}
	// A concurrent creator may have won the race; "already exists" is fine.
	if status == http.StatusConflict || strings.Contains(string(respBody), "already exists") {
		return nil
	}
	if status != http.StatusOK {
		return fmt.Errorf("creating collection %s: status %d: %s", q.collection, status, respBody)
	}
	return nil
}

type qdrantPoint struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload *Payload  `json:"payload,omitempty"`
}

// qdrantPointID maps a collection key to a deterministic UUID. The REST API
// only accepts unsigned integers or UUIDs as point IDs, so the string key
// lives in the payload and the UUID derived from it addresses the point.
func qdrantPointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// Upsert writes the point, waiting for the write to be durable.
func (q *Qdrant) Upsert(ctx context.Context, p Point) error {
	if len(p.Vector) != q.dimensions {
		return fmt.Errorf("upsert %s: %w: got %d, want %d", p.ID, similarity.ErrDimensionMismatch, len(p.Vector), q.dimensions)
	}

	body := map[string]any{
		"points": []qdrantPoint{{ID: qdrantPointID(p.ID), Vector: p.Vector, Payload: &p.Payload}},
	}
	status, respBody, err := q.do(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", body)
	if err != nil {
		return fmt.Errorf("upserting point %s: %w", p.ID, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("upserting point %s: status %d: %s", p.ID, status, respBody)
	}
	return nil
}

type scrollResult struct {
	Result struct {
		Points []struct {
			Vector  []float32 `json:"vector"`
			Payload Payload   `json:"payload"`
		} `json:"points"`
		NextPageOffset json.RawMessage `json:"next_page_offset"`
	} `json:"result"`
}

// ScrollByForm pages through the collection filtered by form_id until the
// index reports no further offset.
func (q *Qdrant) ScrollByForm(ctx context.Context, formID string) ([]Point, error) {
	var points []Point
	var offset json.RawMessage

	for {
		body := map[string]any{
			"filter":       formFilter(formID),
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			body["offset"] = offset
		}

		status, respBody, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/scroll", body)
		if err != nil {
			return nil, fmt.Errorf("scrolling form %s: %w", formID, err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("scrolling form %s: status %d: %s", formID, status, respBody)
		}

		var result scrollResult
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("decoding scroll response: %w", err)
		}

		// Point IDs on the wire are derived UUIDs; rebuild the
		// collection key from the payload.
		for _, p := range result.Result.Points {
			points = append(points, Point{
				ID:      PointID(p.Payload.FormID, p.Payload.ResponseID),
				Vector:  p.Vector,
				Payload: p.Payload,
			})
		}

		next := result.Result.NextPageOffset
		if len(next) == 0 || string(next) == "null" {
			return points, nil
		}
		offset = next
	}
}

// DeleteByForm removes all points whose payload form_id matches.
func (q *Qdrant) DeleteByForm(ctx context.Context, formID string) error {
	body := map[string]any{"filter": formFilter(formID)}
	status, respBody, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/delete?wait=true", body)
	if err != nil {
		return fmt.Errorf("deleting form %s points: %w", formID, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("deleting form %s points: status %d: %s", formID, status, respBody)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	body := map[string]any{"exact": true}
	status, respBody, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/count", body)
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("counting points: status %d: %s", status, respBody)
	}

	var result struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return result.Result.Count, nil
}

func formFilter(formID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "form_id", "match": map[string]any{"value": formID}},
		},
	}
}

func (q *Qdrant) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
