package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestQdrant_EnsureCollection_CreatesWhenMissing(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/test":
			if created {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"result":{}}`))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/test":
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decoding create body: %v", err)
			}
			if body.Vectors.Size != 8 {
				t.Errorf("size = %d, want 8", body.Vectors.Size)
			}
			if body.Vectors.Distance != "Cosine" {
				t.Errorf("distance = %q, want Cosine", body.Vectors.Distance)
			}
			created = true
			w.Write([]byte(`{"result":true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "", "test", 8)
	ctx := context.Background()

	if err := q.EnsureCollection(ctx); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if !created {
		t.Fatal("collection was not created")
	}
	// Second call sees the existing collection and must not error.
	if err := q.EnsureCollection(ctx); err != nil {
		t.Fatalf("second EnsureCollection: %v", err)
	}
}

func TestQdrant_Upsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/test/points" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("api-key"); got != "secret" {
			t.Errorf("api-key = %q, want secret", got)
		}
		var body struct {
			Points []qdrantPoint `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding upsert body: %v", err)
		}
		if len(body.Points) != 1 {
			t.Fatalf("got %d points, want 1", len(body.Points))
		}
		// Qdrant rejects arbitrary string IDs, so the wire carries a
		// UUID derived from the collection key.
		if body.Points[0].ID != qdrantPointID("f1_r1") {
			t.Errorf("id = %q, want %q", body.Points[0].ID, qdrantPointID("f1_r1"))
		}
		if _, err := uuid.Parse(body.Points[0].ID); err != nil {
			t.Errorf("id %q is not a UUID: %v", body.Points[0].ID, err)
		}
		if body.Points[0].Payload.ResponseID != "r1" {
			t.Errorf("payload response_id = %q, want r1", body.Points[0].Payload.ResponseID)
		}
		if body.Points[0].Payload.RespondentName != "Respondent r1" {
			t.Errorf("payload name = %q", body.Points[0].Payload.RespondentName)
		}
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "secret", "test", 4)
	err := q.Upsert(context.Background(), testPoint("f1", "r1", []float32{1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestQdrant_ScrollByForm_Paginates(t *testing.T) {
	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/test/points/scroll" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding scroll body: %v", err)
		}
		page++
		switch page {
		case 1:
			if _, ok := body["offset"]; ok {
				t.Error("first page must not carry an offset")
			}
			w.Write([]byte(`{"result":{"points":[
				{"id":"` + qdrantPointID("f1_r1") + `","vector":[1,0],"payload":{"form_id":"f1","response_id":"r1","respondent_name":"A"}},
				{"id":"` + qdrantPointID("f1_r2") + `","vector":[0,1],"payload":{"form_id":"f1","response_id":"r2","respondent_name":"B"}}
			],"next_page_offset":"` + qdrantPointID("f1_r3") + `"}}`))
		case 2:
			if body["offset"] != qdrantPointID("f1_r3") {
				t.Errorf("offset = %v, want %q", body["offset"], qdrantPointID("f1_r3"))
			}
			w.Write([]byte(`{"result":{"points":[
				{"id":"` + qdrantPointID("f1_r3") + `","vector":[1,1],"payload":{"form_id":"f1","response_id":"r3","respondent_name":"C"}}
			],"next_page_offset":null}}`))
		default:
			t.Errorf("unexpected page %d", page)
		}
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "", "test", 2)
	points, err := q.ScrollByForm(context.Background(), "f1")
	if err != nil {
		t.Fatalf("ScrollByForm: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	// IDs come back as the collection key rebuilt from the payload, not
	// the wire UUID.
	if points[2].ID != "f1_r3" {
		t.Errorf("points[2].ID = %q, want f1_r3", points[2].ID)
	}
	if page != 2 {
		t.Errorf("pages fetched = %d, want 2", page)
	}
}

func TestQdrant_Count(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"count":42}}`))
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL, "", "test", 2)
	count, err := q.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
}

func TestQdrantPointID_Deterministic(t *testing.T) {
	key := PointID("f1", "r1")
	if qdrantPointID(key) != qdrantPointID(key) {
		t.Error("same key must map to the same UUID")
	}
	if qdrantPointID(key) == qdrantPointID(PointID("f1", "r2")) {
		t.Error("distinct keys must map to distinct UUIDs")
	}
	if _, err := uuid.Parse(qdrantPointID(key)); err != nil {
		t.Errorf("derived ID is not a UUID: %v", err)
	}
}
