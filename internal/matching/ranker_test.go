package matching

import (
	"context"
	"fmt"
	"testing"

	"github.com/connectu/connectu/internal/vectorindex"
)

type staticSource struct {
	points []vectorindex.Point
	err    error
}

func (s *staticSource) RetrieveAll(context.Context, string) ([]vectorindex.Point, error) {
	return s.points, s.err
}

func point(responseID, name string, vec []float32) vectorindex.Point {
	return vectorindex.Point{
		ID:     "f1_" + responseID,
		Vector: vec,
		Payload: vectorindex.Payload{
			FormID:         "f1",
			ResponseID:     responseID,
			RespondentName: name,
		},
	}
}

func TestRank_ThreeRespondents(t *testing.T) {
	// r1 and r2 are identical, r3 is orthogonal to both.
	source := &staticSource{points: []vectorindex.Point{
		point("r1", "Ada", []float32{1, 0}),
		point("r2", "Ben", []float32{1, 0}),
		point("r3", "Cal", []float32{0, 1}),
	}}

	conns, err := NewRanker(source).Rank(context.Background(), "f1")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(conns) != 3 {
		t.Fatalf("got %d pairs, want 3", len(conns))
	}

	top := conns[0]
	if top.ResponseAID != "r1" || top.ResponseBID != "r2" {
		t.Errorf("top pair = %s/%s, want r1/r2", top.ResponseAID, top.ResponseBID)
	}
	if top.Score != 1 {
		t.Errorf("top score = %f, want 1", top.Score)
	}
	if top.RespondentAName != "Ada" || top.RespondentBName != "Ben" {
		t.Errorf("top names = %s/%s", top.RespondentAName, top.RespondentBName)
	}

	// The orthogonal pairs tie at 0 and keep discovery order.
	if conns[1].ResponseAID != "r1" || conns[1].ResponseBID != "r3" {
		t.Errorf("second pair = %s/%s, want r1/r3", conns[1].ResponseAID, conns[1].ResponseBID)
	}
	if conns[2].ResponseAID != "r2" || conns[2].ResponseBID != "r3" {
		t.Errorf("third pair = %s/%s, want r2/r3", conns[2].ResponseAID, conns[2].ResponseBID)
	}
}

func TestRank_PairCount(t *testing.T) {
	var points []vectorindex.Point
	for i := range 6 {
		points = append(points, point(fmt.Sprintf("r%d", i), "", []float32{float32(i + 1), 1}))
	}
	conns, err := NewRanker(&staticSource{points: points}).Rank(context.Background(), "f1")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(conns) != 15 {
		t.Errorf("got %d pairs for 6 respondents, want 15", len(conns))
	}
}

func TestRank_FewerThanTwo(t *testing.T) {
	for _, points := range [][]vectorindex.Point{
		nil,
		{point("r1", "Ada", []float32{1, 0})},
	} {
		conns, err := NewRanker(&staticSource{points: points}).Rank(context.Background(), "f1")
		if err != nil {
			t.Fatalf("Rank: %v", err)
		}
		if len(conns) != 0 {
			t.Errorf("got %d pairs for %d points, want 0", len(conns), len(points))
		}
	}
}

func TestRank_SkipsInconsistentPoints(t *testing.T) {
	source := &staticSource{points: []vectorindex.Point{
		point("r1", "Ada", []float32{1, 0}),
		point("r2", "Ben", nil), // vector lost
		{ID: "f1_x", Vector: []float32{1, 1}, Payload: vectorindex.Payload{FormID: "f1"}}, // no response ID
		point("r3", "Cal", []float32{0, 1}),
	}}

	conns, err := NewRanker(source).Rank(context.Background(), "f1")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(conns) != 1 {
		t.Fatalf("got %d pairs, want 1 (only r1/r3 usable)", len(conns))
	}
	if conns[0].ResponseAID != "r1" || conns[0].ResponseBID != "r3" {
		t.Errorf("pair = %s/%s", conns[0].ResponseAID, conns[0].ResponseBID)
	}
}

func TestRank_SkipsMismatchedPair(t *testing.T) {
	source := &staticSource{points: []vectorindex.Point{
		point("r1", "Ada", []float32{1, 0}),
		point("r2", "Ben", []float32{1, 0, 0}), // stored at a different dimensionality
		point("r3", "Cal", []float32{0, 1}),
	}}

	conns, err := NewRanker(source).Rank(context.Background(), "f1")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	// r2 pairs with nobody; only r1/r3 survives.
	if len(conns) != 1 {
		t.Fatalf("got %d pairs, want 1", len(conns))
	}
	if conns[0].ResponseAID != "r1" || conns[0].ResponseBID != "r3" {
		t.Errorf("pair = %s/%s", conns[0].ResponseAID, conns[0].ResponseBID)
	}
}

func TestRank_SourceError(t *testing.T) {
	source := &staticSource{err: fmt.Errorf("index down")}
	if _, err := NewRanker(source).Rank(context.Background(), "f1"); err == nil {
		t.Fatal("expected error")
	}
}
