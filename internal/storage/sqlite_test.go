package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateForm(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.CreateForm(Form{ID: id, OwnerID: "user-1", Title: "Team Mixer", Description: "Get to know each other"})
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
}

func TestFormLifecycle(t *testing.T) {
	s := openTestStore(t)
	mustCreateForm(t, s, "f1")

	f, err := s.GetForm("f1")
	if err != nil {
		t.Fatalf("GetForm: %v", err)
	}
	if f.IsPublished || f.IsAcceptingResponses || f.ConnectionsGenerated {
		t.Fatalf("new form has lifecycle flags set: %+v", f)
	}

	if err := s.PublishForm("f1"); err != nil {
		t.Fatalf("PublishForm: %v", err)
	}
	f, _ = s.GetForm("f1")
	if !f.IsPublished || !f.IsAcceptingResponses {
		t.Fatalf("published form flags wrong: %+v", f)
	}

	if err := s.StopAcceptingResponses("f1"); err != nil {
		t.Fatalf("StopAcceptingResponses: %v", err)
	}
	f, _ = s.GetForm("f1")
	if !f.IsPublished {
		t.Error("stop-accepting must not unpublish")
	}
	if f.IsAcceptingResponses {
		t.Error("form still accepting after stop")
	}

	if err := s.MarkConnectionsGenerated("f1"); err != nil {
		t.Fatalf("MarkConnectionsGenerated: %v", err)
	}
	f, _ = s.GetForm("f1")
	if !f.ConnectionsGenerated {
		t.Error("connections_generated not set")
	}
}

func TestGetForm_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetForm("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestQuestions_OrderAndTimeLimit(t *testing.T) {
	s := openTestStore(t)
	mustCreateForm(t, s, "f1")

	limit := 60
	err := s.AddQuestions([]Question{
		{ID: "q2", FormID: "f1", Text: "What drives you?", Position: 1},
		{ID: "q1", FormID: "f1", Text: "Who are you?", Position: 0, TimeLimit: &limit},
	})
	if err != nil {
		t.Fatalf("AddQuestions: %v", err)
	}

	questions, err := s.ListQuestions("f1")
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if questions[0].ID != "q1" || questions[1].ID != "q2" {
		t.Errorf("questions not in position order: %s, %s", questions[0].ID, questions[1].ID)
	}
	if questions[0].TimeLimit == nil || *questions[0].TimeLimit != 60 {
		t.Errorf("q1 time limit = %v, want 60", questions[0].TimeLimit)
	}
	if questions[1].TimeLimit != nil {
		t.Errorf("q2 time limit = %v, want nil", questions[1].TimeLimit)
	}
}

func TestQuestions_DuplicatePositionRejected(t *testing.T) {
	s := openTestStore(t)
	mustCreateForm(t, s, "f1")

	err := s.AddQuestions([]Question{
		{ID: "q1", FormID: "f1", Text: "a", Position: 0},
		{ID: "q2", FormID: "f1", Text: "b", Position: 0},
	})
	if err == nil {
		t.Fatal("expected unique constraint violation for duplicate position")
	}
}

func TestResponses_ProcessingLifecycle(t *testing.T) {
	s := openTestStore(t)
	mustCreateForm(t, s, "f1")

	for i := range 3 {
		err := s.CreateResponse(Response{
			ID:             fmt.Sprintf("r%d", i),
			FormID:         "f1",
			RespondentName: fmt.Sprintf("Person %d", i),
		})
		if err != nil {
			t.Fatalf("CreateResponse: %v", err)
		}
	}

	unprocessed, err := s.ListUnprocessedResponses("f1")
	if err != nil {
		t.Fatalf("ListUnprocessedResponses: %v", err)
	}
	if len(unprocessed) != 3 {
		t.Fatalf("got %d unprocessed, want 3", len(unprocessed))
	}

	// Summary alone keeps the response in the unprocessed set.
	if err := s.UpdateResponseSummary("r0", "a thoughtful person"); err != nil {
		t.Fatalf("UpdateResponseSummary: %v", err)
	}
	unprocessed, _ = s.ListUnprocessedResponses("f1")
	if len(unprocessed) != 3 {
		t.Fatalf("got %d unprocessed after summary, want 3", len(unprocessed))
	}

	if err := s.UpdateResponseEmbeddingID("r0", "f1_r0"); err != nil {
		t.Fatalf("UpdateResponseEmbeddingID: %v", err)
	}
	unprocessed, _ = s.ListUnprocessedResponses("f1")
	if len(unprocessed) != 2 {
		t.Fatalf("got %d unprocessed after embedding, want 2", len(unprocessed))
	}

	r, err := s.GetResponse("r0")
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if r.Summary != "a thoughtful person" || r.EmbeddingID != "f1_r0" {
		t.Errorf("processed response = %+v", r)
	}
}

func TestAnswers_MapByQuestion(t *testing.T) {
	s := openTestStore(t)
	mustCreateForm(t, s, "f1")
	if err := s.AddQuestions([]Question{
		{ID: "q1", FormID: "f1", Text: "a", Position: 0},
		{ID: "q2", FormID: "f1", Text: "b", Position: 1},
	}); err != nil {
		t.Fatalf("AddQuestions: %v", err)
	}
	if err := s.CreateResponse(Response{ID: "r1", FormID: "f1", RespondentName: "Ada"}); err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}

	// Only q1 answered; q2 is deliberately missing.
	err := s.SaveAnswers([]Answer{
		{ID: "a1", ResponseID: "r1", QuestionID: "q1", Text: "I love puzzles", TimeSpent: 42},
	})
	if err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}

	answers, err := s.AnswersForResponse("r1")
	if err != nil {
		t.Fatalf("AnswersForResponse: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(answers))
	}
	if answers["q1"].Text != "I love puzzles" {
		t.Errorf("answers[q1].Text = %q", answers["q1"].Text)
	}
	if _, ok := answers["q2"]; ok {
		t.Error("q2 should be absent from the map")
	}
}

func TestConnections_GenerationEpochs(t *testing.T) {
	s := openTestStore(t)
	mustCreateForm(t, s, "f1")

	gen, err := s.NextConnectionGeneration("f1")
	if err != nil {
		t.Fatalf("NextConnectionGeneration: %v", err)
	}
	if gen != 1 {
		t.Fatalf("first generation = %d, want 1", gen)
	}

	first := []Connection{
		{ID: "c1", ResponseAID: "r1", ResponseBID: "r2", RespondentAName: "A", RespondentBName: "B", Score: 0.9},
		{ID: "c2", ResponseAID: "r1", ResponseBID: "r3", RespondentAName: "A", RespondentBName: "C", Score: 0.5},
	}
	if err := s.SaveConnections("f1", gen, first); err != nil {
		t.Fatalf("SaveConnections: %v", err)
	}

	gen2, _ := s.NextConnectionGeneration("f1")
	if gen2 != 2 {
		t.Fatalf("second generation = %d, want 2", gen2)
	}
	second := []Connection{
		{ID: "c3", ResponseAID: "r1", ResponseBID: "r2", RespondentAName: "A", RespondentBName: "B", Score: 0.7},
	}
	if err := s.SaveConnections("f1", gen2, second); err != nil {
		t.Fatalf("SaveConnections gen 2: %v", err)
	}

	latest, err := s.LatestConnections("f1")
	if err != nil {
		t.Fatalf("LatestConnections: %v", err)
	}
	if len(latest) != 1 {
		t.Fatalf("got %d latest connections, want 1 (generation 2 only)", len(latest))
	}
	if latest[0].Generation != 2 || latest[0].Score != 0.7 {
		t.Errorf("latest = %+v", latest[0])
	}
}

func TestLatestConnections_SortedDescending(t *testing.T) {
	s := openTestStore(t)
	mustCreateForm(t, s, "f1")

	conns := []Connection{
		{ID: "c1", ResponseAID: "r1", ResponseBID: "r2", Score: 0.3},
		{ID: "c2", ResponseAID: "r1", ResponseBID: "r3", Score: 0.95},
		{ID: "c3", ResponseAID: "r2", ResponseBID: "r3", Score: 0.6},
	}
	if err := s.SaveConnections("f1", 1, conns); err != nil {
		t.Fatalf("SaveConnections: %v", err)
	}

	latest, err := s.LatestConnections("f1")
	if err != nil {
		t.Fatalf("LatestConnections: %v", err)
	}
	for i := 1; i < len(latest); i++ {
		if latest[i].Score > latest[i-1].Score {
			t.Errorf("connections not sorted descending at %d: %f > %f", i, latest[i].Score, latest[i-1].Score)
		}
	}
}

func TestDeleteForm_Cascades(t *testing.T) {
	s := openTestStore(t)
	mustCreateForm(t, s, "f1")
	if err := s.AddQuestions([]Question{{ID: "q1", FormID: "f1", Text: "a", Position: 0}}); err != nil {
		t.Fatalf("AddQuestions: %v", err)
	}
	if err := s.CreateResponse(Response{ID: "r1", FormID: "f1", RespondentName: "Ada"}); err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}

	if err := s.DeleteForm("f1"); err != nil {
		t.Fatalf("DeleteForm: %v", err)
	}

	if _, err := s.GetResponse("r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("response survived form deletion: err = %v", err)
	}
	questions, err := s.ListQuestions("f1")
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(questions) != 0 {
		t.Errorf("%d questions survived form deletion", len(questions))
	}
}

func TestJobs_ClaimCompleteFail(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "response_process", PayloadJSON: `{"response_id":"r1"}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"response_process"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil || job.ID != "j1" {
		t.Fatalf("claimed job = %+v, want j1", job)
	}
	if job.Status != "running" {
		t.Errorf("claimed status = %q, want running", job.Status)
	}

	// Nothing else pending.
	again, err := s.ClaimNextJob([]string{"response_process"})
	if err != nil {
		t.Fatalf("second ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Fatalf("claimed %+v, want nil", again)
	}

	if err := s.CompleteJob("j1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	counts, err := s.CountJobs()
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if counts["completed"] != 1 {
		t.Errorf("completed count = %d, want 1", counts["completed"])
	}
}

func TestJobs_FailRetriesWithBackoff(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "response_process", MaxAttempts: 2}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job, err := s.ClaimNextJob([]string{"response_process"})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob: job=%v err=%v", job, err)
	}

	if err := s.FailJob("j1", "embedding failed"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	// First failure reschedules with backoff, so it is pending but not
	// immediately runnable.
	if j, _ := s.ClaimNextJob([]string{"response_process"}); j != nil {
		t.Fatalf("job runnable before backoff elapsed: %+v", j)
	}
	counts, _ := s.CountJobs()
	if counts["pending"] != 1 {
		t.Fatalf("pending count = %d, want 1", counts["pending"])
	}

	// Second failure exhausts max_attempts.
	if err := s.FailJob("j1", "embedding failed again"); err != nil {
		t.Fatalf("second FailJob: %v", err)
	}
	counts, _ = s.CountJobs()
	if counts["failed"] != 1 {
		t.Errorf("failed count = %d, want 1", counts["failed"])
	}
}

func TestJobs_RunAfterOrdering(t *testing.T) {
	s := openTestStore(t)

	past := time.Now().UTC().Add(-time.Hour)
	if err := s.EnqueueJob(Job{ID: "later", Type: "t", RunAfter: time.Now().UTC().Add(time.Hour)}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := s.EnqueueJob(Job{ID: "sooner", Type: "t", RunAfter: past}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"t"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil || job.ID != "sooner" {
		t.Fatalf("claimed %+v, want sooner", job)
	}
}
