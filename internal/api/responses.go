package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/connectu/connectu/internal/storage"
	"github.com/connectu/connectu/internal/worker"
)

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	TimeSpent  int    `json:"time_spent"`
}

type submitRequest struct {
	RespondentName  string          `json:"respondent_name"`
	RespondentEmail string          `json:"respondent_email"`
	Answers         []answerRequest `json:"answers"`
}

type responseJSON struct {
	ID              string `json:"id"`
	FormID          string `json:"form_id"`
	RespondentName  string `json:"respondent_name"`
	RespondentEmail string `json:"respondent_email"`
	Summary         string `json:"summary,omitempty"`
	EmbeddingID     string `json:"embedding_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func toResponseJSON(resp storage.Response) responseJSON {
	return responseJSON{
		ID:              resp.ID,
		FormID:          resp.FormID,
		RespondentName:  resp.RespondentName,
		RespondentEmail: resp.RespondentEmail,
		Summary:         resp.Summary,
		EmbeddingID:     resp.EmbeddingID,
		CreatedAt:       resp.CreatedAt.Format(time.RFC3339),
	}
}

func handleSubmitResponse(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.RespondentName == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "respondent_name is required")
			return
		}

		form, err := deps.Store.GetForm(formID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "form not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get form: %v", err)
			return
		}
		if !form.IsAcceptingResponses {
			httpError(w, http.StatusConflict, "invalid_request_error", "form is not accepting responses")
			return
		}

		// Reject unknown question IDs before anything is written, so a
		// bad submission leaves no orphaned response behind.
		questions, err := deps.Store.ListQuestions(formID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list questions: %v", err)
			return
		}
		known := make(map[string]bool, len(questions))
		for _, q := range questions {
			known[q.ID] = true
		}
		for _, a := range req.Answers {
			if !known[a.QuestionID] {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown question_id %q", a.QuestionID)
				return
			}
		}

		resp := storage.Response{
			ID:              uuid.NewString(),
			FormID:          formID,
			RespondentName:  req.RespondentName,
			RespondentEmail: req.RespondentEmail,
		}
		if err := deps.Store.CreateResponse(resp); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create response: %v", err)
			return
		}

		answers := make([]storage.Answer, 0, len(req.Answers))
		for _, a := range req.Answers {
			answers = append(answers, storage.Answer{
				ID:         uuid.NewString(),
				ResponseID: resp.ID,
				QuestionID: a.QuestionID,
				Text:       a.Text,
				TimeSpent:  a.TimeSpent,
			})
		}
		if err := deps.Store.SaveAnswers(answers); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save answers: %v", err)
			return
		}

		job := storage.Job{
			ID:          uuid.NewString(),
			Type:        worker.JobType,
			PayloadJSON: worker.EncodePayload(resp.ID),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue processing: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{
			"id":     resp.ID,
			"status": "queued",
		})
	}
}

func handleListResponses(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses, err := deps.Store.ListResponses(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list responses: %v", err)
			return
		}
		out := make([]responseJSON, len(responses))
		for i, resp := range responses {
			out[i] = toResponseJSON(resp)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type batchReportJSON struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Failures  []failureJSON `json:"failures"`
}

type failureJSON struct {
	ResponseID     string `json:"response_id"`
	RespondentName string `json:"respondent_name"`
	Stage          string `json:"stage"`
	Error          string `json:"error"`
}

func handleProcessForm(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		report, err := deps.Processor.ProcessForm(r.Context(), formID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "form not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "processing failed: %v", err)
			return
		}

		out := batchReportJSON{
			Total:     report.Total,
			Processed: report.Processed,
			Failures:  make([]failureJSON, len(report.Failures)),
		}
		for i, f := range report.Failures {
			out.Failures[i] = failureJSON{
				ResponseID:     f.ResponseID,
				RespondentName: f.RespondentName,
				Stage:          f.Stage,
				Error:          f.Err.Error(),
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type connectionJSON struct {
	ID              string  `json:"id"`
	FormID          string  `json:"form_id"`
	Generation      int     `json:"generation"`
	ResponseAID     string  `json:"response_a_id"`
	ResponseBID     string  `json:"response_b_id"`
	RespondentAName string  `json:"respondent_a_name"`
	RespondentBName string  `json:"respondent_b_name"`
	Score           float64 `json:"score"`
}

func toConnectionJSON(conns []storage.Connection) []connectionJSON {
	out := make([]connectionJSON, len(conns))
	for i, c := range conns {
		out[i] = connectionJSON{
			ID:              c.ID,
			FormID:          c.FormID,
			Generation:      c.Generation,
			ResponseAID:     c.ResponseAID,
			ResponseBID:     c.ResponseBID,
			RespondentAName: c.RespondentAName,
			RespondentBName: c.RespondentBName,
			Score:           c.Score,
		}
	}
	return out
}

func handleGenerateConnections(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		if _, err := deps.Store.GetForm(formID); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "form not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get form: %v", err)
			return
		}

		conns, err := deps.Processor.GenerateConnections(r.Context(), formID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "connection generation failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toConnectionJSON(conns))
	}
}

func handleListConnections(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conns, err := deps.Store.LatestConnections(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list connections: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toConnectionJSON(conns))
	}
}
