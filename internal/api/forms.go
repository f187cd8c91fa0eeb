package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/connectu/connectu/internal/storage"
)

type formRequest struct {
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type formJSON struct {
	ID                   string `json:"id"`
	OwnerID              string `json:"owner_id"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	IsPublished          bool   `json:"is_published"`
	IsAcceptingResponses bool   `json:"is_accepting_responses"`
	ConnectionsGenerated bool   `json:"connections_generated"`
	CreatedAt            string `json:"created_at"`
}

func toFormJSON(f storage.Form) formJSON {
	return formJSON{
		ID:                   f.ID,
		OwnerID:              f.OwnerID,
		Title:                f.Title,
		Description:          f.Description,
		IsPublished:          f.IsPublished,
		IsAcceptingResponses: f.IsAcceptingResponses,
		ConnectionsGenerated: f.ConnectionsGenerated,
		CreatedAt:            f.CreatedAt.Format(time.RFC3339),
	}
}

func handleCreateForm(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req formRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}
		if req.OwnerID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "owner_id is required")
			return
		}

		form := storage.Form{
			ID:          uuid.NewString(),
			OwnerID:     req.OwnerID,
			Title:       req.Title,
			Description: req.Description,
		}
		if err := deps.Store.CreateForm(form); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create form: %v", err)
			return
		}

		created, err := deps.Store.GetForm(form.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load form: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, toFormJSON(created))
	}
}

func handleListForms(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.URL.Query().Get("owner_id")
		if ownerID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "owner_id query parameter is required")
			return
		}
		forms, err := deps.Store.ListFormsByOwner(ownerID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list forms: %v", err)
			return
		}
		out := make([]formJSON, len(forms))
		for i, f := range forms {
			out[i] = toFormJSON(f)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetForm(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := deps.Store.GetForm(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "form not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get form: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toFormJSON(form))
	}
}

func handleUpdateForm(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req formRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		err := deps.Store.UpdateForm(id, req.Title, req.Description)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "form not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update form: %v", err)
			return
		}

		form, err := deps.Store.GetForm(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load form: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toFormJSON(form))
	}
}

func handleDeleteForm(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		// Clean up index points if a vector backend is attached.
		if deps.Vectors != nil {
			if err := deps.Vectors.DeleteByForm(r.Context(), id); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to delete form vectors: %v", err)
				return
			}
		}

		err := deps.Store.DeleteForm(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "form not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete form: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

type questionRequest struct {
	Text      string `json:"text"`
	TimeLimit *int   `json:"time_limit"`
}

type questionJSON struct {
	ID        string `json:"id"`
	FormID    string `json:"form_id"`
	Text      string `json:"text"`
	Position  int    `json:"position"`
	TimeLimit *int   `json:"time_limit,omitempty"`
}

func handleAddQuestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var reqs []questionRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(reqs) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one question is required")
			return
		}

		if _, err := deps.Store.GetForm(formID); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "form not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get form: %v", err)
			return
		}

		// Appended questions continue the existing position sequence.
		existing, err := deps.Store.ListQuestions(formID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list questions: %v", err)
			return
		}

		questions := make([]storage.Question, len(reqs))
		for i, q := range reqs {
			if q.Text == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "question %d has no text", i)
				return
			}
			questions[i] = storage.Question{
				ID:        uuid.NewString(),
				FormID:    formID,
				Text:      q.Text,
				Position:  len(existing) + i,
				TimeLimit: q.TimeLimit,
			}
		}
		if err := deps.Store.AddQuestions(questions); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add questions: %v", err)
			return
		}

		out := make([]questionJSON, len(questions))
		for i, q := range questions {
			out[i] = questionJSON{ID: q.ID, FormID: q.FormID, Text: q.Text, Position: q.Position, TimeLimit: q.TimeLimit}
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func handleListQuestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questions, err := deps.Store.ListQuestions(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list questions: %v", err)
			return
		}
		out := make([]questionJSON, len(questions))
		for i, q := range questions {
			out[i] = questionJSON{ID: q.ID, FormID: q.FormID, Text: q.Text, Position: q.Position, TimeLimit: q.TimeLimit}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handlePublishForm(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.PublishForm(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "form not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to publish form: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "published"})
	}
}

func handleStopForm(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.StopAcceptingResponses(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "form not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to stop form: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
	}
}
