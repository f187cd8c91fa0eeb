// Package api exposes the form builder and matching pipeline over HTTP.
// OpenAI and Qdrant credentials never leave this process; clients only ever
// hold the server's bearer token.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/connectu/connectu/internal/pipeline"
	"github.com/connectu/connectu/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// FormProcessor is the pipeline surface the handlers call.
type FormProcessor interface {
	ProcessForm(ctx context.Context, formID string) (pipeline.BatchReport, error)
	GenerateConnections(ctx context.Context, formID string) ([]storage.Connection, error)
}

// VectorDeleter removes a form's points from the vector index.
type VectorDeleter interface {
	DeleteByForm(ctx context.Context, formID string) error
}

// AppDeps carries the constructed dependencies into the handlers.
type AppDeps struct {
	Store     *storage.Store
	Processor FormProcessor
	Token     string
	Vectors   VectorDeleter // optional; if nil, vector cleanup is skipped on delete
}

// NewAppHandler builds the router. Everything except /health requires the
// bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/forms", handleCreateForm(deps))
		r.Get("/forms", handleListForms(deps))
		r.Get("/forms/{id}", handleGetForm(deps))
		r.Patch("/forms/{id}", handleUpdateForm(deps))
		r.Delete("/forms/{id}", handleDeleteForm(deps))

		r.Post("/forms/{id}/questions", handleAddQuestions(deps))
		r.Get("/forms/{id}/questions", handleListQuestions(deps))

		r.Post("/forms/{id}/publish", handlePublishForm(deps))
		r.Post("/forms/{id}/stop", handleStopForm(deps))

		r.Post("/forms/{id}/responses", handleSubmitResponse(deps))
		r.Get("/forms/{id}/responses", handleListResponses(deps))

		r.Post("/forms/{id}/process", handleProcessForm(deps))
		r.Post("/forms/{id}/connections", handleGenerateConnections(deps))
		r.Get("/forms/{id}/connections", handleListConnections(deps))
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DB().PingContext(r.Context()); err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "storage unavailable: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
