// Package pipeline orchestrates the response processing stages: profile
// synthesis, embedding storage, and connection ranking.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/connectu/connectu/internal/matching"
	"github.com/connectu/connectu/internal/storage"
	"github.com/connectu/connectu/internal/synthesis"
	"github.com/connectu/connectu/internal/vectorindex"
)

// Processing stages, recorded on per-respondent failures.
const (
	StageSynthesize       = "synthesize"
	StagePersistSummary   = "persist_summary"
	StageEmbed            = "embed"
	StagePersistEmbedding = "persist_embedding"
)

// Summarizer produces a profile summary for one respondent.
type Summarizer interface {
	Synthesize(ctx context.Context, in synthesis.Input) (string, error)
}

// EmbeddingStore embeds a summary and stores the point, returning its ID.
type EmbeddingStore interface {
	Store(ctx context.Context, payload vectorindex.Payload) (string, error)
}

// ConnectionRanker scores every pair of embedded responses in a form.
type ConnectionRanker interface {
	Rank(ctx context.Context, formID string) ([]matching.Connection, error)
}

// Failure records one respondent's failed stage. The other respondents in
// the batch are unaffected.
type Failure struct {
	ResponseID     string
	RespondentName string
	Stage          string
	Err            error
}

// BatchReport summarizes one ProcessForm run. Total counts the responses
// that still needed work; responses already through both stages are not
// reloaded.
type BatchReport struct {
	Total     int
	Processed int
	Failures  []Failure
}

// Processor drives responses through synthesis and embedding, and turns
// completed forms into ranked connections.
type Processor struct {
	store       *storage.Store
	summarizer  Summarizer
	embeddings  EmbeddingStore
	ranker      ConnectionRanker
	concurrency int
}

// New creates a Processor. concurrency bounds how many respondents are
// processed in parallel; values below 1 are treated as 1.
func New(store *storage.Store, summarizer Summarizer, embeddings EmbeddingStore, ranker ConnectionRanker, concurrency int) *Processor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Processor{
		store:       store,
		summarizer:  summarizer,
		embeddings:  embeddings,
		ranker:      ranker,
		concurrency: concurrency,
	}
}

// ProcessForm runs every unprocessed response of the form through the
// pipeline with bounded concurrency. A respondent failing at any stage is
// recorded in the report and never aborts the other respondents. Responses
// that already have a summary resume at the embedding stage, so re-running
// after a partial failure finishes the remainder without repeating chat
// calls.
func (p *Processor) ProcessForm(ctx context.Context, formID string) (BatchReport, error) {
	form, err := p.store.GetForm(formID)
	if err != nil {
		return BatchReport{}, fmt.Errorf("loading form %s: %w", formID, err)
	}
	questions, err := p.store.ListQuestions(formID)
	if err != nil {
		return BatchReport{}, fmt.Errorf("loading questions for form %s: %w", formID, err)
	}
	pending, err := p.store.ListUnprocessedResponses(formID)
	if err != nil {
		return BatchReport{}, fmt.Errorf("loading unprocessed responses for form %s: %w", formID, err)
	}

	report := BatchReport{Total: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, resp := range pending {
		g.Go(func() error {
			if fail := p.processOne(gCtx, form, questions, resp); fail != nil {
				slog.Warn("response processing failed",
					"form_id", formID, "response_id", fail.ResponseID,
					"stage", fail.Stage, "error", fail.Err)
				mu.Lock()
				report.Failures = append(report.Failures, *fail)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Processed++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

// ProcessResponse runs a single response through the pipeline. Used by the
// background worker, where each queued job covers one respondent.
func (p *Processor) ProcessResponse(ctx context.Context, responseID string) error {
	resp, err := p.store.GetResponse(responseID)
	if err != nil {
		return fmt.Errorf("loading response %s: %w", responseID, err)
	}
	form, err := p.store.GetForm(resp.FormID)
	if err != nil {
		return fmt.Errorf("loading form %s: %w", resp.FormID, err)
	}
	questions, err := p.store.ListQuestions(resp.FormID)
	if err != nil {
		return fmt.Errorf("loading questions for form %s: %w", resp.FormID, err)
	}
	if fail := p.processOne(ctx, form, questions, resp); fail != nil {
		return fmt.Errorf("%s stage for response %s: %w", fail.Stage, fail.ResponseID, fail.Err)
	}
	return nil
}

// processOne advances one response as far as it can go. The summary and the
// embedding key are each persisted immediately after their stage succeeds,
// so a later failure leaves the response resumable, never half-written.
func (p *Processor) processOne(ctx context.Context, form storage.Form, questions []storage.Question, resp storage.Response) *Failure {
	fail := func(stage string, err error) *Failure {
		return &Failure{ResponseID: resp.ID, RespondentName: resp.RespondentName, Stage: stage, Err: err}
	}

	summary := resp.Summary
	if summary == "" {
		answers, err := p.store.AnswersForResponse(resp.ID)
		if err != nil {
			return fail(StageSynthesize, err)
		}
		in := synthesis.Input{
			FormTitle:       form.Title,
			FormDescription: form.Description,
			RespondentName:  resp.RespondentName,
		}
		for _, q := range questions {
			in.Items = append(in.Items, synthesis.QA{Question: q.Text, Answer: answers[q.ID].Text})
		}
		summary, err = p.summarizer.Synthesize(ctx, in)
		if err != nil {
			return fail(StageSynthesize, err)
		}
		if err := p.store.UpdateResponseSummary(resp.ID, summary); err != nil {
			return fail(StagePersistSummary, err)
		}
	}

	if resp.EmbeddingID != "" {
		return nil
	}

	pointID, err := p.embeddings.Store(ctx, vectorindex.Payload{
		FormID:          form.ID,
		ResponseID:      resp.ID,
		RespondentName:  resp.RespondentName,
		RespondentEmail: resp.RespondentEmail,
		Summary:         summary,
	})
	if err != nil {
		return fail(StageEmbed, err)
	}
	if err := p.store.UpdateResponseEmbeddingID(resp.ID, pointID); err != nil {
		return fail(StagePersistEmbedding, err)
	}
	return nil
}

// GenerateConnections ranks every embedded pair in the form and persists the
// result under a fresh generation epoch. Older generations stay in place;
// reads always see the newest. Unlike per-respondent processing, a failure
// here is terminal for the whole run and nothing is persisted.
func (p *Processor) GenerateConnections(ctx context.Context, formID string) ([]storage.Connection, error) {
	ranked, err := p.ranker.Rank(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("ranking form %s: %w", formID, err)
	}

	generation, err := p.store.NextConnectionGeneration(formID)
	if err != nil {
		return nil, fmt.Errorf("allocating generation for form %s: %w", formID, err)
	}

	connections := make([]storage.Connection, len(ranked))
	for i, c := range ranked {
		connections[i] = storage.Connection{
			ID:              uuid.NewString(),
			FormID:          formID,
			Generation:      generation,
			ResponseAID:     c.ResponseAID,
			ResponseBID:     c.ResponseBID,
			RespondentAName: c.RespondentAName,
			RespondentBName: c.RespondentBName,
			Score:           c.Score,
		}
	}

	if err := p.store.SaveConnections(formID, generation, connections); err != nil {
		return nil, fmt.Errorf("saving connections for form %s: %w", formID, err)
	}
	if err := p.store.MarkConnectionsGenerated(formID); err != nil {
		return nil, fmt.Errorf("marking form %s: %w", formID, err)
	}

	slog.Info("connections generated", "form_id", formID, "generation", generation, "pairs", len(connections))
	return connections, nil
}
