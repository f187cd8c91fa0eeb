// Package worker drains response_process jobs from the SQLite queue so form
// submission can return immediately while synthesis and embedding happen in
// the background.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/connectu/connectu/internal/storage"
)

// JobType is the queue type this worker consumes.
const JobType = "response_process"

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// ResponseProcessor runs one response through synthesis and embedding.
type ResponseProcessor interface {
	ProcessResponse(ctx context.Context, responseID string) error
}

// Worker polls the queue and hands each claimed job to the processor.
type Worker struct {
	store     JobStore
	processor ResponseProcessor
	poll      time.Duration
	logger    *slog.Logger
}

// New creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func New(store JobStore, processor ResponseProcessor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:     store,
		processor: processor,
		poll:      pollInterval,
		logger:    slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled. Consecutive jobs are processed
// back to back; the poll interval only applies when the queue is empty.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. Returns true if a job was
// claimed, regardless of whether it succeeded; a processing failure is
// recorded on the job for retry, not returned.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// Payload is the job payload for response_process jobs.
type Payload struct {
	ResponseID string `json:"response_id"`
}

// EncodePayload serializes a payload for enqueueing.
func EncodePayload(responseID string) string {
	b, _ := json.Marshal(Payload{ResponseID: responseID})
	return string(b)
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.ResponseID == "" {
		return fmt.Errorf("payload has no response_id")
	}

	if err := w.processor.ProcessResponse(ctx, payload.ResponseID); err != nil {
		return fmt.Errorf("processing response %s: %w", payload.ResponseID, err)
	}
	return nil
}
