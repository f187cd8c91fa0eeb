package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Form is a published questionnaire owned by one user. The lifecycle flags
// move monotonically: publish sets IsPublished and opens responses,
// stop-accepting closes responses, and ConnectionsGenerated is set after the
// first ranking run.
type Form struct {
	ID                   string
	OwnerID              string
	Title                string
	Description          string
	IsPublished          bool
	IsAcceptingResponses bool
	ConnectionsGenerated bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Question belongs to a form at a dense, per-form-unique position.
// TimeLimit is in seconds; nil means unlimited.
type Question struct {
	ID        string
	FormID    string
	Text      string
	Position  int
	TimeLimit *int
	CreatedAt time.Time
}

// Response is one respondent's submission. Summary and EmbeddingID start
// empty and are each written exactly once by the processing pipeline.
type Response struct {
	ID              string
	FormID          string
	RespondentName  string
	RespondentEmail string
	Summary         string
	EmbeddingID     string
	CreatedAt       time.Time
}

// Answer is one respondent's free-text answer to one question.
// TimeSpent is in seconds.
type Answer struct {
	ID         string
	ResponseID string
	QuestionID string
	Text       string
	TimeSpent  int
	CreatedAt  time.Time
}

// Connection is a ranked pairing of two responses within a form.
// Generation is the ranking epoch: re-running connection generation appends a
// new generation rather than overwriting the previous one.
type Connection struct {
	ID              string
	FormID          string
	Generation      int
	ResponseAID     string
	ResponseBID     string
	RespondentAName string
	RespondentBName string
	Score           float64
	CreatedAt       time.Time
}

// Job is a queued unit of background work.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
