package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/connectu/connectu/internal/llm"
)

const maxSummaryTokens = 500

// ErrSummaryUnavailable wraps any chat failure. A failed synthesis produces
// no partial output; callers retry the whole respondent.
var ErrSummaryUnavailable = fmt.Errorf("summary unavailable")

// Chatter is the chat completion surface the synthesizer needs.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (string, error)
}

// Synthesizer turns one respondent's answers into a third-person profile
// summary via a single chat completion.
type Synthesizer struct {
	client      Chatter
	model       string
	temperature float64
	minWords    int
	maxWords    int
}

// New creates a Synthesizer. minWords and maxWords bound the requested
// summary length.
func New(client Chatter, model string, temperature float64, minWords, maxWords int) *Synthesizer {
	return &Synthesizer{
		client:      client,
		model:       model,
		temperature: temperature,
		minWords:    minWords,
		maxWords:    maxWords,
	}
}

// Synthesize produces the profile summary for one respondent. It is all or
// nothing: on any failure the error wraps ErrSummaryUnavailable and no
// summary text is returned.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (string, error) {
	req := llm.ChatRequest{
		Model:       s.model,
		Messages:    BuildPrompt(in, s.minWords, s.maxWords),
		Temperature: s.temperature,
		MaxTokens:   maxSummaryTokens,
	}

	summary, err := s.client.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummaryUnavailable, err)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("%w: model returned empty content", ErrSummaryUnavailable)
	}
	return summary, nil
}
