// Package llm provides a client for OpenAI-compatible chat completion and
// embedding endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	chatTimeout    = 60 * time.Second
	embedTimeout   = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// ErrUpstream marks failures of the generative-text or embedding service
// (network, auth, rate limit). Callers batch-processing respondents use it to
// record one respondent as failed and move on to the next.
var ErrUpstream = errors.New("upstream service unavailable")

// Message is a chat message in the OpenAI API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes a chat completion call.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Client communicates with an OpenAI-compatible API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a Client with the given API key against the default base URL.
func New(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
}

// NewWithBaseURL creates a client pointing at a custom base URL (for testing
// or API-compatible providers).
func NewWithBaseURL(apiKey, baseURL string) *Client {
	c := New(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat sends a chat completion request and returns the assistant's text.
// HTTP 429 is retried with exponential backoff; other failures are wrapped
// with ErrUpstream.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	respBody, err := c.post(ctx, "/chat/completions", body, chatTimeout)
	if err != nil {
		return "", err
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: decoding chat response: %v", ErrUpstream, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: chat response has no choices", ErrUpstream)
	}
	return result.Choices[0].Message.Content, nil
}

type embedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text using the given model.
// dimensions requests a specific output dimensionality when > 0 (supported by
// the text-embedding-3 family); pass 0 to use the model default.
func (c *Client) Embed(ctx context.Context, model, text string, dimensions int) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embed: empty input text")
	}

	body, err := json.Marshal(embedRequest{Model: model, Input: text, Dimensions: dimensions})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	respBody, err := c.post(ctx, "/embeddings", body, embedTimeout)
	if err != nil {
		return nil, err
	}

	var result embedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding embed response: %v", ErrUpstream, err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("%w: embed response has no data", ErrUpstream)
	}
	return result.Data[0].Embedding, nil
}

// post issues the request, retrying rate-limited attempts with backoff.
func (c *Client) post(ctx context.Context, path string, body []byte, timeout time.Duration) ([]byte, error) {
	var lastErr error
	for attempt := range maxRetries {
		respBody, err := c.doPost(ctx, path, body, timeout)
		if err == nil {
			return respBody, nil
		}

		var rle *rateLimitError
		if !errors.As(err, &rle) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("%w: rate limited after %d retries: %v", ErrUpstream, maxRetries, lastErr)
}

func (c *Client) doPost(ctx context.Context, path string, body []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrUpstream, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return io.ReadAll(resp.Body)
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}
