// ABOUTME: GenerationClient abstraction over the external generation provider
// ABOUTME: Defines Entry/Result/Health types, the Stream interface and UpstreamError

package genai

import (
	"context"
	"unicode/utf8"
)

// Entry is one side of a prior exchange fed back to the provider for
// continuity. It deliberately knows nothing about how turns are stored.
type Entry struct {
	Content string
	IsUser  bool
}

// Result is the outcome of a successful non-streaming generation.
type Result struct {
	Text       string
	TokensUsed int
}

// Health service status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Health reports the outcome of a liveness probe.
type Health struct {
	Status         string
	SampleResponse string
	Err            string
}

// Stream yields incremental text fragments of a single generation.
// Recv returns io.EOF after the final fragment; concatenating fragments in
// yield order reconstructs the full response exactly. A failed stream cannot
// be resumed.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Client is the abstraction over the external generation provider.
type Client interface {
	// Generate produces a complete response for the prompt given the
	// conversation history. Provider failures surface as *UpstreamError.
	Generate(ctx context.Context, prompt string, history []Entry) (*Result, error)

	// GenerateStream opens an incremental response stream.
	GenerateStream(ctx context.Context, prompt string, history []Entry) (Stream, error)

	// EstimateTokens returns a deterministic token estimate for text.
	// Bookkeeping only; never used for truncation.
	EstimateTokens(text string) int

	// HealthCheck is a cheap liveness probe with its own bounded timeout.
	// It never shares the ordinary request path.
	HealthCheck(ctx context.Context) *Health
}

// UpstreamError wraps any generation provider failure: network, auth,
// quota, malformed output. Callers translate it to a fallback reply rather
// than surfacing it.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return "genai: " + e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// EstimateTokens approximates a token count as one token per four runes,
// rounded up. Deterministic by construction.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
