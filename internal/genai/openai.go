// ABOUTME: OpenAI-backed implementation of the generation Client interface
// ABOUTME: Wraps go-openai chat completions for both one-shot and streamed replies

package genai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultRequestTimeout = 30 * time.Second
	defaultHealthTimeout  = 10 * time.Second

	systemPrompt = "You are a helpful assistant inside a messaging app. " +
		"Answer conversationally and keep replies concise."
)

// Config holds the provider settings for NewOpenAIClient.
type Config struct {
	APIKey         string
	BaseURL        string // optional override, e.g. a proxy or test server
	Model          string
	RequestTimeout time.Duration
	HealthTimeout  time.Duration
}

// OpenAIClient implements Client against an OpenAI-compatible chat API.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	requestTimeout time.Duration
	healthTimeout  time.Duration
	logger         *slog.Logger
}

// NewOpenAIClient creates a generation client from the given config.
// Zero-value timeouts and model fall back to package defaults.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = defaultHealthTimeout
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          model,
		requestTimeout: requestTimeout,
		healthTimeout:  healthTimeout,
		logger:         slog.Default().With("component", "genai"),
	}
}

// buildMessages assembles the provider message list: system prompt, history
// entries in chronological order, then the new user prompt.
func (c *OpenAIClient) buildMessages(prompt string, history []Entry) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	for _, entry := range history {
		role := openai.ChatMessageRoleAssistant
		if entry.IsUser {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: entry.Content,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
	return messages
}

// Generate produces a complete response for the prompt.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, history []Entry) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: c.buildMessages(prompt, history),
	})
	if err != nil {
		return nil, &UpstreamError{Op: "chat completion", Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{Op: "chat completion", Err: errors.New("no choices in response")}
	}

	text := resp.Choices[0].Message.Content
	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = EstimateTokens(prompt + text)
	}

	c.logger.Debug("generated response",
		"model", c.model,
		"history_entries", len(history),
		"tokens_used", tokens)

	return &Result{Text: text, TokensUsed: tokens}, nil
}

// GenerateStream opens an incremental response stream. The stream inherits
// the caller's context, so client disconnects cancel the upstream pull.
func (c *OpenAIClient) GenerateStream(ctx context.Context, prompt string, history []Entry) (Stream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: c.buildMessages(prompt, history),
		Stream:   true,
	})
	if err != nil {
		return nil, &UpstreamError{Op: "opening stream", Err: err}
	}
	return &openaiStream{inner: stream}, nil
}

// openaiStream adapts go-openai's stream to the Stream interface.
type openaiStream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next text fragment. go-openai yields io.EOF at the end
// of a healthy stream and that passes through untouched; context
// cancellation and transport failures also pass through for the caller to
// classify.
func (s *openaiStream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openaiStream) Close() error {
	return s.inner.Close()
}

// EstimateTokens implements Client using the package-level estimator.
func (c *OpenAIClient) EstimateTokens(text string) int {
	return EstimateTokens(text)
}

// HealthCheck issues a tiny completion under its own short timeout.
func (c *OpenAIClient) HealthCheck(ctx context.Context) *Health {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Reply with the single word: ok"},
		},
		MaxTokens: 8,
	})
	if err != nil {
		c.logger.Warn("health check failed", "error", err)
		return &Health{Status: StatusUnhealthy, Err: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return &Health{Status: StatusUnhealthy, Err: "no choices in response"}
	}

	return &Health{Status: StatusHealthy, SampleResponse: resp.Choices[0].Message.Content}
}

// Ensure OpenAIClient implements Client
var _ Client = (*OpenAIClient)(nil)
