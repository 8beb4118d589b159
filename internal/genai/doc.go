// Package genai abstracts the external generation provider behind a small
// Client interface: one-shot generation, incremental streaming, a
// deterministic token estimator, and a bounded liveness probe.
//
// The shipped implementation (OpenAIClient) speaks any OpenAI-compatible
// chat completion API via github.com/sashabaranov/go-openai. History is
// passed as ordered Entry values ({Content, IsUser}), independent of how the
// surrounding application stores its turns.
//
// Provider failures of any kind surface as *UpstreamError so callers can
// translate them to a fallback reply instead of failing the request.
package genai
