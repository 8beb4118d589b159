// ABOUTME: Tests for envelope shaping and the fallback policy
// ABOUTME: Covers sender identity, markdown rendering and fallback substitution

package relay

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomchat/ai-relay/internal/genai"
	"github.com/loomchat/ai-relay/internal/store"
)

func TestResolveGeneration(t *testing.T) {
	t.Run("success passes through", func(t *testing.T) {
		out := ResolveGeneration(&genai.Result{Text: "fine", TokensUsed: 9}, nil)
		assert.Equal(t, "fine", out.Text)
		assert.Equal(t, 9, out.TokensUsed)
		assert.False(t, out.Fallback)
	})

	t.Run("error substitutes apology", func(t *testing.T) {
		out := ResolveGeneration(nil, errors.New("quota exceeded"))
		assert.Equal(t, FallbackMessage, out.Text)
		assert.True(t, out.Fallback)
		assert.Zero(t, out.TokensUsed)
	})

	t.Run("nil result without error still falls back", func(t *testing.T) {
		out := ResolveGeneration(nil, nil)
		assert.True(t, out.Fallback)
	})

	t.Run("error wins over a stale result", func(t *testing.T) {
		out := ResolveGeneration(&genai.Result{Text: "stale"}, errors.New("timeout"))
		assert.Equal(t, FallbackMessage, out.Text)
		assert.True(t, out.Fallback)
	})
}

func TestFallbackMessage_ExactText(t *testing.T) {
	assert.Equal(t,
		"I'm sorry, I'm experiencing some technical difficulties right now. Please try again in a moment.",
		FallbackMessage)
}

func TestShapeEnvelope(t *testing.T) {
	id := "turn-1"
	now := time.Now().UTC()
	tc := &store.TurnContext{TokensUsed: 7, ContextLength: 2, Timestamp: now}
	profile := &store.UserProfile{ID: "user-1", FirstName: "Ada", LastName: "Lovelace"}

	env := shapeEnvelope(&id, "user-1", profile, "Hello", "Hi there", now, tc)

	require.NotNil(t, env.ID)
	assert.Equal(t, "turn-1", *env.ID)
	assert.Equal(t, "ai_chat", env.Type)
	assert.Equal(t, "Hello", env.UserMessage.Content)
	assert.Equal(t, "Ada Lovelace", env.UserMessage.Sender.FullName)
	assert.Equal(t, "Hi there", env.AIResponse.Content)
	assert.Equal(t, "ai_assistant", env.AIResponse.Sender.ID)
	assert.Equal(t, now, env.CreatedAt)
	assert.False(t, env.IsFallback)
}

func TestShapeEnvelope_NilProfileDegradesToBareID(t *testing.T) {
	now := time.Now().UTC()
	id := "turn-1"

	env := shapeEnvelope(&id, "user-1", nil, "Hello", "Hi", now, nil)

	assert.Equal(t, "user-1", env.UserMessage.Sender.ID)
	assert.Empty(t, env.UserMessage.Sender.FullName)
	assert.Nil(t, env.UserMessage.Sender.ProfilePhoto)
}

func TestShapeEnvelope_FallbackFlag(t *testing.T) {
	now := time.Now().UTC()
	id := "turn-1"
	tc := &store.TurnContext{Fallback: true, Timestamp: now}

	env := shapeEnvelope(&id, "user-1", nil, "Hello", FallbackMessage, now, tc)
	assert.True(t, env.IsFallback)
}

func TestShapeEnvelope_MarkdownRendered(t *testing.T) {
	now := time.Now().UTC()
	id := "turn-1"

	env := shapeEnvelope(&id, "user-1", nil, "Hello", "some **bold** text", now, nil)

	assert.Equal(t, "some **bold** text", env.AIResponse.Content,
		"raw content is preserved alongside the rendering")
	assert.Contains(t, env.AIResponse.ContentHTML, "<strong>bold</strong>")
	assert.Empty(t, env.UserMessage.ContentHTML, "user side is plain text")
}

func TestTurnEnvelope_NilIDSerializesAsNull(t *testing.T) {
	env := shapeEnvelope(nil, "user-1", nil, "Hello", "Hi", time.Now().UTC(), nil)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"id":null`),
		"emergency envelopes carry an explicit null id: %s", data)
}
