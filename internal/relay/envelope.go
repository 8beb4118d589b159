// ABOUTME: Turn envelope shaping for the messaging UI
// ABOUTME: Renders user and assistant sides with sender identity and markdown HTML

package relay

import (
	"bytes"
	"time"

	"github.com/yuin/goldmark"

	"github.com/loomchat/ai-relay/internal/store"
)

// Sender identifies who a rendered message came from, shaped the same way
// as every other message type in the wider messaging UI.
type Sender struct {
	ID           string  `json:"id"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	FullName     string  `json:"full_name"`
	ProfilePhoto *string `json:"profile_photo"`
}

// assistantSender is the fixed synthetic identity attached to every
// generated reply.
var assistantSender = Sender{
	ID:        "ai_assistant",
	FirstName: "AI",
	LastName:  "Assistant",
	FullName:  "AI Assistant",
}

// RenderedMessage is one side of a shaped turn.
type RenderedMessage struct {
	Content     string    `json:"content"`
	ContentHTML string    `json:"content_html,omitempty"`
	Sender      Sender    `json:"sender"`
	CreatedAt   time.Time `json:"created_at"`
}

// TurnEnvelope is the uniform response shape for one exchange. ID is nil
// only on the emergency-fallback path where persistence failed after
// generation succeeded.
type TurnEnvelope struct {
	ID          *string            `json:"id"`
	Type        string             `json:"type"`
	UserMessage RenderedMessage    `json:"user_message"`
	AIResponse  RenderedMessage    `json:"ai_response"`
	CreatedAt   time.Time          `json:"created_at"`
	Context     *store.TurnContext `json:"context,omitempty"`
	IsFallback  bool               `json:"is_fallback,omitempty"`
}

const envelopeType = "ai_chat"

var markdown = goldmark.New()

// renderMarkdown converts generated markdown to HTML for clients that show
// rich turns. Returns "" on render failure; the raw content field is always
// present regardless.
func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return ""
	}
	return buf.String()
}

// shapeEnvelope builds the uniform turn envelope from its raw parts.
// profile may be nil, in which case the user side degrades to a bare ID.
func shapeEnvelope(id *string, userID string, profile *store.UserProfile, prompt, response string, createdAt time.Time, tc *store.TurnContext) *TurnEnvelope {
	userSender := Sender{ID: userID}
	if profile != nil {
		userSender.FirstName = profile.FirstName
		userSender.LastName = profile.LastName
		userSender.FullName = profile.FullName()
		userSender.ProfilePhoto = profile.ProfilePhoto
	}

	env := &TurnEnvelope{
		ID:   id,
		Type: envelopeType,
		UserMessage: RenderedMessage{
			Content:   prompt,
			Sender:    userSender,
			CreatedAt: createdAt,
		},
		AIResponse: RenderedMessage{
			Content:     response,
			ContentHTML: renderMarkdown(response),
			Sender:      assistantSender,
			CreatedAt:   createdAt,
		},
		CreatedAt: createdAt,
		Context:   tc,
	}
	if tc != nil {
		env.IsFallback = tc.Fallback
	}
	return env
}
