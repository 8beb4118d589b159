// ABOUTME: Fallback policy deciding the effective reply after a generation attempt
// ABOUTME: Substitutes the fixed apology string whenever the provider fails

package relay

import "github.com/loomchat/ai-relay/internal/genai"

// FallbackMessage is the single fixed reply substituted when generation is
// unavailable or errors. The user always receives some reply, and the turn
// is still persisted so conversation continuity never skips a beat.
const FallbackMessage = "I'm sorry, I'm experiencing some technical difficulties right now. Please try again in a moment."

// Outcome is the resolved result of a generation attempt.
type Outcome struct {
	Text       string
	TokensUsed int
	Fallback   bool
}

// ResolveGeneration applies the fallback policy: a successful result passes
// through unchanged; any failure substitutes FallbackMessage with
// Fallback=true. err wins when both are set.
func ResolveGeneration(res *genai.Result, err error) Outcome {
	if err != nil || res == nil {
		return Outcome{Text: FallbackMessage, Fallback: true}
	}
	return Outcome{Text: res.Text, TokensUsed: res.TokensUsed}
}
