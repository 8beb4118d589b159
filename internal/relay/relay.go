// ABOUTME: ConversationRelay orchestrating validate, history, generate, persist and shape
// ABOUTME: Absorbs upstream and persistence failures so the user always gets a reply

package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/loomchat/ai-relay/internal/genai"
	"github.com/loomchat/ai-relay/internal/store"
)

// DefaultHistoryWindow caps how many recent turns feed back into the prompt
// context, regardless of total history size.
const DefaultHistoryWindow = 10

// persistTimeout bounds persistence done off the request context, so an
// interrupted stream can still record what it accumulated.
const persistTimeout = 5 * time.Second

// ErrEmptyPrompt is the only client-caused failure: the prompt was empty or
// whitespace after trimming. Everything else degrades instead of erroring.
var ErrEmptyPrompt = errors.New("prompt is required and cannot be empty")

// TurnStore defines what the relay needs from storage.
type TurnStore interface {
	AppendTurn(ctx context.Context, userID, prompt, response string, tc store.TurnContext) (*store.Turn, error)
	RecentTurns(ctx context.Context, userID string, limit int) ([]*store.Turn, error)
	GetProfile(ctx context.Context, userID string) (*store.UserProfile, error)
}

// Notifier pushes shaped envelopes to a user's other live sessions.
// Delivery is best-effort and fire-and-forget: failures are dropped, never
// retried, and never affect the request outcome.
type Notifier interface {
	Publish(userID string, env *TurnEnvelope)
}

// NoopNotifier is the absent-capability variant for deployments with no
// live-session channel (serverless and tests).
type NoopNotifier struct{}

func (NoopNotifier) Publish(string, *TurnEnvelope) {}

// Relay coordinates one AI exchange end to end.
type Relay struct {
	store    TurnStore
	gen      genai.Client
	notifier Notifier
	logger   *slog.Logger
	window   int
}

// New creates a Relay. Pass nil logger for the default; pass a nil notifier
// to disable live-session echo.
func New(turnStore TurnStore, gen genai.Client, notifier Notifier, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Relay{
		store:    turnStore,
		gen:      gen,
		notifier: notifier,
		logger:   logger.With("component", "relay"),
		window:   DefaultHistoryWindow,
	}
}

// SetHistoryWindow overrides the context window size. Values below one are
// ignored.
func (r *Relay) SetHistoryWindow(n int) {
	if n > 0 {
		r.window = n
	}
}

// SendResult is the outcome of a relay exchange.
type SendResult struct {
	Envelope  *TurnEnvelope
	Fallback  bool
	Emergency bool // generation succeeded but persistence failed
}

// Send runs the full relay pipeline for one prompt.
//
// Failure posture: upstream errors resolve to the fallback reply and are
// still persisted; a persistence failure after generation still delivers
// the text with a nil envelope ID. Only an empty prompt returns an error.
func (r *Relay) Send(ctx context.Context, userID, prompt string) (*SendResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	entries := r.loadHistory(ctx, userID)

	res, err := r.gen.Generate(ctx, prompt, entries)
	if err != nil {
		r.logger.Warn("generation failed, using fallback", "user_id", userID, "error", err)
	}
	out := ResolveGeneration(res, err)

	tc := store.TurnContext{
		TokensUsed:    out.TokensUsed,
		ContextLength: len(entries),
		Fallback:      out.Fallback,
		Timestamp:     time.Now().UTC(),
	}

	turn, perr := r.store.AppendTurn(ctx, userID, prompt, out.Text, tc)
	if perr != nil {
		// Emergency path: the reply exists, so deliver it even though the
		// write failed. The nil ID tells the client nothing was recorded.
		r.logger.Error("turn persistence failed, delivering unpersisted reply",
			"user_id", userID, "error", perr)
		env := shapeEnvelope(nil, userID, r.profile(ctx, userID), prompt, out.Text, time.Now().UTC(), &tc)
		return &SendResult{Envelope: env, Fallback: out.Fallback, Emergency: true}, nil
	}

	env := shapeEnvelope(&turn.ID, userID, r.profile(ctx, userID), prompt, out.Text, turn.CreatedAt, &turn.Context)
	r.notifier.Publish(userID, env)

	return &SendResult{Envelope: env, Fallback: out.Fallback}, nil
}

// ShapeTurn renders a persisted turn as an envelope, for history display.
func (r *Relay) ShapeTurn(ctx context.Context, turn *store.Turn) *TurnEnvelope {
	tc := turn.Context
	return shapeEnvelope(&turn.ID, turn.UserID, r.profile(ctx, turn.UserID), turn.Prompt, turn.Response, turn.CreatedAt, &tc)
}

// loadHistory reads the bounded context window and flattens it into
// alternating user/assistant entries, oldest first. A read failure degrades
// to empty context rather than aborting the request.
func (r *Relay) loadHistory(ctx context.Context, userID string) []genai.Entry {
	turns, err := r.store.RecentTurns(ctx, userID, r.window)
	if err != nil {
		r.logger.Warn("history read failed, continuing with empty context",
			"user_id", userID, "error", err)
		return nil
	}
	return historyEntries(turns)
}

// historyEntries converts newest-first turns into chronological provider
// entries. Each turn contributes exactly two: user prompt then assistant
// response.
func historyEntries(turns []*store.Turn) []genai.Entry {
	entries := make([]genai.Entry, 0, len(turns)*2)
	for i := len(turns) - 1; i >= 0; i-- {
		entries = append(entries,
			genai.Entry{Content: turns[i].Prompt, IsUser: true},
			genai.Entry{Content: turns[i].Response, IsUser: false},
		)
	}
	return entries
}

// profile fetches display fields, degrading to nil when the lookup fails.
func (r *Relay) profile(ctx context.Context, userID string) *store.UserProfile {
	profile, err := r.store.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("profile lookup failed", "user_id", userID, "error", err)
		}
		return nil
	}
	return profile
}
