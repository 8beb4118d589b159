// ABOUTME: StreamRelay emitting the turn incrementally with one atomic persist at the end
// ABOUTME: Distinguishes client disconnects (persist partial) from upstream failures (drop)

package relay

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/loomchat/ai-relay/internal/store"
)

// Stream event types, in emission order: start, zero or more chunks, then
// either complete or error. The transport layer appends its own terminator.
const (
	StreamEventStart    = "start"
	StreamEventChunk    = "chunk"
	StreamEventComplete = "complete"
	StreamEventError    = "error"
)

// streamErrorMessage is the user-facing text carried by an error event.
const streamErrorMessage = "Sorry, I encountered an error while processing your message. Please try again."

// StreamEvent is one element of the incremental delivery protocol.
type StreamEvent struct {
	Type         string     `json:"type"`
	Message      string     `json:"message,omitempty"`
	Content      string     `json:"content,omitempty"`
	FullContent  string     `json:"fullContent,omitempty"`
	ChatID       string     `json:"chatId,omitempty"`
	FullResponse string     `json:"fullResponse,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// EmitFunc delivers one event to the open channel. A non-nil return means
// the channel is gone and the relay should stop pulling chunks.
type EmitFunc func(StreamEvent) error

// Stream runs the streaming variant of the relay pipeline.
//
// Persistence happens exactly once, after the upstream stream drains, using
// the accumulated text. A mid-flight upstream failure persists nothing and
// surfaces an error event. A client disconnect stops the pull and persists
// whatever accumulated, flagged streamed+interrupted, so the reply the user
// partially saw is not lost from history.
func (r *Relay) Stream(ctx context.Context, userID, prompt string, emit EmitFunc) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	entries := r.loadHistory(ctx, userID)

	upstream, err := r.gen.GenerateStream(ctx, prompt, entries)
	if err != nil {
		r.logger.Warn("stream open failed", "user_id", userID, "error", err)
		emitBestEffort(emit, StreamEvent{Type: StreamEventError, Message: streamErrorMessage})
		return nil
	}
	defer upstream.Close()

	if err := emit(StreamEvent{Type: StreamEventStart, Message: "AI is typing..."}); err != nil {
		return nil
	}

	var full strings.Builder
	for {
		chunk, err := upstream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.completeStream(ctx, userID, prompt, full.String(), len(entries), emit)
				return nil
			}
			if ctx.Err() != nil {
				// Caller disconnected: stop pulling, keep what the user saw.
				r.persistInterrupted(userID, prompt, full.String(), len(entries))
				return nil
			}
			r.logger.Warn("stream failed mid-flight, nothing persisted",
				"user_id", userID, "error", err)
			emitBestEffort(emit, StreamEvent{Type: StreamEventError, Message: streamErrorMessage})
			return nil
		}

		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if err := emit(StreamEvent{
			Type:        StreamEventChunk,
			Content:     chunk,
			FullContent: full.String(),
		}); err != nil {
			r.persistInterrupted(userID, prompt, full.String(), len(entries))
			return nil
		}
	}
}

// completeStream persists the drained response and emits the completion
// event. A persistence failure downgrades to an error event; the stream
// already delivered the content, so the request itself stays successful.
func (r *Relay) completeStream(ctx context.Context, userID, prompt, full string, contextLen int, emit EmitFunc) {
	tc := store.TurnContext{
		TokensUsed:    r.gen.EstimateTokens(prompt + full),
		ContextLength: contextLen,
		Streamed:      true,
		Timestamp:     time.Now().UTC(),
	}

	turn, err := r.store.AppendTurn(ctx, userID, prompt, full, tc)
	if err != nil {
		r.logger.Error("streamed turn persistence failed", "user_id", userID, "error", err)
		emitBestEffort(emit, StreamEvent{Type: StreamEventError, Message: streamErrorMessage})
		return
	}

	emitBestEffort(emit, StreamEvent{
		Type:         StreamEventComplete,
		ChatID:       turn.ID,
		FullResponse: full,
		Timestamp:    &turn.CreatedAt,
	})

	r.notifier.Publish(userID, r.ShapeTurn(ctx, turn))
}

// persistInterrupted records a partially delivered reply after the caller
// went away. Runs on its own context since the request context is dead.
func (r *Relay) persistInterrupted(userID, prompt, partial string, contextLen int) {
	if partial == "" {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	tc := store.TurnContext{
		TokensUsed:    r.gen.EstimateTokens(prompt + partial),
		ContextLength: contextLen,
		Streamed:      true,
		Interrupted:   true,
		Timestamp:     time.Now().UTC(),
	}
	if _, err := r.store.AppendTurn(saveCtx, userID, prompt, partial, tc); err != nil {
		r.logger.Error("interrupted turn persistence failed", "user_id", userID, "error", err)
		return
	}
	r.logger.Debug("persisted interrupted stream", "user_id", userID, "bytes", len(partial))
}

// emitBestEffort delivers an event to a channel that may already be gone.
func emitBestEffort(emit EmitFunc, ev StreamEvent) {
	_ = emit(ev)
}
