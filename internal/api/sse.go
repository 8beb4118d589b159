// ABOUTME: SSE endpoints: incremental AI replies and the live-session event feed
// ABOUTME: Stream protocol is start/chunk*/complete|error followed by a [DONE] marker

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/loomchat/ai-relay/internal/relay"
)

// handleStream handles POST /api/ai/stream.
// Events are emitted as data-only SSE frames carrying a JSON body with a
// "type" field, terminated by a literal [DONE] frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendFailure(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.sendFailure(w, http.StatusBadRequest, "Prompt is required and cannot be empty", nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendFailure(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	setSSEHeaders(w)

	emit := func(ev relay.StreamEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := s.relay.Stream(r.Context(), p.UserID, req.Prompt, emit); err != nil {
		// Validation already happened above, so this is unexpected.
		s.logger.Error("stream relay failed", "user_id", p.UserID, "error", err)
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// handleEvents handles GET /api/ai/events: the live-session echo feed. Each
// AI turn completed in any of the user's sessions arrives as an ai_message
// event. Delivery is best-effort; slow consumers lose events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	if s.broadcaster == nil {
		s.sendFailure(w, http.StatusNotImplemented, "live events are not enabled", nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendFailure(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	setSSEHeaders(w)

	envelopes, subID := s.broadcaster.Subscribe(r.Context(), p.UserID)
	defer s.broadcaster.Unsubscribe(p.UserID, subID)

	s.writeSSEEvent(w, "connected", map[string]string{"subscription": subID})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case env, open := <-envelopes:
			if !open {
				return
			}
			s.writeSSEEvent(w, "ai_message", env)
			flusher.Flush()
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeSSEEvent writes a named SSE event with a JSON payload.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}
