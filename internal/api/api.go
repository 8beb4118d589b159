// ABOUTME: HTTP handlers for the AI conversation endpoints
// ABOUTME: Uniform success/message/data envelopes; upstream failures never become 500s

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/loomchat/ai-relay/internal/auth"
	"github.com/loomchat/ai-relay/internal/genai"
	"github.com/loomchat/ai-relay/internal/relay"
	"github.com/loomchat/ai-relay/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	activityWindowDays  = 7
)

// Server holds the handler dependencies.
type Server struct {
	store       store.Store
	relay       *relay.Relay
	gen         genai.Client
	broadcaster *relay.Broadcaster
	logger      *slog.Logger
	development bool
}

// New creates an API server. broadcaster may be nil when live-session echo
// is disabled. development controls whether internal error detail reaches
// clients.
func New(st store.Store, rel *relay.Relay, gen genai.Client, broadcaster *relay.Broadcaster, logger *slog.Logger, development bool) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:       st,
		relay:       rel,
		gen:         gen,
		broadcaster: broadcaster,
		logger:      logger.With("component", "api"),
		development: development,
	}
}

// Handler builds the routing table. Everything under /api/ requires a
// verified bearer token; /healthz stays open for infrastructure probes.
func (s *Server) Handler(verifier auth.Verifier) http.Handler {
	authed := http.NewServeMux()
	authed.HandleFunc("POST /api/ai/send", s.handleSend)
	authed.HandleFunc("POST /api/ai/stream", s.handleStream)
	authed.HandleFunc("GET /api/ai/conversation", s.handleHistory)
	authed.HandleFunc("DELETE /api/ai/conversation", s.handleClear)
	authed.HandleFunc("GET /api/ai/stats", s.handleStats)
	authed.HandleFunc("GET /api/ai/health", s.handleAIHealth)
	authed.HandleFunc("GET /api/ai/events", s.handleEvents)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("/api/", auth.Middleware(verifier)(authed))
	return mux
}

// apiResponse is the uniform JSON envelope for every non-SSE endpoint.
type apiResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Response string `json:"response,omitempty"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// sendRequest is the JSON request body for send and stream.
type sendRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendFailure writes a failure envelope. Internal detail is attached only
// in development configuration.
func (s *Server) sendFailure(w http.ResponseWriter, status int, message string, err error) {
	resp := apiResponse{Success: false, Message: message}
	if s.development && err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, status, resp)
}

// principal extracts the authenticated principal, failing the request if
// the middleware somehow did not run.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := auth.FromContext(r.Context())
	if p == nil {
		s.sendFailure(w, http.StatusUnauthorized, "not authenticated", nil)
		return nil, false
	}
	return p, true
}

// handleSend handles POST /api/ai/send.
// It never 500s on upstream failure: the relay resolves those to a
// fallback reply, and a persist failure downgrades to the emergency path.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendFailure(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	result, err := s.relay.Send(r.Context(), p.UserID, req.Prompt)
	if errors.Is(err, relay.ErrEmptyPrompt) {
		s.sendFailure(w, http.StatusBadRequest, "Prompt is required and cannot be empty", nil)
		return
	}
	if err != nil {
		s.logger.Error("send failed", "user_id", p.UserID, "error", err)
		s.sendFailure(w, http.StatusInternalServerError, "Failed to process AI message", err)
		return
	}

	status := http.StatusCreated
	message := "AI response generated successfully"
	switch {
	case result.Emergency:
		status = http.StatusOK
		message = "AI response generated (emergency fallback)"
	case result.Fallback:
		message = "AI response generated (fallback mode)"
	}

	s.writeJSON(w, status, apiResponse{
		Success:  true,
		Message:  message,
		Response: result.Envelope.AIResponse.Content,
		Data:     map[string]any{"chat": result.Envelope},
	})
}

// handleHistory handles GET /api/ai/conversation.
// Rows are read newest-first and reversed so the payload flows oldest-first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	turns, err := s.store.PageTurns(r.Context(), p.UserID, limit, offset)
	if err != nil {
		s.logger.Error("history read failed", "user_id", p.UserID, "error", err)
		s.sendFailure(w, http.StatusInternalServerError, "Failed to get AI conversation", err)
		return
	}

	conversation := make([]*relay.TurnEnvelope, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		conversation = append(conversation, s.relay.ShapeTurn(r.Context(), turns[i]))
	}

	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data: map[string]any{
			"conversation": conversation,
			"pagination": map[string]any{
				"limit":    limit,
				"offset":   offset,
				"has_more": len(turns) == limit,
			},
		},
	})
}

// handleClear handles DELETE /api/ai/conversation. Idempotent.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	removed, err := s.store.ClearTurns(r.Context(), p.UserID)
	if err != nil {
		s.logger.Error("clear failed", "user_id", p.UserID, "error", err)
		s.sendFailure(w, http.StatusInternalServerError, "Failed to clear AI conversation", err)
		return
	}

	s.logger.Info("conversation cleared", "user_id", p.UserID, "removed", removed)
	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "AI conversation cleared successfully",
	})
}

// handleStats handles GET /api/ai/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	stats, err := s.store.TurnStats(r.Context(), p.UserID)
	if err != nil {
		s.logger.Error("stats query failed", "user_id", p.UserID, "error", err)
		s.sendFailure(w, http.StatusInternalServerError, "Failed to get AI statistics", err)
		return
	}

	activity, err := s.store.DailyActivity(r.Context(), p.UserID, activityWindowDays)
	if err != nil {
		s.logger.Error("activity query failed", "user_id", p.UserID, "error", err)
		s.sendFailure(w, http.StatusInternalServerError, "Failed to get AI statistics", err)
		return
	}

	activityRows := make([]map[string]any, 0, len(activity))
	for _, day := range activity {
		activityRows = append(activityRows, map[string]any{
			"date":               day.Date,
			"conversation_count": day.Count,
		})
	}

	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data: map[string]any{
			"stats": map[string]any{
				"total_conversations": stats.TotalTurns,
				"today_conversations": stats.TodayTurns,
				"week_conversations":  stats.WeekTurns,
				"avg_prompt_length":   stats.AvgPromptLength,
				"avg_response_length": stats.AvgResponseLength,
				"first_conversation":  formatTime(stats.FirstTurnAt),
				"last_conversation":   formatTime(stats.LastTurnAt),
			},
			"activity": activityRows,
		},
	})
}

// handleAIHealth handles GET /api/ai/health. It probes the generation
// client only; store health is /healthz territory.
func (s *Server) handleAIHealth(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r); !ok {
		return
	}

	health := s.gen.HealthCheck(r.Context())

	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data: map[string]any{
			"service_status":  health.Status,
			"sample_response": health.SampleResponse,
			"error":           health.Err,
		},
	})
}

// handleHealthz is the unauthenticated liveness endpoint.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
