// Package handlers provides the HTTP ask surface, its middleware and the
// WebSocket progress feed.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/scrypster/toolpilot/internal/api/mcp"
	"github.com/scrypster/toolpilot/internal/engine"
	"github.com/scrypster/toolpilot/pkg/types"
)

const (
	maxAskBody   = 64 * 1024
	maxPromptLen = 4000
)

// Session is the part of an MCP session the handlers report on.
// *mcp.Client implements it.
type Session interface {
	Tools() []types.Tool
	State() mcp.State
	Degraded() bool
}

// APIHandlers serves the ask, tools and health endpoints.
type APIHandlers struct {
	session  Session
	answerer engine.Answerer
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(session Session, answerer engine.Answerer) *APIHandlers {
	return &APIHandlers{session: session, answerer: answerer}
}

// Ask handles POST /api/ask - answer one question with the session's tools.
func (h *APIHandlers) Ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		respondError(w, http.StatusBadRequest, "prompt is required", nil)
		return
	}
	if len(req.Prompt) > maxPromptLen {
		respondError(w, http.StatusBadRequest, "prompt is too long", nil)
		return
	}

	ctx := r.Context()
	var recorder *engine.Recorder
	if trace, _ := strconv.ParseBool(r.URL.Query().Get("trace")); trace {
		recorder = engine.NewRecorder()
		ctx = engine.WithRecorder(ctx, recorder)
	}

	answer := h.answerer.Answer(ctx, engine.Question{
		Prompt:   req.Prompt,
		UserID:   strings.TrimSpace(req.UserID),
		UserRole: strings.TrimSpace(req.UserRole),
	})

	resp := AskResponse{
		Answer:     answer.Text,
		ExchangeID: answer.ExchangeID,
		Strategy:   answer.Strategy,
		ToolCalls:  answer.ToolCalls,
	}
	if recorder != nil {
		resp.Trace = recorder.Events()
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListTools handles GET /api/tools - the session's tool snapshot.
func (h *APIHandlers) ListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	tools := h.session.Tools()
	if tools == nil {
		tools = []types.Tool{}
	}
	respondJSON(w, http.StatusOK, ToolsResponse{Tools: tools, Count: len(tools)})
}

// Health handles GET /api/health. A degraded session still reports 200;
// a session that is not ready reports 503.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	state := h.session.State()
	resp := HealthResponse{
		Status:       "ok",
		SessionState: state.String(),
		Tools:        len(h.session.Tools()),
	}

	status := http.StatusOK
	switch {
	case state != mcp.StateReady:
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	case h.session.Degraded():
		resp.Status = "degraded"
	}
	respondJSON(w, status, resp)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent.
		log.Printf("failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
