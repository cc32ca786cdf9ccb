package handlers

import (
	"github.com/scrypster/toolpilot/internal/engine"
	"github.com/scrypster/toolpilot/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// AskRequest is the request body for POST /api/ask.
type AskRequest struct {
	Prompt   string `json:"prompt"`
	UserID   string `json:"user_id,omitempty"`
	UserRole string `json:"user_role,omitempty"`
}

// AskResponse is the response format for POST /api/ask.
type AskResponse struct {
	Answer     string `json:"answer"`
	ExchangeID string `json:"exchange_id"`
	Strategy   string `json:"strategy"`
	ToolCalls  int    `json:"tool_calls"`

	// Trace holds the exchange's events when requested with ?trace=true.
	Trace []engine.Event `json:"trace,omitempty"`
}

// ToolsResponse is the response format for GET /api/tools.
type ToolsResponse struct {
	Tools []types.Tool `json:"tools"`
	Count int          `json:"count"`
}

// HealthResponse is the response format for GET /api/health.
type HealthResponse struct {
	Status       string `json:"status"` // ok, degraded or unavailable
	SessionState string `json:"session_state"`
	Tools        int    `json:"tools"`
}

// EventMessage is the envelope of every message on the /ws feed.
type EventMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
