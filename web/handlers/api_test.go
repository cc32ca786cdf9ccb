package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/toolpilot/internal/api/mcp"
	"github.com/scrypster/toolpilot/internal/engine"
	"github.com/scrypster/toolpilot/pkg/types"
)

// MockSession is a mock implementation of Session for testing.
type MockSession struct {
	mock.Mock
}

func (m *MockSession) Tools() []types.Tool {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]types.Tool)
}

func (m *MockSession) State() mcp.State {
	args := m.Called()
	return args.Get(0).(mcp.State)
}

func (m *MockSession) Degraded() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockAnswerer is a mock implementation of engine.Answerer for testing.
type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, q engine.Question) engine.Answer {
	args := m.Called(ctx, q)
	return args.Get(0).(engine.Answer)
}

func postAsk(t *testing.T, h *APIHandlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Ask(w, req)
	return w
}

func TestAsk_ReturnsAnswer(t *testing.T) {
	answerer := new(MockAnswerer)
	answerer.On("Answer", mock.Anything, engine.Question{Prompt: "who is the top agent", UserID: "42", UserRole: "broker"}).
		Return(engine.Answer{ExchangeID: "ex-1", Strategy: engine.StrategyDelegated, Text: "Jane Doe", ToolCalls: 1})

	h := NewAPIHandlers(new(MockSession), answerer)
	w := postAsk(t, h, `{"prompt":"  who is the top agent ","user_id":"42","user_role":"broker"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp AskResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, AskResponse{Answer: "Jane Doe", ExchangeID: "ex-1", Strategy: engine.StrategyDelegated, ToolCalls: 1}, resp)
	answerer.AssertExpectations(t)
}

func TestAsk_RejectsBadRequests(t *testing.T) {
	answerer := new(MockAnswerer)
	h := NewAPIHandlers(new(MockSession), answerer)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"prompt":`, http.StatusBadRequest},
		{"missing prompt", `{}`, http.StatusBadRequest},
		{"blank prompt", `{"prompt":"   "}`, http.StatusBadRequest},
		{"prompt too long", `{"prompt":"` + strings.Repeat("a", maxPromptLen+1) + `"}`, http.StatusBadRequest},
		{"body too large", `{"prompt":"` + strings.Repeat("a", maxAskBody) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postAsk(t, h, tt.body)
			assert.Equal(t, tt.status, w.Code)

			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
			assert.NotEmpty(t, errResp.Error)
			assert.Equal(t, http.StatusText(tt.status), errResp.Code)
		})
	}
	answerer.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
}

func TestAsk_MethodNotAllowed(t *testing.T) {
	h := NewAPIHandlers(new(MockSession), new(MockAnswerer))
	w := httptest.NewRecorder()
	h.Ask(w, httptest.NewRequest(http.MethodGet, "/api/ask", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestListTools(t *testing.T) {
	session := new(MockSession)
	session.On("Tools").Return([]types.Tool{{Name: "GetWeather", Description: "Get the weather"}}).Once()
	session.On("Tools").Return(nil).Once()
	h := NewAPIHandlers(session, new(MockAnswerer))

	w := httptest.NewRecorder()
	h.ListTools(w, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ToolsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "GetWeather", resp.Tools[0].Name)

	w = httptest.NewRecorder()
	h.ListTools(w, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	assert.JSONEq(t, `{"tools":[],"count":0}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		state    mcp.State
		degraded bool
		status   int
		want     string
	}{
		{"ready", mcp.StateReady, false, http.StatusOK, "ok"},
		{"degraded", mcp.StateReady, true, http.StatusOK, "degraded"},
		{"connecting", mcp.StateConnecting, false, http.StatusServiceUnavailable, "unavailable"},
		{"disconnected", mcp.StateDisconnected, false, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := new(MockSession)
			session.On("State").Return(tt.state)
			session.On("Degraded").Return(tt.degraded).Maybe()
			session.On("Tools").Return([]types.Tool{{Name: "a"}, {Name: "b"}})

			w := httptest.NewRecorder()
			NewAPIHandlers(session, new(MockAnswerer)).Health(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			assert.Equal(t, tt.status, w.Code)

			var resp HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, tt.state.String(), resp.SessionState)
			assert.Equal(t, 2, resp.Tools)
		})
	}
}

func TestRespondError_IncludesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	respondError(w, http.StatusBadRequest, "invalid request body", assert.AnError)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "invalid request body", resp.Error)
	assert.Equal(t, "Bad Request", resp.Code)
	assert.Equal(t, assert.AnError.Error(), resp.Details["error"])
}
