package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/toolpilot/internal/api/mcp"
	"github.com/scrypster/toolpilot/internal/api/mcp/mcptest"
	"github.com/scrypster/toolpilot/internal/config"
	"github.com/scrypster/toolpilot/internal/engine"
	"github.com/scrypster/toolpilot/internal/server"
	"github.com/scrypster/toolpilot/pkg/types"
	"github.com/scrypster/toolpilot/web/handlers"
)

func testConfig() *config.Config {
	return &config.Config{
		MCP:       config.MCPConfig{RequestTimeout: 2 * time.Second},
		LLM:       config.LLMConfig{Timeout: 2 * time.Second},
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Security:  config.SecurityConfig{SecurityMode: "development"},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
}

// startTestServer connects a session to a fake MCP server exposing one tool
// and serves it on a random port. It returns the base URL.
func startTestServer(t *testing.T, cfg *config.Config) string {
	t.Helper()

	mcpSrv := mcptest.NewServer()
	t.Cleanup(mcpSrv.Close)
	mcpSrv.AddTool(types.Tool{
		Name:        "GetTopAgent",
		Description: "Returns the best performing sales agent this month",
		InputSchema: types.InputSchema{Type: "object"},
	}, func(map[string]interface{}) string { return "Jane Doe closed 42 deals." })

	session, err := mcp.NewClient(mcpSrv.StreamURL(),
		mcp.WithLogger(log.New(io.Discard, "", 0)),
		mcp.WithHandshakeTimeout(2*time.Second),
		mcp.WithRequestTimeout(2*time.Second),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Disconnect() })
	require.NoError(t, session.Connect(context.Background()))
	require.NoError(t, session.Initialize(context.Background()))

	hub := handlers.NewEventHub(server.AllowedOrigins(cfg)...)
	answerer := engine.NewDelegated(session, nil, engine.WithEventHandler(hub.Publish))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	addr, err := server.Start(ctx, cfg, session, answerer, hub)
	require.NoError(t, err)
	return "http://" + addr
}

func TestServer_StartsOnRandomPort(t *testing.T) {
	base := startTestServer(t, testConfig())
	assert.NotContains(t, base, ":0")
}

func TestServer_ListenError(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = -1
	_, err := server.Start(context.Background(), cfg, nil, nil, nil)
	assert.Error(t, err)
}

func TestServer_Health(t *testing.T) {
	base := startTestServer(t, testConfig())

	resp, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	var health handlers.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ready", health.SessionState)
	assert.Equal(t, 1, health.Tools)
}

func TestServer_AskEndToEnd(t *testing.T) {
	base := startTestServer(t, testConfig())

	resp, err := http.Post(base+"/api/ask", "application/json", strings.NewReader(`{"prompt":"who is the top agent"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ask handlers.AskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ask))
	assert.Equal(t, "Jane Doe closed 42 deals.", ask.Answer)
	assert.Equal(t, engine.StrategyDelegated, ask.Strategy)
	assert.Equal(t, 1, ask.ToolCalls)
	assert.NotEmpty(t, ask.ExchangeID)
}

func TestServer_AskWithTrace(t *testing.T) {
	base := startTestServer(t, testConfig())

	resp, err := http.Post(base+"/api/ask?trace=true", "application/json", strings.NewReader(`{"prompt":"who is the top agent"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var ask handlers.AskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ask))
	require.NotEmpty(t, ask.Trace)
	assert.Equal(t, engine.KindExchangeStarted, ask.Trace[0].Kind)
	assert.Equal(t, engine.KindAnswered, ask.Trace[len(ask.Trace)-1].Kind)

	kinds := make([]engine.EventKind, len(ask.Trace))
	for i, e := range ask.Trace {
		kinds[i] = e.Kind
		assert.Equal(t, ask.ExchangeID, e.ExchangeID)
	}
	assert.Contains(t, kinds, engine.KindToolCall)
}

func TestServer_ProductionRequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{SecurityMode: "production", APIToken: "s3cret"}
	base := startTestServer(t, cfg)

	resp, err := http.Get(base + "/api/tools")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/api/tools", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tools handlers.ToolsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tools))
	assert.Equal(t, 1, tools.Count)

	// Health stays open for monitoring.
	resp, err = http.Get(base + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_EventFeedRequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{SecurityMode: "production", APIToken: "s3cret"}
	base := startTestServer(t, cfg)

	resp, err := http.Get(base + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/ws", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusUnauthorized, resp.StatusCode, "authorized requests reach the feed")
}

func TestServer_AskIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	base := startTestServer(t, cfg)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := http.Post(base+"/api/ask", "application/json", strings.NewReader(`{"prompt":"top agent"}`))
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestAllowedOrigins(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = 6464
	assert.Equal(t, []string{"localhost:6464", "127.0.0.1:6464"}, server.AllowedOrigins(cfg))

	cfg.Server.Host = "pilot.internal"
	assert.Contains(t, server.AllowedOrigins(cfg), "pilot.internal:6464")
}
