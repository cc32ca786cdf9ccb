package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/scrypster/toolpilot/internal/config"
	"github.com/scrypster/toolpilot/pkg/types"
)

const (
	// DefaultHandshakeTimeout bounds the wait for the endpoint event.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultRequestTimeout bounds the wait for a correlated reply.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultProtocolVersion is the MCP revision that defines the HTTP+SSE
	// transport.
	DefaultProtocolVersion = "2024-11-05"

	// maxToolPages bounds tools/list pagination against servers that keep
	// returning a cursor.
	maxToolPages = 50
)

// State is a session lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingEndpoint
	StateReadyPreSession
	StateInitializing
	StateReady
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingEndpoint:
		return "awaiting_endpoint"
	case StateReadyPreSession:
		return "ready_pre_session"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Client is one MCP session over the HTTP+SSE transport. It owns a single
// background goroutine that reads the event stream for the lifetime of the
// session; every other method runs on the caller's goroutine and talks to
// the reader only through the endpoint gate and the correlator.
//
// A Client is not reusable: after Disconnect, or after Connect fails,
// construct a new one.
type Client struct {
	transportURL     *url.URL
	httpClient       *http.Client
	handshakeTimeout time.Duration
	requestTimeout   time.Duration
	protocolVersion  string
	clientInfo       MCPClientInfo
	logger           *log.Logger
	sessionID        string // unique per Client, used to tag log lines

	gate    *endpointGate
	pending *correlator

	mu         sync.RWMutex
	state      State
	tools      []types.Tool
	serverInfo MCPServerInfo
	degraded   bool
	cancel     context.CancelFunc
	readerDone chan struct{}
	connectErr chan error
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for the stream and for
// requests. It must not set a Timeout, which would cut the stream.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHandshakeTimeout overrides DefaultHandshakeTimeout.
func WithHandshakeTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithClientInfo sets the identity sent in initialize.
func WithClientInfo(name, version string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.clientInfo.Name = name
		}
		if version != "" {
			c.clientInfo.Version = version
		}
	}
}

// WithProtocolVersion overrides DefaultProtocolVersion.
func WithProtocolVersion(v string) ClientOption {
	return func(c *Client) {
		if v != "" {
			c.protocolVersion = v
		}
	}
}

// WithLogger directs client diagnostics to logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a disconnected session for the SSE stream at
// transportURL.
func NewClient(transportURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(transportURL))
	if err != nil {
		return nil, fmt.Errorf("mcp: invalid transport URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("mcp: unsupported transport scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("mcp: transport URL %q has no host", transportURL)
	}
	u.Scheme = scheme

	c := &Client{
		transportURL:     u,
		httpClient:       &http.Client{},
		handshakeTimeout: DefaultHandshakeTimeout,
		requestTimeout:   DefaultRequestTimeout,
		protocolVersion:  DefaultProtocolVersion,
		clientInfo:       MCPClientInfo{Name: "toolpilot", Version: "1.0.0"},
		logger:           log.New(os.Stderr, "mcp: ", log.LstdFlags),
		sessionID:        uuid.New().String(),
		gate:             newEndpointGate(),
		pending:          newCorrelator(),
		state:            StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientFromConfig creates a disconnected session from the MCP section
// of the configuration. opts are applied after the configured values.
func NewClientFromConfig(cfg config.MCPConfig, opts ...ClientOption) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("mcp: no server URL configured")
	}
	base := []ClientOption{
		WithHandshakeTimeout(cfg.HandshakeTimeout),
		WithRequestTimeout(cfg.RequestTimeout),
		WithClientInfo(cfg.ClientName, cfg.ClientVersion),
		WithProtocolVersion(cfg.ProtocolVersion),
	}
	return NewClient(cfg.URL, append(base, opts...)...)
}

// Open creates, connects and initializes a session. A failed initialize
// leaves a usable degraded session; only a failed connect is returned.
func Open(ctx context.Context, cfg config.MCPConfig, opts ...ClientOption) (*Client, error) {
	c, err := NewClientFromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("mcp: connect %s: %w", cfg.URL, err)
	}
	// Initialize logs its own failure and marks the session degraded.
	_ = c.Initialize(ctx)
	return c, nil
}

// SessionID returns the identifier used to tag this session's log lines.
func (c *Client) SessionID() string { return c.sessionID }

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Degraded reports whether Initialize failed and left the tool set empty.
func (c *Client) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

// MessageEndpoint returns the resolved POST endpoint, or "" before the
// handshake.
func (c *Client) MessageEndpoint() string { return c.gate.get() }

// ServerInfo returns the identity the server reported in initialize.
func (c *Client) ServerInfo() MCPServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Tools returns the tool set captured by Initialize. The returned slice is a
// copy; callers may not mutate the session's snapshot.
func (c *Client) Tools() []types.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect opens the event stream and waits for the server's endpoint
// announcement. On success the session is ReadyPreSession. On failure the
// reader is stopped and the session returns to Disconnected; it should be
// discarded.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected || c.readerDone != nil {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("mcp: connect called in state %s", state)
	}
	c.state = StateConnecting
	readerCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.readerDone = make(chan struct{})
	c.connectErr = make(chan error, 1)
	c.mu.Unlock()

	go c.readLoop(readerCtx)
	c.setState(StateAwaitingEndpoint)

	timer := time.NewTimer(c.handshakeTimeout)
	defer timer.Stop()

	select {
	case <-c.gate.done():
		c.setState(StateReadyPreSession)
		c.logger.Printf("session %s: message endpoint %s", c.sessionID, c.gate.get())
		return nil
	case err := <-c.connectErr:
		c.abortConnect()
		return err
	case <-timer.C:
		c.abortConnect()
		return fmt.Errorf("%w after %s", ErrHandshakeTimeout, c.handshakeTimeout)
	case <-ctx.Done():
		c.abortConnect()
		return ctx.Err()
	}
}

func (c *Client) abortConnect() {
	c.cancel()
	<-c.readerDone
	c.setState(StateDisconnected)
}

// readLoop owns the event stream. It reports stream-level failures that
// happen before the handshake on connectErr and otherwise only logs.
func (c *Client) readLoop(ctx context.Context) {
	defer close(c.readerDone)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.transportURL.String(), nil)
	if err != nil {
		c.reportConnectErr(fmt.Errorf("mcp: failed to create stream request: %w", err))
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.reportConnectErr(fmt.Errorf("mcp: failed to open event stream: %w", err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.reportConnectErr(&TransportError{
			Op:         "stream",
			URL:        c.transportURL.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
		return
	}

	err = ReadFrames(resp.Body, c.handleFrame)
	switch {
	case ctx.Err() != nil:
		// Disconnect (or an aborted Connect) cancelled the stream.
	case err != nil:
		c.logger.Printf("session %s: event stream error: %v", c.sessionID, err)
		c.reportConnectErr(fmt.Errorf("%w: %v", ErrStreamClosed, err))
	default:
		c.logger.Printf("session %s: event stream closed by server", c.sessionID)
		c.reportConnectErr(ErrStreamClosed)
	}
}

// reportConnectErr hands err to a Connect that is still waiting. Once the
// handshake is done nobody listens and the error is dropped.
func (c *Client) reportConnectErr(err error) {
	select {
	case c.connectErr <- err:
	default:
	}
}

// handleFrame dispatches one frame. It must never stop the reader: every
// bad frame is logged and skipped.
func (c *Client) handleFrame(f Frame) {
	switch f.Event {
	case "endpoint":
		endpoint, err := ResolveEndpoint(c.transportURL, f.Data)
		if err != nil {
			c.logger.Printf("session %s: ignoring endpoint event: %v", c.sessionID, err)
			return
		}
		c.gate.set(endpoint)
	case "", "message":
		c.handleMessage(ParseMessage(f.Data))
	default:
		c.logger.Printf("session %s: ignoring %q event", c.sessionID, f.Event)
	}
}

func (c *Client) handleMessage(msg Message) {
	switch m := msg.(type) {
	case Response:
		if !c.pending.resolve(m) {
			c.logger.Printf("session %s: dropping response for unknown or expired request id %q", c.sessionID, m.ID)
		}
	case Notification:
		c.logger.Printf("session %s: notification %s", c.sessionID, m.Method)
	case Unparseable:
		c.logger.Printf("session %s: %v: %s (%s)", c.sessionID, ErrProtocol, truncate(m.Raw, 200), m.Reason)
	}
}

// Send issues one JSON-RPC request and waits for its reply on the event
// stream. It returns the reply's result member, a *JSONRPCError when the
// server answered with an error, ErrRequestTimeout, or a *TransportError
// when the POST itself was rejected.
func (c *Client) Send(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	endpoint := c.activeEndpoint()
	if endpoint == "" {
		return nil, ErrNotConnected
	}

	id, done := c.pending.register()
	if err := c.post(ctx, endpoint, JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		c.pending.remove(id)
		return nil, err
	}

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()

	select {
	case resp := <-done:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-timer.C:
		c.pending.remove(id)
		return nil, fmt.Errorf("%w: %s (id %s) after %s", ErrRequestTimeout, method, id, c.requestTimeout)
	case <-ctx.Done():
		c.pending.remove(id)
		return nil, ctx.Err()
	}
}

// Notify sends a JSON-RPC notification. No reply is expected.
func (c *Client) Notify(ctx context.Context, method string, params interface{}) error {
	endpoint := c.activeEndpoint()
	if endpoint == "" {
		return ErrNotConnected
	}
	return c.post(ctx, endpoint, JSONRPCRequest{JSONRPC: "2.0", Method: method, Params: params})
}

// activeEndpoint returns the POST endpoint while the reader is running past
// the handshake, and "" in every other state.
func (c *Client) activeEndpoint() string {
	switch c.State() {
	case StateReadyPreSession, StateInitializing, StateReady:
		return c.gate.get()
	default:
		return ""
	}
}

func (c *Client) post(ctx context.Context, endpoint string, msg JSONRPCRequest) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mcp: failed to marshal %s request: %w", msg.Method, err)
	}

	postCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(postCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mcp: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mcp: failed to send %s: %w", msg.Method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &TransportError{
			Op:         "post",
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Initialize performs the MCP initialize exchange and captures the tool set.
// Any failure leaves the session Ready but degraded, with zero tools; the
// error is returned for the caller's information and is otherwise not
// fatal. Callers must treat an empty tool set as "data unavailable".
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReadyPreSession {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("mcp: initialize called in state %s", state)
	}
	c.state = StateInitializing
	c.mu.Unlock()

	info, tools, err := c.initialize(ctx)

	c.mu.Lock()
	c.state = StateReady
	c.serverInfo = info
	c.tools = tools
	c.degraded = err != nil
	c.mu.Unlock()

	if err != nil {
		c.logger.Printf("session %s: initialize failed, continuing without tools: %v", c.sessionID, err)
		return err
	}
	c.logger.Printf("session %s: initialized with %s %s, %d tools", c.sessionID, info.Name, info.Version, len(tools))
	return nil
}

func (c *Client) initialize(ctx context.Context) (MCPServerInfo, []types.Tool, error) {
	raw, err := c.Send(ctx, "initialize", MCPInitializeParams{
		ProtocolVersion: c.protocolVersion,
		Capabilities:    map[string]interface{}{},
		ClientInfo:      c.clientInfo,
	})
	if err != nil {
		return MCPServerInfo{}, nil, fmt.Errorf("initialize: %w", err)
	}

	var initResult MCPInitializeResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &initResult); err != nil {
			c.logger.Printf("session %s: unexpected initialize result: %v", c.sessionID, err)
		}
	}

	if err := c.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Printf("session %s: initialized notification failed: %v", c.sessionID, err)
	}

	tools, err := c.listTools(ctx)
	if err != nil {
		return initResult.ServerInfo, nil, fmt.Errorf("tools/list: %w", err)
	}
	return initResult.ServerInfo, tools, nil
}

func (c *Client) listTools(ctx context.Context) ([]types.Tool, error) {
	var tools []types.Tool
	cursor := ""
	for page := 0; page < maxToolPages; page++ {
		var params interface{}
		if cursor != "" {
			params = MCPToolsListParams{Cursor: cursor}
		}
		raw, err := c.Send(ctx, "tools/list", params)
		if err != nil {
			return nil, err
		}
		var result MCPToolsListResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("%w: decode tools/list result: %v", ErrProtocol, err)
		}
		tools = append(tools, result.Tools...)
		if result.NextCursor == "" || result.NextCursor == cursor {
			return tools, nil
		}
		cursor = result.NextCursor
	}
	c.logger.Printf("session %s: tools/list still paginating after %d pages, keeping %d tools", c.sessionID, maxToolPages, len(tools))
	return tools, nil
}

// Disconnect stops the reader, waits for it to exit and releases pooled
// connections. In-flight requests are not cancelled; they time out.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.readerDone == nil || c.state == StateDisconnected || c.state == StateDisconnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnecting
	cancel, done := c.cancel, c.readerDone
	c.mu.Unlock()

	cancel()
	<-done
	c.httpClient.CloseIdleConnections()

	c.setState(StateDisconnected)
	c.logger.Printf("session %s: disconnected", c.sessionID)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// errorsIsTimeout reports whether err is one of the client's wait timeouts.
func errorsIsTimeout(err error) bool {
	return errors.Is(err, ErrRequestTimeout) || errors.Is(err, context.DeadlineExceeded)
}
