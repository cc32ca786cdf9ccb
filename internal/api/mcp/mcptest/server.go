// Package mcptest provides an in-process MCP server speaking the HTTP+SSE
// transport, for tests of code that talks to MCP servers.
package mcptest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/scrypster/toolpilot/internal/api/mcp"
	"github.com/scrypster/toolpilot/pkg/types"
)

// HandlerFunc answers one JSON-RPC method. Returning a non-nil
// *mcp.JSONRPCError sends an error reply instead of a result.
type HandlerFunc func(params json.RawMessage) (interface{}, *mcp.JSONRPCError)

// ToolFunc implements one tool for the tools/call handler.
type ToolFunc func(args map[string]interface{}) string

// Request is a JSON-RPC message the server received.
type Request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Server is a fake MCP server. The zero configuration announces "/message"
// as the endpoint and answers initialize, tools/list and tools/call from
// the registered tools.
type Server struct {
	*httptest.Server

	// EndpointPayload is sent as the data of the endpoint event. Set before
	// the client connects.
	EndpointPayload string
	// SkipEndpoint suppresses the endpoint event entirely.
	SkipEndpoint bool
	// StreamStatus, when non-zero, is returned on the SSE GET instead of 200.
	StreamStatus int
	// PostStatus, when non-zero, is returned on every POST instead of 202.
	PostStatus int

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	tools    []types.Tool
	toolFns  map[string]ToolFunc
	silent   map[string]bool
	requests []Request
	frames   chan string
	done     chan struct{}
	closed   bool
}

// NewServer starts a fake server.
func NewServer() *Server {
	s := &Server{
		EndpointPayload: "/message",
		handlers:        make(map[string]HandlerFunc),
		toolFns:         make(map[string]ToolFunc),
		silent:          make(map[string]bool),
		frames:          make(chan string, 64),
		done:            make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", s.handleStream)
	mux.HandleFunc("/message", s.handleMessage)
	s.Server = httptest.NewServer(mux)

	s.handlers["initialize"] = func(json.RawMessage) (interface{}, *mcp.JSONRPCError) {
		return mcp.MCPInitializeResult{
			ProtocolVersion: mcp.DefaultProtocolVersion,
			ServerInfo:      mcp.MCPServerInfo{Name: "mcptest", Version: "0.0.1"},
		}, nil
	}
	s.handlers["tools/list"] = func(json.RawMessage) (interface{}, *mcp.JSONRPCError) {
		s.mu.Lock()
		defer s.mu.Unlock()
		tools := make([]types.Tool, len(s.tools))
		copy(tools, s.tools)
		return mcp.MCPToolsListResult{Tools: tools}, nil
	}
	s.handlers["tools/call"] = s.callTool
	return s
}

// StreamURL is the URL a client should connect to.
func (s *Server) StreamURL() string {
	return s.URL + "/sse"
}

// AddTool registers a tool and its implementation.
func (s *Server) AddTool(tool types.Tool, fn ToolFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, tool)
	s.toolFns[tool.Name] = fn
}

// Handle replaces the handler for method.
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Silence makes the server accept requests for method but never reply.
func (s *Server) Silence(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent[method] = true
}

// Push writes a raw, already framed chunk onto the event stream.
func (s *Server) Push(raw string) {
	select {
	case s.frames <- raw:
	case <-s.done:
	}
}

// PushMessage writes v as a "message" event.
func (s *Server) PushMessage(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mcptest: marshal message: %v", err))
	}
	s.Push(fmt.Sprintf("event: message\ndata: %s\n\n", data))
}

// Requests returns every message received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsFor returns the received messages for method.
func (s *Server) RequestsFor(method string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// Close releases open event streams, then shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
	s.Server.Close()
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.StreamStatus != 0 {
		http.Error(w, "stream unavailable", s.StreamStatus)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if !s.SkipEndpoint {
		_, _ = fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", s.EndpointPayload)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case chunk := <-s.frames:
			if _, err := io.WriteString(w, chunk); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	handler := s.handlers[req.Method]
	silent := s.silent[req.Method]
	s.mu.Unlock()

	if s.PostStatus != 0 {
		http.Error(w, "rejected", s.PostStatus)
		return
	}
	w.WriteHeader(http.StatusAccepted)

	// Notifications get no reply.
	if len(req.ID) == 0 || silent {
		return
	}

	reply := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if handler == nil {
		reply["error"] = &mcp.JSONRPCError{Code: mcp.ErrCodeMethodNotFound, Message: "method not found: " + req.Method}
	} else if result, rpcErr := handler(req.Params); rpcErr != nil {
		reply["error"] = rpcErr
	} else {
		reply["result"] = result
	}
	go s.PushMessage(reply)
}

func (s *Server) callTool(params json.RawMessage) (interface{}, *mcp.JSONRPCError) {
	var p struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeInvalidParams, Message: err.Error()}
	}
	s.mu.Lock()
	fn := s.toolFns[p.Name]
	s.mu.Unlock()
	if fn == nil {
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeInvalidParams, Message: "unknown tool: " + p.Name}
	}
	return map[string]interface{}{
		"content": []map[string]string{{"type": "text", "text": fn(p.Arguments)}},
	}, nil
}
