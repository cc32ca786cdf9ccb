// Package mcp implements a Model Context Protocol client over the legacy
// HTTP+SSE transport: a long-lived GET stream carries server→client JSON-RPC
// 2.0 messages, while client→server requests are POSTed to an endpoint the
// server announces on that stream.
package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/scrypster/toolpilot/pkg/types"
)

// JSONRPCRequest represents an outbound JSON-RPC 2.0 request or
// notification. Notifications leave ID empty so it is omitted on the wire.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`          // Must be "2.0"
	ID      string      `json:"id,omitempty"`     // Request ID; empty for notifications
	Method  string      `json:"method"`           // Method name
	Params  interface{} `json:"params,omitempty"` // Method parameters
}

// JSONRPCError represents a JSON-RPC 2.0 error member. It implements error
// so a failed reply can be returned directly from Send.
type JSONRPCError struct {
	Code    int             `json:"code"`           // Error code
	Message string          `json:"message"`        // Error message
	Data    json.RawMessage `json:"data,omitempty"` // Additional error data
}

func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
)

// ---------------------------------------------------------------------------
// Inbound messages
// ---------------------------------------------------------------------------

// Message is one inbound frame payload, parsed exactly once at the stream
// boundary. It is one of Response, Notification or Unparseable.
type Message interface {
	isMessage()
}

// Response is a reply correlated to an outbound request by ID.
type Response struct {
	ID     string          // Normalized decimal/text form of the reply id
	Result json.RawMessage // Result member (nil when Error is set)
	Error  *JSONRPCError   // Error member, if the request failed
}

// Notification is a server-initiated message without an id.
type Notification struct {
	Method string
	Params json.RawMessage
}

// Unparseable carries a payload that is not a JSON-RPC object. Servers
// sometimes emit plain-text diagnostics on the stream; these are logged.
type Unparseable struct {
	Raw    string
	Reason string
}

func (Response) isMessage()     {}
func (Notification) isMessage() {}
func (Unparseable) isMessage()  {}

// envelope is the superset of fields an inbound JSON-RPC object may carry.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *JSONRPCError   `json:"error"`
}

// ParseMessage classifies a frame payload. It never fails: payloads that are
// not JSON-RPC objects come back as Unparseable.
func ParseMessage(data string) Message {
	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return Unparseable{Raw: data, Reason: err.Error()}
	}

	id, hasID := normalizeID(env.ID)
	switch {
	case hasID && env.Method == "":
		return Response{ID: id, Result: env.Result, Error: env.Error}
	case env.Method != "":
		// Server→client requests carry both id and method. This client
		// answers none of them, so they are treated like notifications.
		return Notification{Method: env.Method, Params: env.Params}
	default:
		return Unparseable{Raw: data, Reason: "neither id nor method present"}
	}
}

// normalizeID renders a JSON-RPC id as text. Servers echo the id we sent
// (a string) but some echo it back as a number; both map to the same key.
func normalizeID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		return n.String(), true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// MCPInitializeParams holds the parameters this client sends with the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies this client to the server.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies the connected server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPInitializeResult is the server's reply to initialize.
type MCPInitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
	ServerInfo      MCPServerInfo   `json:"serverInfo"`
}

// MCPToolsListParams holds the optional pagination cursor for tools/list.
type MCPToolsListParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// MCPToolsListResult is the reply to tools/list.
type MCPToolsListResult struct {
	Tools      []types.Tool `json:"tools"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string     `json:"name"`
	Arguments types.Args `json:"arguments"`
}

// MCPToolCallResult is the reply to tools/call. Content entries are kept raw
// because servers are free to return non-text content blocks.
type MCPToolCallResult struct {
	Content []json.RawMessage `json:"content"`
	IsError bool              `json:"isError,omitempty"`
}
