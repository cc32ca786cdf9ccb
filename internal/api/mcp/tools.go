package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scrypster/toolpilot/pkg/types"
)

// NoToolResult is returned by CallTool when the server replied without any
// content blocks.
const NoToolResult = "No result returned from tool."

// Error kinds used in error-shaped tool results.
const (
	ToolErrTimeout   = "timeout"
	ToolErrTransport = "transport_error"
	ToolErrRPC       = "rpc_error"
	ToolErrProtocol  = "protocol_error"
	ToolErrArguments = "invalid_arguments"
	ToolErrExecution = "tool_execution_error"
)

// ToolErrorText renders a tool failure as the JSON text payload the
// orchestration layer hands to the model in place of a result.
func ToolErrorText(kind string, err error) string {
	payload := struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}{Error: kind, Message: err.Error()}
	data, mErr := json.Marshal(payload)
	if mErr != nil {
		return fmt.Sprintf(`{"error":%q,"message":"unrenderable error"}`, kind)
	}
	return string(data)
}

// CallTool invokes one tool via tools/call and returns its text. It never
// fails: transport errors, timeouts and JSON-RPC errors all come back as an
// error-shaped JSON string so one bad call cannot abort an exchange.
func (c *Client) CallTool(ctx context.Context, name string, args types.Args) string {
	if args == nil {
		args = types.Args{}
	}
	raw, err := c.Send(ctx, "tools/call", MCPToolCallParams{Name: name, Arguments: args})
	if err != nil {
		c.logger.Printf("session %s: tools/call %s failed: %v", c.sessionID, name, err)
		return ToolErrorText(classifyToolError(err), err)
	}
	text, err := ExtractToolText(raw)
	if err != nil {
		c.logger.Printf("session %s: tools/call %s returned unusable result: %v", c.sessionID, name, err)
		return ToolErrorText(ToolErrProtocol, err)
	}
	return text
}

// ExtractToolText pulls the textual answer out of a tools/call result:
// content[0].text when present, otherwise content[0] serialized as JSON,
// otherwise NoToolResult.
func ExtractToolText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return NoToolResult, nil
	}
	var result MCPToolCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%w: decode tools/call result: %v", ErrProtocol, err)
	}
	if len(result.Content) == 0 {
		return NoToolResult, nil
	}

	first := result.Content[0]
	var block struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(first, &block); err == nil && block.Text != nil {
		return *block.Text, nil
	}
	return string(first), nil
}

func classifyToolError(err error) string {
	var rpcErr *JSONRPCError
	switch {
	case errorsIsTimeout(err):
		return ToolErrTimeout
	case errors.Is(err, ErrTransport):
		return ToolErrTransport
	case errors.As(err, &rpcErr):
		return ToolErrRPC
	case errors.Is(err, ErrProtocol):
		return ToolErrProtocol
	default:
		return ToolErrExecution
	}
}
