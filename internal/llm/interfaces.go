package llm

import (
	"context"
	"encoding/json"

	"github.com/scrypster/toolpilot/pkg/types"
)

// Finish reasons reported by chat completions.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// ChatRequest is one completion request over a full turn history.
type ChatRequest struct {
	Turns     []types.Turn
	Functions []FunctionDefinition
}

// ChatResponse is the first choice of a completion.
type ChatResponse struct {
	FinishReason string
	Content      string
	ToolCalls    []ToolCall
}

// ToolCall is a function call requested by the model. Arguments is the
// serialized JSON object exactly as the model produced it; it may be
// malformed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ChatCompleter is the interface for LLMs that support function calling.
type ChatCompleter interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	GetModel() string
}

// AssistantOutput is one entry of a hosted assistant's output list. Content
// is kept raw because assistants return either a plain string or a list of
// typed text parts.
type AssistantOutput struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Assistant is the interface for remote hosted assistants that pick and run
// tools on their own.
type Assistant interface {
	Ask(ctx context.Context, prompt string) ([]AssistantOutput, error)
}
