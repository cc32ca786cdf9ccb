package types

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one entry in the ordered history of a question/answer exchange.
// The Role selects which fields are meaningful:
//   - RoleUser: Content
//   - RoleAssistant: Content and/or ToolCalls
//   - RoleTool: ToolCallID and Content (the tool's text result)
//
// Turns are appended and never mutated.
type Turn struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCallRequest
	ToolCallID string
}

// ToolCallRequest is a request to invoke one tool, produced by the LLM or by
// the heuristic matcher.
type ToolCallRequest struct {
	ID        string // Call id assigned by the model; empty for heuristic calls
	Name      string
	Arguments Args
}

// UserTurn builds the turn that seeds an exchange.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn records a model reply, optionally carrying tool calls.
func AssistantTurn(content string, calls []ToolCallRequest) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultTurn records the text a tool returned for the call id.
func ToolResultTurn(callID, text string) Turn {
	return Turn{Role: RoleTool, ToolCallID: callID, Content: text}
}
