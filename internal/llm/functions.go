package llm

import (
	"bytes"
	"encoding/json"

	"github.com/scrypster/toolpilot/pkg/types"
)

// FunctionDefinition is a tool as presented to a function-calling model.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  FunctionSchema `json:"parameters"`
}

// FunctionSchema is the canonical parameter schema of a function.
type FunctionSchema struct {
	Type       string                      `json:"type"`
	Properties map[string]FunctionProperty `json:"properties"`
	Required   []string                    `json:"required,omitempty"`
}

// FunctionProperty is one parameter of a function.
type FunctionProperty struct {
	Type        SchemaType      `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Format      string          `json:"format,omitempty"`
	Default     json.RawMessage `json:"default,omitempty"`
}

// SchemaType marshals as a scalar when it holds exactly one tag and as a
// list otherwise.
type SchemaType []string

// MarshalJSON implements json.Marshaler.
func (t SchemaType) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// TranslateSchema converts a tool's input schema into the canonical function
// schema. It never fails: an empty or unknown schema becomes an empty object
// schema.
func TranslateSchema(in types.InputSchema) FunctionSchema {
	out := FunctionSchema{
		Type:       in.Type,
		Properties: make(map[string]FunctionProperty, len(in.Properties)),
	}
	if out.Type == "" {
		out.Type = "object"
	}

	for name, prop := range in.Properties {
		fp := FunctionProperty{
			Description: prop.Description,
			Format:      prop.Format,
		}
		if len(prop.Type) > 0 {
			fp.Type = SchemaType(append([]string(nil), prop.Type...))
		}
		if d := bytes.TrimSpace(prop.Default); len(d) > 0 && !bytes.Equal(d, []byte("null")) {
			fp.Default = append(json.RawMessage(nil), d...)
		}
		out.Properties[name] = fp
	}

	if len(in.Required) > 0 {
		out.Required = append([]string(nil), in.Required...)
	}
	return out
}

// FunctionsFromTools translates every tool, preserving order.
func FunctionsFromTools(tools []types.Tool) []FunctionDefinition {
	defs := make([]FunctionDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, FunctionDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  TranslateSchema(tool.InputSchema),
		})
	}
	return defs
}
