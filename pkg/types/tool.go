// Package types holds the data model shared by the MCP client, the LLM
// clients and the orchestration engine: tool descriptions, argument values
// and conversation turns.
package types

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Tool is a remote, callable operation announced by an MCP server in its
// tools/list reply. Tools are captured once per session and never mutated.
type Tool struct {
	Name        string      `json:"name"`                  // Tool name as the server knows it
	Description string      `json:"description,omitempty"` // Human-readable description
	InputSchema InputSchema `json:"inputSchema"`           // Parameter schema
}

// InputSchema is the parameter description of a Tool.
type InputSchema struct {
	Type       string                    `json:"type,omitempty"`       // Normally "object"
	Properties map[string]PropertySchema `json:"properties,omitempty"` // Parameter name → schema
	Required   []string                  `json:"required,omitempty"`   // Required parameter names
}

// PropertySchema describes a single tool parameter.
type PropertySchema struct {
	Type        TypeList        `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Format      string          `json:"format,omitempty"`
	Default     json.RawMessage `json:"default,omitempty"`
}

// UnmarshalJSON decodes a schema leniently. Members of an unexpected shape
// are dropped, and a schema that is not an object (JSON Schema's boolean
// form, for instance) decodes to the empty schema.
func (s *InputSchema) UnmarshalJSON(data []byte) error {
	*s = InputSchema{}
	var raw struct {
		Type       json.RawMessage            `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []json.RawMessage          `json:"required"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	s.Type = lenientString(raw.Type)
	if len(raw.Properties) > 0 {
		s.Properties = make(map[string]PropertySchema, len(raw.Properties))
		for name, propData := range raw.Properties {
			var prop PropertySchema
			_ = prop.UnmarshalJSON(propData)
			s.Properties[name] = prop
		}
	}
	for _, r := range raw.Required {
		if name := lenientString(r); name != "" {
			s.Required = append(s.Required, name)
		}
	}
	return nil
}

// UnmarshalJSON decodes a property schema leniently, in the same way as
// InputSchema. A "default" of null is treated as absent.
func (p *PropertySchema) UnmarshalJSON(data []byte) error {
	*p = PropertySchema{}
	var raw struct {
		Type        json.RawMessage `json:"type"`
		Description json.RawMessage `json:"description"`
		Format      json.RawMessage `json:"format"`
		Default     json.RawMessage `json:"default"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	_ = p.Type.UnmarshalJSON(raw.Type)
	p.Description = lenientString(raw.Description)
	p.Format = lenientString(raw.Format)
	if d := bytes.TrimSpace(raw.Default); len(d) > 0 && !bytes.Equal(d, []byte("null")) {
		p.Default = append(json.RawMessage(nil), d...)
	}
	return nil
}

// lenientString returns data as a string, or "" when it is not a JSON string.
func lenientString(data json.RawMessage) string {
	var v string
	if len(data) == 0 || json.Unmarshal(data, &v) != nil {
		return ""
	}
	return v
}

// PrimaryType returns the first non-null type tag, or "string" when the
// property declares no usable tag.
func (p PropertySchema) PrimaryType() string {
	return p.Type.Primary()
}

// PropertyNames returns the declared parameter names in sorted order so that
// callers iterating properties behave deterministically.
func (s InputSchema) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRequired reports whether name is listed in the schema's required set.
func (s InputSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// TypeList is an ordered list of JSON-schema type tags. MCP servers send
// either a single string ("string") or a list (["string","null"]) for
// nullable unions; both decode into a TypeList.
type TypeList []string

// UnmarshalJSON accepts a JSON string or a list of strings. Any other
// shape, and any non-string list element, is dropped.
func (t *TypeList) UnmarshalJSON(data []byte) error {
	*t = nil

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*t = TypeList{single}
		}
		return nil
	}

	var many []json.RawMessage
	if err := json.Unmarshal(data, &many); err != nil {
		return nil
	}
	for _, elem := range many {
		if tag := lenientString(elem); tag != "" {
			*t = append(*t, tag)
		}
	}
	return nil
}

// Primary returns the first tag that is not "null", defaulting to "string".
func (t TypeList) Primary() string {
	for _, tag := range t {
		if tag != "" && tag != "null" {
			return tag
		}
	}
	return "string"
}

// Nullable reports whether "null" is one of the tags.
func (t TypeList) Nullable() bool {
	for _, tag := range t {
		if tag == "null" {
			return true
		}
	}
	return false
}
