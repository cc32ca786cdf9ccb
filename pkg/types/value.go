package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind enumerates the closed set of argument value shapes.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	// KindRaw carries a nested array or object verbatim. Tools occasionally
	// declare composite parameters; the orchestration layer never inspects
	// them, it only forwards them.
	KindRaw
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Value is a single tool argument value.
type Value struct {
	Kind ValueKind
	str  string
	num  json.Number
	b    bool
	raw  json.RawMessage
}

// String builds a string value.
func String(s string) Value { return Value{Kind: KindString, str: s} }

// Number builds a numeric value from a float.
func Number(f float64) Value {
	return Value{Kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'f', -1, 64))}
}

// Bool builds a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, b: b} }

// Null builds a null value.
func Null() Value { return Value{Kind: KindNull} }

// Raw wraps an already-encoded JSON array or object.
func Raw(data json.RawMessage) Value {
	return Value{Kind: KindRaw, raw: append(json.RawMessage(nil), data...)}
}

// Str returns the string payload and whether the value is a string.
func (v Value) Str() (string, bool) { return v.str, v.Kind == KindString }

// Float returns the numeric payload and whether the value is a number.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	return f, err == nil
}

// Boolean returns the boolean payload and whether the value is a bool.
func (v Value) Boolean() (bool, bool) { return v.b, v.Kind == KindBool }

// MarshalJSON encodes the value as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.num.String()), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindRaw:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON value into the closed variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty JSON value")
	}
	switch data[0] {
	case 'n':
		*v = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '[', '{':
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON value")
		}
		*v = Raw(data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Value{Kind: KindNumber, num: n}
	}
	return nil
}

// Args is the argument object of a tool call.
type Args map[string]Value

// ParseArgs decodes a serialized JSON argument object. An empty string is
// treated as an empty object, which is what models send for
// parameterless tools.
func ParseArgs(serialized string) (Args, error) {
	if len(bytes.TrimSpace([]byte(serialized))) == 0 {
		return Args{}, nil
	}
	var args Args
	if err := json.Unmarshal([]byte(serialized), &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

// Encode returns the JSON object form of the arguments.
func (a Args) Encode() string {
	if len(a) == 0 {
		return "{}"
	}
	data, err := json.Marshal(a)
	if err != nil {
		return "{}"
	}
	return string(data)
}
