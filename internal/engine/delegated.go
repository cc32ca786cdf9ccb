package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/scrypster/toolpilot/internal/llm"
)

// StrategyDelegated names the delegated strategy in answers and events.
const StrategyDelegated = "delegated"

// minOutputLength is the content length an assistant output entry must
// exceed to be used when no tool entry is present.
const minOutputLength = 10

// Delegated forwards questions to a hosted assistant and falls back to the
// heuristic matcher when the assistant is missing or fails.
type Delegated struct {
	tools     ToolSource
	assistant llm.Assistant
	opts      options
}

// NewDelegated creates the delegated answerer. assistant may be nil, in
// which case every question goes straight to the heuristic matcher.
func NewDelegated(tools ToolSource, assistant llm.Assistant, opts ...Option) *Delegated {
	return &Delegated{tools: tools, assistant: assistant, opts: buildOptions(opts)}
}

// Answer asks the assistant, or the heuristic matcher when that fails.
func (d *Delegated) Answer(ctx context.Context, q Question) Answer {
	x := newExchange(ctx, StrategyDelegated, d.opts.onEvent)
	x.emit(Event{Kind: KindExchangeStarted, Detail: q.Prompt})

	if d.assistant == nil {
		x.emit(Event{Kind: KindFallback, Detail: "no assistant configured"})
		return d.heuristic(ctx, x, q.Prompt)
	}

	outputs, err := d.assistant.Ask(ctx, WithIdentity(q))
	if err != nil {
		log.Printf("exchange %s: assistant failed, using heuristic matcher: %v", x.id, err)
		x.emit(Event{Kind: KindFallback, Detail: err.Error()})
		return d.heuristic(ctx, x, q.Prompt)
	}

	text, ok := SelectOutput(outputs)
	if !ok {
		return x.finish(MsgNoResponseContent, 0)
	}
	if ContainsInvalidOutput(text) {
		log.Printf("exchange %s: discarding assistant output that looks like leaked credentials or identity", x.id)
		return x.finish(MsgNoResponseContent, 0)
	}
	return x.finish(Sanitize(text, d.opts.stripNewlines), 0)
}

func (d *Delegated) heuristic(ctx context.Context, x *exchange, prompt string) Answer {
	if d.tools == nil {
		return x.finish(MsgNoSuitableTool, 0)
	}

	tool, score, ok := SelectTool(d.tools.Tools(), prompt)
	if !ok {
		return x.finish(MsgNoSuitableTool, 0)
	}
	args := ExtractArgs(tool, prompt)
	log.Printf("exchange %s: heuristic matcher chose %s (score %d)", x.id, tool.Name, score)

	x.emit(Event{Kind: KindToolCall, Tool: tool.Name, Detail: args.Encode()})
	result := d.tools.CallTool(ctx, tool.Name, args)
	x.emit(Event{Kind: KindToolResult, Tool: tool.Name, Detail: truncate(result, 500)})

	text := Sanitize(result, d.opts.stripNewlines)
	if text == "" {
		return x.finish(MsgNoResponseFromTool, 1)
	}
	return x.finish(text, 1)
}

// WithIdentity appends the caller identity to the prompt in the plain-text
// form the hosted assistant expects.
func WithIdentity(q Question) string {
	if q.UserID == "" && q.UserRole == "" {
		return q.Prompt
	}
	return fmt.Sprintf("%s with user_id = %s and user_role = '%s'", q.Prompt, q.UserID, q.UserRole)
}

// SelectOutput picks the assistant output to answer with: the first entry
// with role "tool", else the first whose text is longer than ten
// characters. It reports false when no entry qualifies.
func SelectOutput(outputs []llm.AssistantOutput) (string, bool) {
	for _, out := range outputs {
		if out.Role == "tool" {
			text := OutputText(out.Content)
			return text, strings.TrimSpace(text) != ""
		}
	}
	for _, out := range outputs {
		if text := OutputText(out.Content); len(text) > minOutputLength {
			return text, true
		}
	}
	return "", false
}

type textPart struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

// OutputText flattens an output entry's content. Strings are used as is,
// unless they hold a JSON list of text parts; lists of {type, text} parts
// are joined with spaces.
func OutputText(content json.RawMessage) string {
	if len(content) == 0 || string(content) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		if joined, ok := joinTextParts([]byte(strings.TrimSpace(s))); ok {
			return joined
		}
		return s
	}
	if joined, ok := joinTextParts(content); ok {
		return joined
	}
	return string(content)
}

func joinTextParts(data []byte) (string, bool) {
	if len(data) == 0 || data[0] != '[' {
		return "", false
	}
	var parts []textPart
	if err := json.Unmarshal(data, &parts); err != nil || len(parts) == 0 {
		return "", false
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Text == nil {
			return "", false
		}
		texts = append(texts, *p.Text)
	}
	return strings.Join(texts, " "), true
}
