// Package engine answers natural-language questions with the tools of an
// MCP session, either by letting a function-calling model drive the tools
// or by delegating to a hosted assistant with a local heuristic fallback.
package engine

import (
	"context"
	"fmt"

	"github.com/scrypster/toolpilot/internal/config"
	"github.com/scrypster/toolpilot/internal/llm"
	"github.com/scrypster/toolpilot/pkg/types"
)

// Question is one user question plus optional caller identity.
type Question struct {
	Prompt   string
	UserID   string
	UserRole string
}

// Answer is the outcome of one exchange. Text is always a natural-language
// string, never a raw error.
type Answer struct {
	ExchangeID string
	Strategy   string
	Text       string
	ToolCalls  int
}

// Answerer answers questions. Implementations never fail; expected
// absences and errors become one of the Msg* answers.
type Answerer interface {
	Answer(ctx context.Context, q Question) Answer
}

// ToolSource is the tool side of an MCP session. *mcp.Client implements it.
type ToolSource interface {
	Tools() []types.Tool
	CallTool(ctx context.Context, name string, args types.Args) string
}

// Option configures an Answerer.
type Option func(*options)

type options struct {
	stripNewlines bool
	onEvent       EventFunc
}

// WithStripNewlines flattens answers onto one line for constrained displays.
func WithStripNewlines(strip bool) Option {
	return func(o *options) { o.stripNewlines = strip }
}

// WithEventHandler registers a callback for exchange progress events.
func WithEventHandler(fn EventFunc) Option {
	return func(o *options) { o.onEvent = fn }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewAnswerer picks the answering strategy. With "auto", a configured model
// selects function calling and its absence selects delegation. completer
// and assistant may be nil.
func NewAnswerer(cfg config.AnswerConfig, tools ToolSource, completer llm.ChatCompleter, assistant llm.Assistant, opts ...Option) (Answerer, error) {
	opts = append([]Option{WithStripNewlines(cfg.StripNewlines)}, opts...)

	switch cfg.Strategy {
	case config.StrategyFunctionCalling:
		return NewFunctionCalling(tools, completer, opts...), nil
	case config.StrategyDelegated:
		return NewDelegated(tools, assistant, opts...), nil
	case config.StrategyAuto, "":
		if completer != nil {
			return NewFunctionCalling(tools, completer, opts...), nil
		}
		return NewDelegated(tools, assistant, opts...), nil
	default:
		return nil, fmt.Errorf("unknown answer strategy %q", cfg.Strategy)
	}
}

// NewFromConfig builds the configured model and assistant clients and
// returns the answerer NewAnswerer selects for them.
func NewFromConfig(cfg *config.Config, tools ToolSource, opts ...Option) (Answerer, error) {
	completer, err := llm.NewChatCompleter(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completer: %w", err)
	}
	return NewAnswerer(cfg.Answer, tools, completer, llm.NewAssistant(cfg.Assistant), opts...)
}
