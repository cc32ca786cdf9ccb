package engine

import (
	"context"
	"log"
	"strings"

	"github.com/scrypster/toolpilot/internal/api/mcp"
	"github.com/scrypster/toolpilot/internal/llm"
	"github.com/scrypster/toolpilot/pkg/types"
)

// StrategyFunctionCalling names the function-calling strategy in answers
// and events.
const StrategyFunctionCalling = "function-calling"

// FunctionCalling lets a function-calling model drive the session's tools
// for at most MaxIterations completion rounds per question.
type FunctionCalling struct {
	tools     ToolSource
	completer llm.ChatCompleter
	opts      options
}

// NewFunctionCalling creates the function-calling answerer. tools and
// completer may be nil, in which case every answer is MsgNotAvailable.
func NewFunctionCalling(tools ToolSource, completer llm.ChatCompleter, opts ...Option) *FunctionCalling {
	return &FunctionCalling{tools: tools, completer: completer, opts: buildOptions(opts)}
}

// Answer runs one bounded exchange. Each call starts a fresh history seeded
// with the prompt.
func (f *FunctionCalling) Answer(ctx context.Context, q Question) Answer {
	x := newExchange(ctx, StrategyFunctionCalling, f.opts.onEvent)
	x.emit(Event{Kind: KindExchangeStarted, Detail: q.Prompt})

	var tools []types.Tool
	if f.tools != nil {
		tools = f.tools.Tools()
	}
	if len(tools) == 0 || f.completer == nil {
		log.Printf("exchange %s: no tools or no model configured (tools=%d)", x.id, len(tools))
		return x.finish(MsgNotAvailable, 0)
	}

	turns := []types.Turn{types.UserTurn(q.Prompt)}
	functions := llm.FunctionsFromTools(tools)
	toolCalls := 0

	for iteration := 1; iteration <= MaxIterations; iteration++ {
		resp, err := f.completer.Chat(ctx, llm.ChatRequest{Turns: turns, Functions: functions})
		if err != nil {
			log.Printf("exchange %s: completion %d failed: %v", x.id, iteration, err)
			break
		}
		x.emit(Event{Kind: KindCompletion, Iteration: iteration, FinishReason: resp.FinishReason})

		if resp.FinishReason == llm.FinishStop && strings.TrimSpace(resp.Content) != "" {
			return x.finish(Sanitize(resp.Content, f.opts.stripNewlines), toolCalls)
		}
		if resp.FinishReason != llm.FinishToolCalls || len(resp.ToolCalls) == 0 {
			log.Printf("exchange %s: completion %d ended with finish reason %q, giving up", x.id, iteration, resp.FinishReason)
			break
		}

		// Record the model's requests before any results, then run them in
		// the order given.
		requests := make([]types.ToolCallRequest, len(resp.ToolCalls))
		argErrs := make([]error, len(resp.ToolCalls))
		for i, call := range resp.ToolCalls {
			args, err := types.ParseArgs(call.Arguments)
			requests[i] = types.ToolCallRequest{ID: call.ID, Name: call.Name, Arguments: args}
			argErrs[i] = err
		}
		turns = append(turns, types.AssistantTurn(resp.Content, requests))

		for i, req := range requests {
			x.emit(Event{Kind: KindToolCall, Iteration: iteration, Tool: req.Name, Detail: req.Arguments.Encode()})

			var result string
			if argErrs[i] != nil {
				log.Printf("exchange %s: %s called with unparseable arguments: %v", x.id, req.Name, argErrs[i])
				result = mcp.ToolErrorText(mcp.ToolErrArguments, argErrs[i])
			} else {
				result = f.tools.CallTool(ctx, req.Name, req.Arguments)
				toolCalls++
			}

			x.emit(Event{Kind: KindToolResult, Iteration: iteration, Tool: req.Name, Detail: truncate(result, 500)})
			turns = append(turns, types.ToolResultTurn(req.ID, result))
		}
	}

	return x.finish(MsgFallbackApology, toolCalls)
}
