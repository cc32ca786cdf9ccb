package engine_test

import (
	"context"
	"errors"
	"sync"

	"github.com/scrypster/toolpilot/internal/llm"
	"github.com/scrypster/toolpilot/pkg/types"
)

type recordedCall struct {
	Name string
	Args types.Args
}

// fakeTools is an in-memory ToolSource.
type fakeTools struct {
	mu      sync.Mutex
	tools   []types.Tool
	results map[string]string
	calls   []recordedCall
}

func newFakeTools(tools ...types.Tool) *fakeTools {
	return &fakeTools{tools: tools, results: make(map[string]string)}
}

func (f *fakeTools) Tools() []types.Tool { return f.tools }

func (f *fakeTools) CallTool(_ context.Context, name string, args types.Args) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{Name: name, Args: args})
	return f.results[name]
}

func (f *fakeTools) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

// scriptedCompleter replays responses in order and records every request.
// Once the script runs out it repeats the last entry.
type scriptedCompleter struct {
	mu       sync.Mutex
	script   []scripted
	requests []llm.ChatRequest
}

type scripted struct {
	resp *llm.ChatResponse
	err  error
}

func (s *scriptedCompleter) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Copy the turns; the loop keeps appending to its slice.
	req.Turns = append([]types.Turn(nil), req.Turns...)
	s.requests = append(s.requests, req)
	if len(s.script) == 0 {
		return nil, errors.New("script exhausted")
	}
	step := s.script[0]
	if len(s.script) > 1 {
		s.script = s.script[1:]
	}
	return step.resp, step.err
}

func (s *scriptedCompleter) GetModel() string { return "scripted" }

func (s *scriptedCompleter) Requests() []llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.ChatRequest(nil), s.requests...)
}

func stop(text string) scripted {
	return scripted{resp: &llm.ChatResponse{FinishReason: llm.FinishStop, Content: text}}
}

func callTools(calls ...llm.ToolCall) scripted {
	return scripted{resp: &llm.ChatResponse{FinishReason: llm.FinishToolCalls, ToolCalls: calls}}
}

// fakeAssistant returns a fixed output list or error.
type fakeAssistant struct {
	outputs []llm.AssistantOutput
	err     error
	prompts []string
}

func (f *fakeAssistant) Ask(_ context.Context, prompt string) ([]llm.AssistantOutput, error) {
	f.prompts = append(f.prompts, prompt)
	return f.outputs, f.err
}

func weatherTool() types.Tool {
	return types.Tool{
		Name:        "GetWeather",
		Description: "Current weather conditions for a city",
		InputSchema: types.InputSchema{
			Type: "object",
			Properties: map[string]types.PropertySchema{
				"city": {Type: types.TypeList{"string"}},
			},
			Required: []string{"city"},
		},
	}
}

func topAgentTool() types.Tool {
	return types.Tool{
		Name:        "GetTopAgent",
		Description: "Returns the best performing sales agent this month",
		InputSchema: types.InputSchema{Type: "object"},
	}
}
