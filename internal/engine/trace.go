package engine

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// EventKind classifies each exchange event by type.
type EventKind string

const (
	// KindExchangeStarted is emitted when a question is accepted.
	KindExchangeStarted EventKind = "exchange_started"

	// KindCompletion is emitted after every model completion round.
	KindCompletion EventKind = "completion"

	// KindToolCall is emitted before a tool is invoked.
	KindToolCall EventKind = "tool_call"

	// KindToolResult is emitted after a tool returned its text.
	KindToolResult EventKind = "tool_result"

	// KindFallback is emitted when the delegated path gives up on the
	// assistant and switches to the heuristic matcher.
	KindFallback EventKind = "fallback"

	// KindAnswered is emitted once per exchange with the final answer.
	KindAnswered EventKind = "answered"
)

// Event is a single structured progress event of one exchange.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind `json:"kind"`

	// ExchangeID ties together all events of one question.
	ExchangeID string `json:"exchange_id"`

	// At is the wall-clock time the event was recorded.
	At time.Time `json:"at"`

	// Strategy is the answering strategy in use.
	Strategy string `json:"strategy"`

	// Iteration is the completion round, populated by the function-calling loop.
	Iteration int `json:"iteration,omitempty"`

	// Tool names the tool for tool_call and tool_result events.
	Tool string `json:"tool,omitempty"`

	// FinishReason is the model's finish reason for completion events.
	FinishReason string `json:"finish_reason,omitempty"`

	// Detail carries the answer, a truncated tool result or a fallback reason.
	Detail string `json:"detail,omitempty"`
}

// EventFunc receives exchange events. It is called synchronously on the
// answering goroutine and must not block.
type EventFunc func(Event)

// exchange is the per-question bookkeeping shared by both strategies.
type exchange struct {
	id       string
	strategy string
	onEvent  EventFunc
	recorder *Recorder
}

func newExchange(ctx context.Context, strategy string, onEvent EventFunc) *exchange {
	x := &exchange{id: uuid.New().String(), strategy: strategy, onEvent: onEvent}
	if r, ok := RecorderFromContext(ctx); ok {
		x.recorder = r
	}
	return x
}

func (x *exchange) emit(e Event) {
	if x.onEvent == nil && x.recorder == nil {
		return
	}
	e.ExchangeID = x.id
	e.Strategy = x.strategy
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if x.recorder != nil {
		x.recorder.Emit(e)
	}
	if x.onEvent != nil {
		x.onEvent(e)
	}
}

// finish emits the answered event and builds the Answer.
func (x *exchange) finish(text string, toolCalls int) Answer {
	x.emit(Event{Kind: KindAnswered, Detail: text})
	return Answer{ExchangeID: x.id, Strategy: x.strategy, Text: text, ToolCalls: toolCalls}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
