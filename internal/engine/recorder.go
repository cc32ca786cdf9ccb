package engine

import (
	"context"
	"sync"
	"time"
)

// contextKey is an unexported type for context keys owned by this package.
type contextKey string

const recorderKey contextKey = "exchange_recorder"

// Recorder accumulates the events of the exchanges run under one context.
// It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	events    []Event
	startedAt time.Time
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{startedAt: time.Now()}
}

// Emit appends an event. It has the EventFunc signature.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in emission order.
func (r *Recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// ElapsedMS returns the time since the recorder was created, in milliseconds.
func (r *Recorder) ElapsedMS() int64 {
	return time.Since(r.startedAt).Milliseconds()
}

// WithRecorder stores a recorder in the context. Exchanges answered under
// the returned context emit to it in addition to any configured handler.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey, r)
}

// RecorderFromContext retrieves the recorder from the context.
// Returns (nil, false) if none is present.
func RecorderFromContext(ctx context.Context) (*Recorder, bool) {
	r, ok := ctx.Value(recorderKey).(*Recorder)
	return r, ok && r != nil
}
