package mcp

import (
	"errors"
	"fmt"
)

var (
	// ErrHandshakeTimeout is returned by Connect when the server does not
	// announce its message endpoint in time. The session is unusable.
	ErrHandshakeTimeout = errors.New("mcp: handshake timed out waiting for endpoint event")

	// ErrRequestTimeout is returned by Send when no correlated reply arrives
	// on the stream in time.
	ErrRequestTimeout = errors.New("mcp: request timed out waiting for response")

	// ErrTransport matches every *TransportError via errors.Is.
	ErrTransport = errors.New("mcp: transport error")

	// ErrProtocol marks a frame whose payload could not be used. It is only
	// ever logged by the reader.
	ErrProtocol = errors.New("mcp: protocol error")

	// ErrNotConnected is returned when a request is attempted before the
	// endpoint handshake has completed.
	ErrNotConnected = errors.New("mcp: not connected")

	// ErrStreamClosed is returned by Connect when the event stream ends
	// before the endpoint handshake.
	ErrStreamClosed = errors.New("mcp: event stream closed")
)

// TransportError reports a non-success HTTP status on the event stream GET
// or on a request POST.
type TransportError struct {
	Op         string // "stream" or "post"
	URL        string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("mcp: %s %s returned status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("mcp: %s %s returned status %d", e.Op, e.URL, e.StatusCode)
}

// Is lets errors.Is(err, ErrTransport) match.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
