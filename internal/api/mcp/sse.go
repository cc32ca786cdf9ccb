package mcp

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxFrameLine bounds a single SSE line. Tool results can be large JSON
// documents carried on one data: line.
const maxFrameLine = 4 * 1024 * 1024

// Frame is one dispatched Server-Sent Event.
type Frame struct {
	Event string // Event type; empty when the frame had no event: line
	Data  string // data: lines joined with "\n", trimmed
}

// FrameReader turns a line-oriented text/event-stream body into frames.
//
// Rules:
//   - "event:" sets the pending event type (remainder trimmed).
//   - "data:" appends the trimmed remainder plus "\n" to the buffer.
//   - A blank line dispatches the frame if the buffer is non-empty and
//     resets both the buffer and the event type.
//   - Any other line (comments, id:, retry:) is ignored.
type FrameReader struct {
	scanner *bufio.Scanner
	event   string
	buf     strings.Builder
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameLine)
	return &FrameReader{scanner: scanner}
}

// Next returns the next complete frame. It returns io.EOF when the stream
// ends cleanly; a partial frame left at EOF is discarded, since the server
// never terminated it.
func (fr *FrameReader) Next() (Frame, error) {
	for fr.scanner.Scan() {
		line := strings.TrimSuffix(fr.scanner.Text(), "\r")

		switch {
		case line == "":
			if fr.buf.Len() == 0 {
				continue
			}
			frame := Frame{Event: fr.event, Data: strings.TrimSpace(fr.buf.String())}
			fr.buf.Reset()
			fr.event = ""
			return frame, nil
		case strings.HasPrefix(line, "event:"):
			fr.event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			fr.buf.WriteString(strings.TrimSpace(line[len("data:"):]))
			fr.buf.WriteByte('\n')
		}
	}
	if err := fr.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("read event stream: %w", err)
	}
	return Frame{}, io.EOF
}

// ReadFrames calls fn for every frame in r until the stream ends. It
// returns nil on a clean EOF and the read error otherwise.
func ReadFrames(r io.Reader, fn func(Frame)) error {
	fr := NewFrameReader(r)
	for {
		frame, err := fr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fn(frame)
	}
}
