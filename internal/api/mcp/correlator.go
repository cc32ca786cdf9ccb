package mcp

import (
	"strconv"
	"sync"
)

// correlator matches replies arriving on the event stream with the requests
// that were POSTed. Every pending entry is removed exactly once: by resolve
// when its reply arrives, or by remove when the caller gives up.
type correlator struct {
	mu      sync.Mutex
	nextID  int64
	pending map[string]chan Response
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[string]chan Response)}
}

// register allocates the next id and its completion slot. Ids start at 1
// and are never reused within a session.
func (c *correlator) register() (string, <-chan Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := strconv.FormatInt(c.nextID, 10)
	ch := make(chan Response, 1)
	c.pending[id] = ch
	return id, ch
}

// resolve completes the pending request with resp.ID. It reports false when
// no such request is waiting, e.g. because it already timed out; the reply
// is then dropped.
func (c *correlator) resolve(resp Response) bool {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	ch <- resp
	return true
}

// remove abandons a pending request.
func (c *correlator) remove(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// inFlight returns the number of pending requests.
func (c *correlator) inFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
