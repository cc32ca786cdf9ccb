package mcp

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// ResolveEndpoint turns the payload of an "endpoint" event into an absolute
// URL. A payload that already carries a scheme passes through unchanged;
// anything else is prefixed with the transport's scheme://host.
func ResolveEndpoint(transport *url.URL, payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", fmt.Errorf("%w: empty endpoint payload", ErrProtocol)
	}
	if hasScheme(payload) {
		return payload, nil
	}
	if transport == nil || transport.Scheme == "" || transport.Host == "" {
		return "", fmt.Errorf("%w: cannot resolve relative endpoint %q without a transport host", ErrProtocol, payload)
	}
	if !strings.HasPrefix(payload, "/") {
		payload = "/" + payload
	}
	return transport.Scheme + "://" + transport.Host + payload, nil
}

// hasScheme reports whether s starts with an RFC 3986 scheme followed by
// "://".
func hasScheme(s string) bool {
	idx := strings.Index(s, "://")
	if idx <= 0 {
		return false
	}
	for i, r := range s[:idx] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// endpointGate holds the resolved message endpoint and releases waiters
// once, on the first endpoint event. Later endpoint events overwrite the
// stored value but do not re-signal.
type endpointGate struct {
	mu       sync.RWMutex
	endpoint string
	once     sync.Once
	ready    chan struct{}
}

func newEndpointGate() *endpointGate {
	return &endpointGate{ready: make(chan struct{})}
}

func (g *endpointGate) set(endpoint string) {
	g.mu.Lock()
	g.endpoint = endpoint
	g.mu.Unlock()
	g.once.Do(func() { close(g.ready) })
}

func (g *endpointGate) get() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.endpoint
}

// done is closed once an endpoint has been stored.
func (g *endpointGate) done() <-chan struct{} {
	return g.ready
}
