package mcp_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/toolpilot/internal/api/mcp"
)

func TestResolveEndpoint(t *testing.T) {
	transport, err := url.Parse("https://host/sse")
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"relative path", "/msg", "https://host/msg"},
		{"relative with query", "/messages?sessionId=abc", "https://host/messages?sessionId=abc"},
		{"missing leading slash", "msg", "https://host/msg"},
		{"absolute passes through", "http://other:8080/rpc", "http://other:8080/rpc"},
		{"surrounding whitespace", "  /msg  ", "https://host/msg"},
		{"query containing a URL is still relative", "/msg?next=http://x", "https://host/msg?next=http://x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mcp.ResolveEndpoint(transport, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveEndpoint_KeepsTransportPort(t *testing.T) {
	transport, err := url.Parse("http://127.0.0.1:9000/sse")
	require.NoError(t, err)
	got, err := mcp.ResolveEndpoint(transport, "/message")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/message", got)
}

func TestResolveEndpoint_Empty(t *testing.T) {
	transport, _ := url.Parse("https://host/sse")
	_, err := mcp.ResolveEndpoint(transport, "   ")
	assert.ErrorIs(t, err, mcp.ErrProtocol)
}
