package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/toolpilot/internal/engine"
	"github.com/scrypster/toolpilot/web/handlers"
)

func upgradeRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return req
}

func TestEventHub_ValidatesOrigin(t *testing.T) {
	hub := handlers.NewEventHub("localhost:6464", "127.0.0.1:6464")
	defer hub.Stop()

	for _, origin := range []string{"http://evil.com", "http://localhost:6363", "https://127.0.0.1:9999"} {
		w := httptest.NewRecorder()
		hub.ServeHTTP(w, upgradeRequest(origin))

		assert.Equal(t, http.StatusForbidden, w.Code, origin)
		assert.Contains(t, w.Body.String(), "Forbidden")
	}
}

func TestEventHub_PublishReachesSubscribers(t *testing.T) {
	hub := handlers.NewEventHub()
	go hub.Run()
	defer hub.Stop()

	received := make(chan []byte, 1)
	hub.Register(&handlers.MockClient{SendChan: received})

	hub.Publish(engine.Event{Kind: engine.KindToolCall, ExchangeID: "ex-9", Tool: "GetWeather"})

	select {
	case msg := <-received:
		var envelope struct {
			Type string       `json:"type"`
			Data engine.Event `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &envelope))
		assert.Equal(t, handlers.MessageTypeExchangeEvent, envelope.Type)
		assert.Equal(t, engine.KindToolCall, envelope.Data.Kind)
		assert.Equal(t, "ex-9", envelope.Data.ExchangeID)
		assert.Equal(t, "GetWeather", envelope.Data.Tool)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for published event")
	}
}

func TestEventHub_DropsSlowSubscriber(t *testing.T) {
	hub := handlers.NewEventHub()
	go hub.Run()
	defer hub.Stop()

	slow := &handlers.MockClient{SendChan: make(chan []byte)}
	hub.Register(slow)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(engine.Event{Kind: engine.KindAnswered})

	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-slow.SendChan
	assert.False(t, open, "send channel is closed when the subscriber is dropped")
}

func TestEventHub_LiveConnection(t *testing.T) {
	hub := handlers.NewEventHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(engine.Event{Kind: engine.KindExchangeStarted, ExchangeID: "ex-live"})

	_, data, err := conn.Read(ctx) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	assert.Contains(t, string(data), `"exchange_id":"ex-live"`)
	assert.Contains(t, string(data), `"type":"exchange_event"`)
}
