package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
)

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:3000", "ws://localhost:3000/ws"},
		{"https://mirror.local/", "wss://mirror.local/ws"},
		{"http://host/api", "ws://host/api/ws"},
	}
	for _, tt := range tests {
		got, err := WebsocketURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := WebsocketURL("ftp://host")
	assert.Error(t, err)
}

func TestEventStream_DeliversServerResponses(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"other","data":{}}`))
		conn.WriteJSON(domain.PushEnvelope{
			Event: domain.EventServerResponse,
			Data:  domain.ServerResponseEvent{Command: "set alarm for 7", Response: "Alarm set for 7."},
		})
		// Hold the connection until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	stream, err := NewEventStream(srv.URL, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan domain.ServerResponseEvent, 1)
	done := make(chan struct{})
	go func() {
		stream.Run(ctx, func(ev domain.ServerResponseEvent) { received <- ev })
		close(done)
	}()

	select {
	case ev := <-received:
		assert.Equal(t, "set alarm for 7", ev.Command)
		assert.Equal(t, "Alarm set for 7.", ev.Response)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
