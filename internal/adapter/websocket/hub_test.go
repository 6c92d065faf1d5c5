package websocket

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
)

func startHubServer(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", fiberws.New(hub.Handler()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)

	t.Cleanup(func() {
		cancel()
		_ = app.Shutdown()
	})
	return hub, "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *gorilla.Conn) domain.PushEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env domain.PushEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_BroadcastReachesEverySession(t *testing.T) {
	hub, url := startHubServer(t)
	a := dial(t, url)
	b := dial(t, url)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	event := domain.ServerResponseEvent{Command: "tell me the forecast", Response: "The weather is currently sunny with a temperature of 21°C."}
	require.NoError(t, hub.Broadcast(context.Background(), event))

	for _, conn := range []*gorilla.Conn{a, b} {
		env := readEnvelope(t, conn)
		assert.Equal(t, "server_response", env.Event)
		assert.Equal(t, event, env.Data)
	}
}

func TestHub_PreservesPublisherOrder(t *testing.T) {
	hub, url := startHubServer(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	for _, cmd := range []string{"one", "two", "three"} {
		require.NoError(t, hub.Broadcast(context.Background(), domain.ServerResponseEvent{Command: cmd}))
	}

	for _, want := range []string{"one", "two", "three"} {
		assert.Equal(t, want, readEnvelope(t, conn).Data.Command)
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, url := startHubServer(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithoutRunnerFillsQueue(t *testing.T) {
	hub := NewHub(zap.NewNop())

	var err error
	for i := 0; i <= broadcastBuffer; i++ {
		err = hub.Broadcast(context.Background(), domain.ServerResponseEvent{Command: "x"})
	}

	assert.ErrorIs(t, err, ErrBroadcastQueueFull)
}
