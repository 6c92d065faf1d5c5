package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
)

// EventHandler receives every server_response pushed by the server.
type EventHandler func(domain.ServerResponseEvent)

// EventStream subscribes to the server push channel at /ws and reconnects
// after failures until its context is cancelled.
type EventStream struct {
	url            string
	dialer         websocket.Dialer
	reconnectDelay time.Duration
	log            *zap.Logger
}

// WebsocketURL maps an http(s) server URL to its ws(s) push endpoint.
func WebsocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func NewEventStream(serverURL string, reconnectDelay time.Duration, log *zap.Logger) (*EventStream, error) {
	wsURL, err := WebsocketURL(serverURL)
	if err != nil {
		return nil, err
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &EventStream{
		url: wsURL,
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		reconnectDelay: reconnectDelay,
		log:            log,
	}, nil
}

// Run blocks until ctx is done.
func (s *EventStream) Run(ctx context.Context, handle EventHandler) {
	for {
		err := s.listen(ctx, handle)
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("Push channel disconnected",
			zap.Error(err),
			zap.Duration("reconnect_in", s.reconnectDelay),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *EventStream) listen(ctx context.Context, handle EventHandler) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	s.log.Info("Push channel connected", zap.String("url", s.url))

	// Unblock ReadMessage on shutdown.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var envelope domain.PushEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			s.log.Debug("Ignoring malformed push frame", zap.Error(err))
			continue
		}
		if envelope.Event != domain.EventServerResponse {
			continue
		}
		handle(envelope.Data)
	}
}
