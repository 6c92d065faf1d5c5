package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
	"github.com/seu-repo/mirror-voice/internal/observability/telemetry"
)

// ErrBroadcastQueueFull is returned when the hub cannot accept another event.
var ErrBroadcastQueueFull = errors.New("websocket: broadcast queue full")

const (
	sendBuffer      = 64
	broadcastBuffer = 256
	writeWait       = 10 * time.Second
)

// Hub keeps the set of connected sessions and pushes server_response
// events to all of them. Delivery is best effort: a session whose send
// buffer is full is dropped.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound frames for every client.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	mu  sync.RWMutex
	log *zap.Logger
}

type Client struct {
	id  string
	hub *Hub
	// The websocket connection.
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and fan-out until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			telemetry.ConnectedClients.Set(float64(count))
			h.log.Info("Session connected", zap.String("client_id", client.id), zap.Int("clients", count))
		case client := <-h.unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					telemetry.BroadcastFailuresTotal.Inc()
					h.log.Warn("Dropping slow session", zap.String("client_id", client.id))
					close(client.send)
					delete(h.clients, client)
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			telemetry.ConnectedClients.Set(float64(count))
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		telemetry.ConnectedClients.Set(float64(count))
		h.log.Info("Session disconnected", zap.String("client_id", client.id), zap.Int("clients", count))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	telemetry.ConnectedClients.Set(0)
}

// ClientCount returns the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues the event for every connected session without waiting
// for delivery.
func (h *Hub) Broadcast(_ context.Context, event domain.ServerResponseEvent) error {
	frame, err := json.Marshal(domain.PushEnvelope{Event: domain.EventServerResponse, Data: event})
	if err != nil {
		return fmt.Errorf("failed to marshal push envelope: %w", err)
	}

	select {
	case h.broadcast <- frame:
		return nil
	default:
		return ErrBroadcastQueueFull
	}
}

// Handler returns the fiber websocket handler for the push channel. It
// blocks until the peer disconnects.
func (h *Hub) Handler() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := &Client{
			id:   uuid.NewString(),
			hub:  h,
			conn: conn,
			send: make(chan []byte, sendBuffer),
		}
		select {
		case h.register <- client:
		case <-h.done:
			return
		}

		written := make(chan struct{})
		go func() {
			defer close(written)
			client.writePump()
		}()
		client.readPump()

		// The connection is released when the handler returns.
		<-written
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()
	for {
		// Sessions only listen; reads keep control frames flowing and detect close.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.hub.log.Debug("Write to session failed", zap.String("client_id", c.id), zap.Error(err))
			c.conn.Close()
			return
		}
	}
	// The hub closed the channel.
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
