package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
	"github.com/seu-repo/mirror-voice/internal/ports"
)

// EventRelay fans server_response events out through the message queue so
// that sessions connected to any server instance receive them.
type EventRelay struct {
	queue   MessageQueue
	subject string
	log     *zap.Logger
}

func NewEventRelay(queue MessageQueue, subject string, log *zap.Logger) *EventRelay {
	return &EventRelay{queue: queue, subject: subject, log: log}
}

// Broadcast publishes the event on the relay subject.
func (r *EventRelay) Broadcast(_ context.Context, event domain.ServerResponseEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.queue.Publish(r.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Forward delivers every event received on the relay subject to sink,
// typically the local websocket hub.
func (r *EventRelay) Forward(sink ports.Broadcaster) error {
	return r.queue.Subscribe(r.subject, func(data []byte) error {
		var event domain.ServerResponseEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("invalid relayed event: %w", err)
		}
		return sink.Broadcast(context.Background(), event)
	})
}
