package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
	"github.com/seu-repo/mirror-voice/internal/mocks"
)

func TestEventRelay_BroadcastPublishesJSON(t *testing.T) {
	mq := mocks.NewMockMessageQueue()
	relay := NewEventRelay(mq, "mirror.server_response", zap.NewNop())

	err := relay.Broadcast(context.Background(), domain.ServerResponseEvent{Command: "hi", Response: "hello"})

	require.NoError(t, err)
	msgs := mq.GetPublishedMessages("mirror.server_response")
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"command":"hi","response":"hello"}`, string(msgs[0]))
}

func TestEventRelay_ForwardDeliversToSink(t *testing.T) {
	mq := mocks.NewMockMessageQueue()
	relay := NewEventRelay(mq, "mirror.server_response", zap.NewNop())
	sink := &mocks.MockBroadcaster{}
	require.NoError(t, relay.Forward(sink))

	require.NoError(t, relay.Broadcast(context.Background(), domain.ServerResponseEvent{Command: "a", Response: "b"}))
	require.NoError(t, relay.Broadcast(context.Background(), domain.ServerResponseEvent{Command: "c", Response: "d"}))

	assert.Equal(t, []domain.ServerResponseEvent{
		{Command: "a", Response: "b"},
		{Command: "c", Response: "d"},
	}, sink.Events())
}

func TestEventRelay_PublishError(t *testing.T) {
	mq := mocks.NewMockMessageQueue()
	mq.PublishFunc = func(topic string, data []byte) error {
		return errors.New("nats: connection closed")
	}
	relay := NewEventRelay(mq, "s", zap.NewNop())

	err := relay.Broadcast(context.Background(), domain.ServerResponseEvent{})

	assert.Error(t, err)
}

func TestEventRelay_ForwardRejectsGarbage(t *testing.T) {
	mq := mocks.NewMockMessageQueue()
	relay := NewEventRelay(mq, "s", zap.NewNop())
	sink := &mocks.MockBroadcaster{}
	require.NoError(t, relay.Forward(sink))

	handler := mq.Subscribers["s"][0]
	err := handler([]byte("not json"))

	assert.Error(t, err)
	assert.Empty(t, sink.Events())
}
