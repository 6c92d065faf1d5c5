package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/mirror-voice/internal/domain"
)

// MockTranscriber is a mock implementation of the Transcriber port
type MockTranscriber struct {
	TranscribeFunc func(ctx context.Context, audio []byte, sampleRate int) (string, error)
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, sampleRate int) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio, sampleRate)
	}
	return "", nil
}

// MockSynthesizer is a mock implementation of the Synthesizer port
type MockSynthesizer struct {
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)

	mu    sync.Mutex
	Texts []string
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	m.mu.Lock()
	m.Texts = append(m.Texts, text)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return []byte("audio:" + text), nil
}

// MockCompletionEngine is a mock implementation of the CompletionEngine port
type MockCompletionEngine struct {
	CompleteFunc func(ctx context.Context, messages []domain.ConversationTurn, functions []domain.FunctionSpec) (*domain.Completion, error)

	mu    sync.Mutex
	Calls [][]domain.ConversationTurn
}

func (m *MockCompletionEngine) Complete(ctx context.Context, messages []domain.ConversationTurn, functions []domain.FunctionSpec) (*domain.Completion, error) {
	snapshot := make([]domain.ConversationTurn, len(messages))
	copy(snapshot, messages)
	m.mu.Lock()
	m.Calls = append(m.Calls, snapshot)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages, functions)
	}
	return &domain.Completion{}, nil
}

// LastMessages returns the messages of the most recent call
func (m *MockCompletionEngine) LastMessages() []domain.ConversationTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return m.Calls[len(m.Calls)-1]
}

// MockBroadcaster records every event it is asked to deliver
type MockBroadcaster struct {
	BroadcastFunc func(ctx context.Context, event domain.ServerResponseEvent) error

	mu     sync.Mutex
	events []domain.ServerResponseEvent
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, event domain.ServerResponseEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()

	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(ctx, event)
	}
	return nil
}

// Events returns a copy of the delivered events
func (m *MockBroadcaster) Events() []domain.ServerResponseEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ServerResponseEvent, len(m.events))
	copy(out, m.events)
	return out
}
