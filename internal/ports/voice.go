package ports

import (
	"context"
	"time"

	"github.com/seu-repo/mirror-voice/internal/domain"
)

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, sampleRate int) (string, error)
}

// Synthesizer turns a response text into spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// CompletionEngine is the conversational model used by the function-calling resolver.
type CompletionEngine interface {
	Complete(ctx context.Context, messages []domain.ConversationTurn, functions []domain.FunctionSpec) (*domain.Completion, error)
}

// Broadcaster fans a completed command out to every connected session.
type Broadcaster interface {
	Broadcast(ctx context.Context, event domain.ServerResponseEvent) error
}

// Cache is a string key/value store with expiration.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
