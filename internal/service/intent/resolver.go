package intent

import (
	"context"

	"github.com/seu-repo/mirror-voice/internal/domain"
)

// Resolution is the outcome of resolving one transcript. When Direct is set
// the resolver already produced the reply text and no handler runs.
type Resolution struct {
	Action domain.ActionRequest
	Reply  string
	Direct bool
}

// Resolver maps a transcript to an action. Implementations never fail: every
// problem degrades to the unknown action.
type Resolver interface {
	Name() string
	// UsesMemory reports whether the resolver reads the conversation history.
	UsesMemory() bool
	Resolve(ctx context.Context, transcript string, history []domain.ConversationTurn) Resolution
}
