package intent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
	"github.com/seu-repo/mirror-voice/internal/observability/telemetry"
	"github.com/seu-repo/mirror-voice/internal/ports"
)

// FunctionResolver asks a completion engine to either answer directly or
// pick one of the registry's functions.
type FunctionResolver struct {
	engine   ports.CompletionEngine
	registry *Registry
	timeout  time.Duration
	log      *zap.Logger
}

// NewFunctionResolver creates the resolver. A zero timeout leaves the
// deadline to the caller's context.
func NewFunctionResolver(engine ports.CompletionEngine, registry *Registry, timeout time.Duration, log *zap.Logger) *FunctionResolver {
	return &FunctionResolver{
		engine:   engine,
		registry: registry,
		timeout:  timeout,
		log:      log,
	}
}

func (r *FunctionResolver) Name() string     { return "function" }
func (r *FunctionResolver) UsesMemory() bool { return true }

// Resolve sends the history (which already ends with the current user turn)
// to the engine. An empty history is replaced by the transcript alone.
func (r *FunctionResolver) Resolve(ctx context.Context, transcript string, history []domain.ConversationTurn) Resolution {
	if len(history) == 0 {
		history = []domain.ConversationTurn{{Role: domain.RoleUser, Content: transcript}}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	completion, err := r.engine.Complete(ctx, history, r.registry.Functions())
	if err != nil {
		telemetry.CompletionFailuresTotal.Inc()
		r.log.Warn("Completion failed, falling back to unknown intent",
			zap.String("transcript", transcript),
			zap.Error(err),
		)
		return Resolution{Action: domain.UnknownAction()}
	}

	switch {
	case completion == nil:
		telemetry.CompletionFailuresTotal.Inc()
		r.log.Warn("Completion returned nothing", zap.String("transcript", transcript))
		return Resolution{Action: domain.UnknownAction()}
	case completion.Call != nil:
		action := r.registry.ActionForCall(*completion.Call)
		r.log.Debug("Completion requested function",
			zap.String("function", completion.Call.Name),
			zap.String("intent", string(action.Intent)),
		)
		return Resolution{Action: action}
	case strings.TrimSpace(completion.Text) != "":
		return Resolution{
			Action: domain.ActionRequest{Intent: domain.IntentUnknown, Arguments: map[string]string{}},
			Reply:  completion.Text,
			Direct: true,
		}
	default:
		telemetry.CompletionFailuresTotal.Inc()
		r.log.Warn("Completion had neither text nor function call", zap.String("transcript", transcript))
		return Resolution{Action: domain.UnknownAction()}
	}
}
