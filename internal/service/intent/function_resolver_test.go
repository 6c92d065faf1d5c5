package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seu-repo/mirror-voice/internal/domain"
	"github.com/seu-repo/mirror-voice/internal/mocks"
)

func userTurn(text string) []domain.ConversationTurn {
	return []domain.ConversationTurn{{Role: domain.RoleUser, Content: text}}
}

func TestFunctionResolver_PlainText(t *testing.T) {
	engine := &mocks.MockCompletionEngine{
		CompleteFunc: func(ctx context.Context, messages []domain.ConversationTurn, functions []domain.FunctionSpec) (*domain.Completion, error) {
			return &domain.Completion{Text: "Hello there!"}, nil
		},
	}
	resolver := NewFunctionResolver(engine, NewRegistry(nil, newTestLogger()), time.Second, newTestLogger())

	res := resolver.Resolve(context.Background(), "hi", userTurn("hi"))

	if !res.Direct {
		t.Fatal("expected a direct reply")
	}
	if res.Reply != "Hello there!" {
		t.Errorf("expected 'Hello there!', got '%s'", res.Reply)
	}
}

func TestFunctionResolver_FunctionCall(t *testing.T) {
	var offered []domain.FunctionSpec
	engine := &mocks.MockCompletionEngine{
		CompleteFunc: func(ctx context.Context, messages []domain.ConversationTurn, functions []domain.FunctionSpec) (*domain.Completion, error) {
			offered = functions
			return &domain.Completion{
				Text: "ignored",
				Call: &domain.FunctionCall{Name: "setAlarm", Arguments: map[string]string{domain.ArgTime: "07:30"}},
			}, nil
		},
	}
	registry := NewRegistry(nil, newTestLogger())
	resolver := NewFunctionResolver(engine, registry, time.Second, newTestLogger())

	res := resolver.Resolve(context.Background(), "wake me at half seven", userTurn("wake me at half seven"))

	if res.Direct {
		t.Fatal("function calls must be served by the handler")
	}
	if res.Action.Intent != domain.IntentAlarm {
		t.Fatalf("expected alarm, got '%s'", res.Action.Intent)
	}
	if got := registry.Dispatch(res.Action); got != "Alarm set for 07:30." {
		t.Errorf("unexpected handler response '%s'", got)
	}
	if len(offered) != 4 {
		t.Errorf("expected 4 offered functions, got %d", len(offered))
	}
}

func TestFunctionResolver_Timeout(t *testing.T) {
	engine := &mocks.MockCompletionEngine{
		CompleteFunc: func(ctx context.Context, messages []domain.ConversationTurn, functions []domain.FunctionSpec) (*domain.Completion, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	resolver := NewFunctionResolver(engine, NewRegistry(nil, newTestLogger()), 20*time.Millisecond, newTestLogger())

	res := resolver.Resolve(context.Background(), "what's new", userTurn("what's new"))

	if res.Direct {
		t.Error("expected no direct reply on timeout")
	}
	if res.Action.Intent != domain.IntentUnknown {
		t.Errorf("expected unknown, got '%s'", res.Action.Intent)
	}
}

func TestFunctionResolver_DegradesToUnknown(t *testing.T) {
	tests := []struct {
		name       string
		completion *domain.Completion
		err        error
	}{
		{"engine error", nil, errors.New("quota exceeded")},
		{"nil completion", nil, nil},
		{"blank text", &domain.Completion{Text: "   "}, nil},
		{"unknown function", &domain.Completion{Call: &domain.FunctionCall{Name: "orderPizza"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mocks.MockCompletionEngine{
				CompleteFunc: func(ctx context.Context, messages []domain.ConversationTurn, functions []domain.FunctionSpec) (*domain.Completion, error) {
					return tt.completion, tt.err
				},
			}
			resolver := NewFunctionResolver(engine, NewRegistry(nil, newTestLogger()), 0, newTestLogger())

			res := resolver.Resolve(context.Background(), "hmm", userTurn("hmm"))

			if res.Direct || res.Action.Intent != domain.IntentUnknown {
				t.Errorf("expected unknown action, got %+v", res)
			}
		})
	}
}

func TestFunctionResolver_EmptyHistoryUsesTranscript(t *testing.T) {
	engine := &mocks.MockCompletionEngine{}
	resolver := NewFunctionResolver(engine, NewRegistry(nil, newTestLogger()), 0, newTestLogger())

	resolver.Resolve(context.Background(), "tell me a joke", nil)

	msgs := engine.LastMessages()
	if len(msgs) != 1 || msgs[0].Role != domain.RoleUser || msgs[0].Content != "tell me a joke" {
		t.Errorf("unexpected messages %+v", msgs)
	}
}
