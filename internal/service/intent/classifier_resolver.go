package intent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
)

// ClassifierResolver resolves transcripts with a naive Bayes classifier
// trained on SeedCorpus and extracts arguments with keyword rules.
type ClassifierResolver struct {
	classifier *Classifier
	log        *zap.Logger
}

func NewClassifierResolver(log *zap.Logger) *ClassifierResolver {
	c := NewClassifier()
	for _, ex := range SeedCorpus {
		c.AddDocument(ex.Text, string(ex.Intent))
	}
	return &ClassifierResolver{classifier: c, log: log}
}

func (r *ClassifierResolver) Name() string     { return "classifier" }
func (r *ClassifierResolver) UsesMemory() bool { return false }

func (r *ClassifierResolver) Resolve(_ context.Context, transcript string, _ []domain.ConversationTurn) Resolution {
	return Resolution{Action: r.Classify(transcript)}
}

// Classify returns the action for a transcript without any I/O.
func (r *ClassifierResolver) Classify(transcript string) domain.ActionRequest {
	tokens := Tokenize(transcript)
	label, ok := r.classifier.Classify(tokens)
	if !ok {
		r.log.Debug("No known tokens in transcript", zap.String("transcript", transcript))
		return domain.UnknownAction()
	}

	intent := domain.Intent(label)
	args := map[string]string{}
	switch intent {
	case domain.IntentAlarm:
		if t, found := firstTime(tokens); found {
			args[domain.ArgTime] = t
		}
	case domain.IntentReminder:
		args[domain.ArgText], _ = tokensAfter(tokens, "to")
	case domain.IntentTodo:
		// Without a "list" marker the whole utterance is the item.
		item, ok := tokensAfter(tokens, "list")
		if !ok {
			item = strings.Join(tokens, " ")
		}
		args[domain.ArgItem] = item
	}

	return domain.ActionRequest{Intent: intent, Arguments: args}
}
