package speech

import (
	"context"
	"strings"
)

// TextTranscriber treats uploaded bytes as UTF-8 text. It backs the mock
// speech provider used for local development without cloud credentials.
type TextTranscriber struct{}

func (TextTranscriber) Transcribe(_ context.Context, audio []byte, _ int) (string, error) {
	return strings.TrimSpace(string(audio)), nil
}

// SilentSynthesizer returns no audio; the client displays the text instead.
type SilentSynthesizer struct{}

func (SilentSynthesizer) Synthesize(context.Context, string) ([]byte, error) {
	return []byte{}, nil
}
