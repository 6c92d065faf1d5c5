package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/mocks"
)

func TestCachedSynthesizer_HitSkipsBackend(t *testing.T) {
	backend := &mocks.MockSynthesizer{}
	cache := mocks.NewMockCache()
	synth := NewCachedSynthesizer(backend, cache, time.Hour, "en-US/NEUTRAL", zap.NewNop())

	first, err := synth.Synthesize(context.Background(), "Alarm set for 7:30.")
	require.NoError(t, err)
	second, err := synth.Synthesize(context.Background(), "Alarm set for 7:30.")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"Alarm set for 7:30."}, backend.Texts)
	assert.Equal(t, 1, cache.Len())
}

func TestCachedSynthesizer_VoiceIsPartOfKey(t *testing.T) {
	backend := &mocks.MockSynthesizer{}
	cache := mocks.NewMockCache()

	a := NewCachedSynthesizer(backend, cache, time.Hour, "voice-a", zap.NewNop())
	b := NewCachedSynthesizer(backend, cache, time.Hour, "voice-b", zap.NewNop())

	_, _ = a.Synthesize(context.Background(), "hi")
	_, _ = b.Synthesize(context.Background(), "hi")

	assert.Len(t, backend.Texts, 2)
	assert.Equal(t, 2, cache.Len())
}

func TestCachedSynthesizer_BackendErrorNotCached(t *testing.T) {
	backend := &mocks.MockSynthesizer{
		SynthesizeFunc: func(ctx context.Context, text string) ([]byte, error) {
			return nil, errors.New("tts down")
		},
	}
	cache := mocks.NewMockCache()
	synth := NewCachedSynthesizer(backend, cache, time.Hour, "", zap.NewNop())

	_, err := synth.Synthesize(context.Background(), "hello")

	assert.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestCachedSynthesizer_CacheFailureIsIgnored(t *testing.T) {
	backend := &mocks.MockSynthesizer{}
	cache := mocks.NewMockCache()
	cache.GetFunc = func(ctx context.Context, key string) (string, error) {
		return "", errors.New("redis: connection refused")
	}
	cache.SetFunc = func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
		return errors.New("redis: connection refused")
	}
	synth := NewCachedSynthesizer(backend, cache, time.Hour, "", zap.NewNop())

	audio, err := synth.Synthesize(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []byte("audio:hello"), audio)
}

func TestCachedSynthesizer_CorruptEntryIsReplaced(t *testing.T) {
	backend := &mocks.MockSynthesizer{}
	cache := mocks.NewMockCache()
	synth := NewCachedSynthesizer(backend, cache, time.Hour, "", zap.NewNop())
	require.NoError(t, cache.Set(context.Background(), synth.key("hello"), "%%%not-base64", time.Hour))

	audio, err := synth.Synthesize(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []byte("audio:hello"), audio)
	assert.Len(t, backend.Texts, 1)
}

func TestTextTranscriber(t *testing.T) {
	text, err := TextTranscriber{}.Transcribe(context.Background(), []byte("  tell me the forecast\n"), 16000)

	require.NoError(t, err)
	assert.Equal(t, "tell me the forecast", text)
}
