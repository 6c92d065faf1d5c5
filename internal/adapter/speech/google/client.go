package google

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/speech/v1"
	"google.golang.org/api/texttospeech/v1"

	"github.com/seu-repo/mirror-voice/pkg/config"
)

// ErrNoAudio is returned when synthesis yields no audio.
var ErrNoAudio = errors.New("google: synthesis returned no audio")

// Client implements speech recognition and synthesis with the Google Cloud
// Speech-to-Text and Text-to-Speech REST APIs.
type Client struct {
	stt *speech.Service
	tts *texttospeech.Service
	cfg config.SpeechConfig
	log *zap.Logger
}

// NewClient creates both services. Without an API key the services use
// application default credentials. Extra options are appended last.
func NewClient(ctx context.Context, cfg config.SpeechConfig, log *zap.Logger, extra ...option.ClientOption) (*Client, error) {
	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	opts = append(opts, extra...)

	stt, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: create speech service: %w", err)
	}
	tts, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: create text-to-speech service: %w", err)
	}

	log.Info("Google speech services initialized",
		zap.String("language", cfg.LanguageCode),
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Bool("api_key", cfg.APIKey != ""),
	)

	return &Client{stt: stt, tts: tts, cfg: cfg, log: log}, nil
}

// Transcribe recognizes 16-bit linear PCM audio. Multiple results are joined
// with newlines using the top alternative of each.
func (c *Client) Transcribe(ctx context.Context, audio []byte, sampleRate int) (string, error) {
	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(sampleRate),
			LanguageCode:    c.cfg.LanguageCode,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audio),
		},
	}

	resp, err := c.stt.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google: recognize: %w", err)
	}

	lines := make([]string, 0, len(resp.Results))
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		lines = append(lines, result.Alternatives[0].Transcript)
	}
	return strings.Join(lines, "\n"), nil
}

// Synthesize renders text with the configured voice.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: c.cfg.LanguageCode,
			Name:         c.cfg.VoiceName,
			SsmlGender:   c.cfg.VoiceGender,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: c.cfg.AudioEncoding,
		},
	}

	resp, err := c.tts.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google: synthesize: %w", err)
	}
	if resp.AudioContent == "" {
		return nil, ErrNoAudio
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("google: decode audio content: %w", err)
	}
	return audio, nil
}
