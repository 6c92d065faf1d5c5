package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
	"github.com/seu-repo/mirror-voice/internal/mocks"
	"github.com/seu-repo/mirror-voice/internal/service/intent"
	"github.com/seu-repo/mirror-voice/internal/service/voice"
)

type staticCounter int

func (s staticCounter) ClientCount() int { return int(s) }

func newTestApp(t *testing.T, transcriber *mocks.MockTranscriber, synthesizer *mocks.MockSynthesizer) (*fiber.App, *voice.Pipeline) {
	t.Helper()
	log := zap.NewNop()
	pipeline := voice.NewPipeline(
		voice.Config{SampleRate: 16000, HistoryLimit: 10},
		intent.NewClassifierResolver(log),
		intent.NewRegistry(nil, log),
		transcriber, synthesizer, &mocks.MockBroadcaster{}, log,
	)

	app := fiber.New()
	NewVoiceHandler(pipeline, staticCounter(2), log).Register(app)
	return app, pipeline
}

func decode(t *testing.T, body io.Reader, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(v))
}

func TestStatus_BeforeAnyCommand(t *testing.T) {
	app, _ := newTestApp(t, &mocks.MockTranscriber{}, &mocks.MockSynthesizer{})

	resp, err := app.Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report domain.StatusReport
	decode(t, resp.Body, &report)
	assert.Equal(t, domain.StatusReport{Status: "OK", ConnectedClients: 2, LastProcessedCommand: ""}, report)
}

func TestProcessAudio_Success(t *testing.T) {
	transcriber := &mocks.MockTranscriber{
		TranscribeFunc: func(ctx context.Context, audio []byte, sampleRate int) (string, error) {
			return "add to my to-do list milk", nil
		},
	}
	app, _ := newTestApp(t, transcriber, &mocks.MockSynthesizer{})

	req := httptest.NewRequest("POST", "/process-audio", bytes.NewReader([]byte("RIFF0000WAVE")))
	req.Header.Set("Content-Type", "audio/wav")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body domain.ProcessAudioResponse
	decode(t, resp.Body, &body)
	assert.Equal(t, "add to my to-do list milk", body.Transcription)
	assert.Equal(t, "Added to your to-do list: milk", body.Response)

	audio, err := base64.StdEncoding.DecodeString(body.AudioContent)
	require.NoError(t, err)
	assert.Equal(t, "audio:Added to your to-do list: milk", string(audio))

	statusResp, err := app.Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)
	var report domain.StatusReport
	decode(t, statusResp.Body, &report)
	assert.Equal(t, "add to my to-do list milk", report.LastProcessedCommand)
}

func TestProcessAudio_AlarmWithoutTimeIsNotAnError(t *testing.T) {
	transcriber := &mocks.MockTranscriber{
		TranscribeFunc: func(ctx context.Context, audio []byte, sampleRate int) (string, error) {
			return "set an alarm", nil
		},
	}
	app, _ := newTestApp(t, transcriber, &mocks.MockSynthesizer{})

	resp, err := app.Test(httptest.NewRequest("POST", "/process-audio", strings.NewReader("wav")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body domain.ProcessAudioResponse
	decode(t, resp.Body, &body)
	assert.Equal(t, intent.UnknownTimeResponse, body.Response)
}

func TestProcessAudio_TranscriptionFailure(t *testing.T) {
	transcriber := &mocks.MockTranscriber{
		TranscribeFunc: func(ctx context.Context, audio []byte, sampleRate int) (string, error) {
			return "", errors.New("speech api unavailable")
		},
	}
	app, _ := newTestApp(t, transcriber, &mocks.MockSynthesizer{})

	resp, err := app.Test(httptest.NewRequest("POST", "/process-audio", strings.NewReader("wav")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	decode(t, resp.Body, &body)
	assert.Equal(t, "Error processing audio", body["error"])
}

func TestProcessAudio_SynthesisFailure(t *testing.T) {
	transcriber := &mocks.MockTranscriber{
		TranscribeFunc: func(ctx context.Context, audio []byte, sampleRate int) (string, error) {
			return "tell me the forecast", nil
		},
	}
	synthesizer := &mocks.MockSynthesizer{
		SynthesizeFunc: func(ctx context.Context, text string) ([]byte, error) {
			return nil, errors.New("quota")
		},
	}
	app, _ := newTestApp(t, transcriber, synthesizer)

	resp, err := app.Test(httptest.NewRequest("POST", "/process-audio", strings.NewReader("wav")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestProcessAudio_EmptyBody(t *testing.T) {
	app, _ := newTestApp(t, &mocks.MockTranscriber{}, &mocks.MockSynthesizer{})

	resp, err := app.Test(httptest.NewRequest("POST", "/process-audio", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestProcessText(t *testing.T) {
	synthesizer := &mocks.MockSynthesizer{}
	app, _ := newTestApp(t, &mocks.MockTranscriber{}, synthesizer)

	req := httptest.NewRequest("POST", "/process", strings.NewReader(`{"text":"remind me to stretch"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body domain.ProcessTextResponse
	decode(t, resp.Body, &body)
	assert.Equal(t, "Reminder set: stretch", body.Response)
	assert.Empty(t, synthesizer.Texts)
}

func TestProcessText_BadRequests(t *testing.T) {
	app, _ := newTestApp(t, &mocks.MockTranscriber{}, &mocks.MockSynthesizer{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"text":`},
		{"missing text", `{}`},
		{"blank text", `{"text":"  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/process", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			var body map[string]string
			decode(t, resp.Body, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}
