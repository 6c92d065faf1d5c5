// Package transport talks to the mirror server over HTTP and the push
// channel.
package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/client/session"
	"github.com/seu-repo/mirror-voice/internal/domain"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultKeepAlive      = 30 * time.Second
)

// StatusError is returned for non-2xx answers.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Client implements session.Uploader and supervisor.Poller.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(serverURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   DefaultConnectTimeout,
					KeepAlive: DefaultKeepAlive,
				}).DialContext,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: log,
	}
}

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (*domain.StatusReport, error) {
	var report domain.StatusReport
	if err := c.do(ctx, http.MethodGet, "/status", "", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// UploadAudio posts a WAV capture to /process-audio.
func (c *Client) UploadAudio(ctx context.Context, audio []byte) (*session.Reply, error) {
	var resp domain.ProcessAudioResponse
	if err := c.do(ctx, http.MethodPost, "/process-audio", "audio/wav", bytes.NewReader(audio), &resp); err != nil {
		return nil, err
	}

	var speech []byte
	if resp.AudioContent != "" {
		decoded, err := base64.StdEncoding.DecodeString(resp.AudioContent)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audio content: %w", err)
		}
		speech = decoded
	}

	return &session.Reply{
		Transcription: resp.Transcription,
		Response:      resp.Response,
		Audio:         speech,
	}, nil
}

// UploadText posts a locally recognized command to /process.
func (c *Client) UploadText(ctx context.Context, text string) (*session.Reply, error) {
	body, err := json.Marshal(domain.ProcessTextRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp domain.ProcessTextResponse
	if err := c.do(ctx, http.MethodPost, "/process", "application/json", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	return &session.Reply{Transcription: text, Response: resp.Response}, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("Server request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &payload) != nil {
			payload.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
