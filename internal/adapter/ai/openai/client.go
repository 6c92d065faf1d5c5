package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
	"github.com/seu-repo/mirror-voice/pkg/config"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("openai: API key not configured")
	// ErrCompletionUnavailable is returned while the circuit breaker is open.
	ErrCompletionUnavailable = errors.New("openai: completion engine unavailable")
	// ErrQuotaExceeded is returned on HTTP 429.
	ErrQuotaExceeded = errors.New("openai: quota exceeded")
	// ErrMalformedResponse is returned when the payload cannot be interpreted.
	ErrMalformedResponse = errors.New("openai: malformed response")
)

// Client is a chat completions client with function calling, guarded by a
// circuit breaker.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *zap.Logger
}

// NewClient creates a new OpenAI API client
func NewClient(cfg config.OpenAIConfig, cb config.CircuitBreakerConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newBreaker(cb, log),
		log:        log,
	}
}

func newBreaker(cfg config.CircuitBreakerConfig, log *zap.Logger) *gobreaker.CircuitBreaker {
	minRequests := uint32(3)
	if cfg.MaxRequests > 0 {
		minRequests = uint32(cfg.MaxRequests)
	}
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 0.6
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai-completions",
		MaxRequests: minRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// --- Wire format ---

type message struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  jsonSchema `json:"parameters"`
}

type jsonSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

type schemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type chatRequest struct {
	Model      string    `json:"model"`
	Messages   []message `json:"messages"`
	Tools      []tool    `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// --- Chat Completion ---

// BreakerState reports the circuit breaker state: closed, half-open or open.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Complete sends the conversation and the callable functions to the chat
// completions endpoint. The result is either text or a single function call.
func (c *Client) Complete(ctx context.Context, messages []domain.ConversationTurn, functions []domain.FunctionSpec) (*domain.Completion, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, messages, functions)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
		}
		return nil, err
	}
	return result.(*domain.Completion), nil
}

func (c *Client) complete(ctx context.Context, messages []domain.ConversationTurn, functions []domain.FunctionSpec) (*domain.Completion, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: toMessages(messages),
	}
	if len(functions) > 0 {
		reqBody.Tools = toTools(functions)
		reqBody.ToolChoice = "auto"
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	msg := result.Choices[0].Message
	c.log.Debug("Chat completion received",
		zap.String("finish_reason", result.Choices[0].FinishReason),
		zap.Int("tool_calls", len(msg.ToolCalls)),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)

	if len(msg.ToolCalls) > 0 {
		call, err := parseToolCall(msg.ToolCalls[0])
		if err != nil {
			return nil, err
		}
		return &domain.Completion{Call: call}, nil
	}

	var text string
	if msg.Content != nil {
		text = *msg.Content
	}
	return &domain.Completion{Text: text}, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiError
	detail := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		detail = apiErr.Error.Message
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, detail)
	}
	return fmt.Errorf("openai: API error status %d: %s", resp.StatusCode, detail)
}

func parseToolCall(tc toolCall) (*domain.FunctionCall, error) {
	if tc.Function.Name == "" {
		return nil, fmt.Errorf("%w: tool call without function name", ErrMalformedResponse)
	}

	args := map[string]string{}
	if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("%w: function arguments: %v", ErrMalformedResponse, err)
		}
		for k, v := range decoded {
			switch val := v.(type) {
			case string:
				args[k] = val
			case nil:
			default:
				args[k] = fmt.Sprint(val)
			}
		}
	}

	return &domain.FunctionCall{Name: tc.Function.Name, Arguments: args}, nil
}

func toMessages(turns []domain.ConversationTurn) []message {
	out := make([]message, 0, len(turns))
	for _, t := range turns {
		content := t.Content
		out = append(out, message{Role: string(t.Role), Content: &content})
	}
	return out
}

func toTools(functions []domain.FunctionSpec) []tool {
	tools := make([]tool, 0, len(functions))
	for _, fn := range functions {
		schema := jsonSchema{
			Type:       "object",
			Properties: make(map[string]schemaProperty, len(fn.Parameters)),
			Required:   []string{},
		}
		for _, p := range fn.Parameters {
			schema.Properties[p.Name] = schemaProperty{Type: "string", Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		tools = append(tools, tool{
			Type: "function",
			Function: toolFunction{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  schema,
			},
		})
	}
	return tools
}
