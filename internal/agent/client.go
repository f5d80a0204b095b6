package agent

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

	"github.com/tidwall/gjson"

	"github.com/ashureev/sonar-hub/internal/domain"
)

// Completion API defaults.
const (
	DefaultBaseURL     = "https://api.perplexity.ai"
	DefaultModel       = "sonar-pro"
	DefaultTemperature = 0.7
	DefaultTimeout     = 60 * time.Second

	maxErrorBodySize = 64 << 10
)

var (
	// ErrMissingAPIKey is returned when the client is built without credentials.
	ErrMissingAPIKey = errors.New("completion API key is not configured")
	// ErrEmptyCompletion is returned when a response carries no message content.
	ErrEmptyCompletion = errors.New("no valid response content received from AI")
)

// APIError is a non-2xx response from the completion API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("completion API returned HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("completion API returned HTTP %d", e.StatusCode)
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures a PerplexityClient.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	HTTPClient  httpClient
}

// PerplexityClient talks to an OpenAI-compatible /chat/completions endpoint.
type PerplexityClient struct {
	client      httpClient
	endpoint    string
	apiKey      string
	model       string
	temperature float64
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewPerplexityClient validates cfg and fills in defaults.
func NewPerplexityClient(cfg ClientConfig) (*PerplexityClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &PerplexityClient{
		client:      client,
		endpoint:    baseURL + "/chat/completions",
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: temperature,
	}, nil
}

// Complete sends messages and returns the first choice.
func (c *PerplexityClient) Complete(ctx context.Context, messages []domain.Turn) (Completion, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: c.temperature,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return Completion{}, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(gjson.GetBytes(raw, "detail").String())
		}
		return Completion{}, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("read completion response: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return Completion{}, fmt.Errorf("decode completion response: invalid JSON")
	}

	content := gjson.GetBytes(raw, "choices.0.message.content")
	if content.Type != gjson.String || strings.TrimSpace(content.String()) == "" {
		return Completion{}, ErrEmptyCompletion
	}

	return Completion{
		Content:      content.String(),
		FinishReason: gjson.GetBytes(raw, "choices.0.finish_reason").String(),
	}, nil
}
