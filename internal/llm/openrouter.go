package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kadvik/mrev/internal/config"
)

// maxErrorBody bounds how much of an error response is read for the
// error message.
const maxErrorBody = 4 * 1024

// OpenRouterProvider implements Provider against the OpenRouter
// chat-completions API (also compatible with the OpenAI API shape).
type OpenRouterProvider struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewOpenRouterProvider creates an OpenRouter provider from config.
// The API key is required here, not at config validation, so that
// read-only commands work without one.
func NewOpenRouterProvider(cfg *config.Config) (*OpenRouterProvider, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("openrouter: API key required (set MREV_PROVIDER_API_KEY)")
	}

	baseURL := strings.TrimSuffix(cfg.Provider.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}

	return &OpenRouterProvider{
		apiKey:      cfg.Provider.APIKey,
		baseURL:     baseURL,
		model:       cfg.Provider.Model,
		temperature: cfg.Provider.Temperature,
		maxTokens:   cfg.Provider.MaxTokens,
		client:      &http.Client{Timeout: cfg.Provider.Timeout},
	}, nil
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends one chat-completion request and returns the raw model
// output. JSON mode is requested; the caller still validates the
// response against the schema because backends do not always honor it.
func (p *OpenRouterProvider) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    p.temperature,
		MaxTokens:      p.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", &LLMError{Kind: Fatal, Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &LLMError{Kind: Fatal, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, readErrorBody(resp.Body))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &LLMError{Kind: Transient, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(result.Choices) == 0 {
		return "", &LLMError{Kind: Transient, Err: errors.New("response contained no choices")}
	}

	return result.Choices[0].Message.Content, nil
}

// HealthCheck lists models to verify reachability and credentials.
func (p *OpenRouterProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

// classifyStatus maps an HTTP status to an LLMError kind: 429 and 5xx
// are transient, everything else in 4xx is fatal.
func classifyStatus(status int, body string) *LLMError {
	kind := Fatal
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = Transient
	}

	msg := fmt.Errorf("backend returned %s", http.StatusText(status))
	if body != "" {
		msg = fmt.Errorf("backend returned %s: %s", http.StatusText(status), body)
	}
	return &LLMError{Kind: kind, StatusCode: status, Err: msg}
}

// classifyTransportError wraps a network-level failure. Context
// cancellation stays fatal so the retry loop stops immediately.
func classifyTransportError(err error) *LLMError {
	if errors.Is(err, context.Canceled) {
		return &LLMError{Kind: Fatal, Err: err}
	}
	return &LLMError{Kind: Transient, Err: err}
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
