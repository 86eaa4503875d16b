package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/calyptra/redgraph/internal/config"
	"github.com/calyptra/redgraph/internal/logging"
)

// CompletionClient is the minimal LLM surface the engine needs: one prompt
// in, one completion out.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint. Anthropic,
// OpenAI, and most local inference servers expose this shape.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
	logger    *logging.Logger
}

// NewClient builds a client from the loaded configuration. The API key is
// read from the configured environment variable at construction time.
func NewClient(cfg *config.Config) (*Client, error) {
	key := cfg.GetAPIKey()
	if key == "" {
		return nil, fmt.Errorf("llm: no API key in environment (set %s)", cfg.LLM.APIKeyEnv)
	}
	baseURL := cfg.LLM.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(cfg.LLM.Provider)
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    key,
		model:     cfg.LLM.Model,
		maxTokens: cfg.LLM.MaxTokens,
		http:      &http.Client{Timeout: 120 * time.Second},
		logger:    logging.New().WithComponent("llm"),
	}, nil
}

func defaultBaseURL(provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic":
		return "https://api.anthropic.com/v1"
	case "openai", "":
		return "https://api.openai.com/v1"
	default:
		return "https://api.openai.com/v1"
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one chat completion request and returns the assistant text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	c.logger.Debug("completion finished", map[string]interface{}{
		"model":       c.model,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: HTTP %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm: %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: empty completion")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
