package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Idosegev23/finhealer/internal/common"
)

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
)

// anthropicClient implements Client for the Anthropic messages API.
type anthropicClient struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

func newAnthropicClient(cfg Config) (*anthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key is required", common.ErrMissingConfig)
	}

	c := &anthropicClient{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		endpoint:    anthropicEndpoint,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  newHTTPClient(cfg.Timeout),
	}
	if c.model == "" {
		c.model = "claude-3-5-haiku-latest"
	}
	if c.temperature == 0 {
		c.temperature = 0.4
	}
	if c.maxTokens == 0 {
		c.maxTokens = 300
	}
	if cfg.BaseURL != "" {
		c.endpoint = cfg.BaseURL + "/v1/messages"
	}
	return c, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends one messages request.
func (c *anthropicClient) Complete(ctx context.Context, r Request) (Response, error) {
	body := anthropicRequest{
		Model:       c.model,
		System:      r.System,
		Messages:    []anthropicMessage{{Role: "user", Content: r.Prompt}},
		Temperature: pick(r.Temperature, c.temperature),
		MaxTokens:   pickInt(r.MaxTokens, c.maxTokens),
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	raw, err := doJSON(c.httpClient, req, "Anthropic")
	if err != nil {
		return Response{}, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Response{}, fmt.Errorf("no text content returned")
	}

	return Response{Text: cleanFences(text.String()), Model: resp.Model}, nil
}
