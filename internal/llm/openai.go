package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Idosegev23/finhealer/internal/common"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// openAIClient implements Client for the OpenAI chat completions API.
type openAIClient struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

func newOpenAIClient(cfg Config) (*openAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", common.ErrMissingConfig)
	}

	c := &openAIClient{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		endpoint:    openAIEndpoint,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  newHTTPClient(cfg.Timeout),
	}
	if c.model == "" {
		c.model = "gpt-4o-mini"
	}
	if c.temperature == 0 {
		c.temperature = 0.4
	}
	if c.maxTokens == 0 {
		c.maxTokens = 300
	}
	if cfg.BaseURL != "" {
		c.endpoint = cfg.BaseURL + "/v1/chat/completions"
	}
	return c, nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request.
func (c *openAIClient) Complete(ctx context.Context, r Request) (Response, error) {
	body := openAIRequest{
		Model:       c.model,
		Temperature: pick(r.Temperature, c.temperature),
		MaxTokens:   pickInt(r.MaxTokens, c.maxTokens),
	}
	if r.System != "" {
		body.Messages = append(body.Messages, openAIMessage{Role: "system", Content: r.System})
	}
	body.Messages = append(body.Messages, openAIMessage{Role: "user", Content: r.Prompt})

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, err := doJSON(c.httpClient, req, "OpenAI")
	if err != nil {
		return Response{}, err
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("no completion choices returned")
	}

	return Response{Text: cleanFences(resp.Choices[0].Message.Content), Model: resp.Model}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// doJSON executes req and returns the body of a 200 response. Rate limiting
// and server errors are marked retryable; other statuses are not.
func doJSON(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("%s request failed: %w", provider, err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s API error (status %d): %w", provider, resp.StatusCode, common.ErrRateLimit)
	case resp.StatusCode >= 500:
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, string(body)),
			Retryable: true,
		}
	default:
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, string(body)),
			Retryable: false,
		}
	}
}

func pick(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func pickInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
