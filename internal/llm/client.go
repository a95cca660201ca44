package llm

import (
	"context"
	"strings"
	"time"
)

// Client completes a single prompt.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int     // zero uses the client default
	Temperature float64 // zero uses the client default
}

// Response is the generated text.
type Response struct {
	Text  string
	Model string
}

// Config selects and tunes a provider.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string // overrides the provider endpoint, used by tests and proxies
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	Timeout     time.Duration
	RateLimit   int // requests per minute
	Temperature float64
	MaxTokens   int
}

// Enabled reports whether cfg names a provider with credentials.
func (cfg Config) Enabled() bool {
	return cfg.Provider != "" && cfg.APIKey != ""
}

// cleanFences strips a markdown code fence some models wrap answers in.
func cleanFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
