package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Idosegev23/finhealer/internal/common"
)

// ManagedClient wraps a provider with rate limiting, caching and retries.
type ManagedClient struct {
	provider Client
	limiter  *rateLimiter
	cache    *responseCache
	logger   *slog.Logger
	retry    common.RetryOptions
}

// NewClient builds a managed client for cfg.Provider.
func NewClient(cfg Config) (*ManagedClient, error) {
	var (
		provider Client
		err      error
	)
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		provider, err = newOpenAIClient(cfg)
	case "anthropic":
		provider, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return newManagedClient(provider, cfg), nil
}

func newManagedClient(provider Client, cfg Config) *ManagedClient {
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	return &ManagedClient{
		provider: provider,
		limiter:  newRateLimiter(cfg.RateLimit),
		cache:    newResponseCache(cfg.CacheTTL),
		logger:   slog.Default().With("component", "llm", "provider", cfg.Provider),
		retry: common.RetryOptions{
			Op:           "llm",
			MaxAttempts:  maxRetries,
			InitialDelay: retryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Complete returns a cached response when one exists, otherwise calls the
// provider under the rate limit with retries.
func (m *ManagedClient) Complete(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Response{}, common.Validationf("prompt is required")
	}

	key := cacheKey(req)
	if resp, ok := m.cache.get(key); ok {
		m.logger.Debug("completion cache hit")
		return resp, nil
	}

	var resp Response
	err := common.WithRetry(ctx, func() error {
		if err := m.limiter.wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		var callErr error
		resp, callErr = m.provider.Complete(ctx, req)
		return callErr
	}, m.retry)
	if err != nil {
		return Response{}, common.Upstream("llm complete", err)
	}

	m.cache.set(key, resp)
	return resp, nil
}

// Close releases background goroutines.
func (m *ManagedClient) Close() {
	m.limiter.Close()
	m.cache.Close()
}
