// Package whatsapp sends and receives WhatsApp messages through the Twilio
// messaging API.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Idosegev23/finhealer/internal/common"
)

const (
	defaultBaseURL = "https://api.twilio.com/2010-04-01"
	channelPrefix  = "whatsapp:"

	// Twilio rejects WhatsApp bodies longer than this.
	maxBodyRunes = 1600
)

// Gateway delivers an outbound message to a phone number.
type Gateway interface {
	Send(ctx context.Context, to, body string) error
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, to, body string) error

// Send calls f.
func (f GatewayFunc) Send(ctx context.Context, to, body string) error {
	return f(ctx, to, body)
}

// Config holds the Twilio credentials and sender.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string // sender number, with or without the whatsapp: prefix
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Enabled reports whether enough is configured to send real messages.
func (c Config) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// HTTPError is a non-2xx reply from the API.
type HTTPError struct {
	APIError   *APIError
	Body       string
	StatusCode int
}

func (e *HTTPError) Error() string {
	if e.APIError != nil && e.APIError.Message != "" {
		return fmt.Sprintf("twilio http %d: %s (code %d)", e.StatusCode, e.APIError.Message, e.APIError.Code)
	}
	return fmt.Sprintf("twilio http %d: %s", e.StatusCode, e.Body)
}

// APIError is the JSON error document Twilio returns.
type APIError struct {
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Code     int    `json:"code"`
	Status   int    `json:"status"`
}

// TwilioGateway sends messages through the Twilio REST API.
type TwilioGateway struct {
	httpClient *http.Client
	logger     *slog.Logger
	cfg        Config
	from       string
	retry      common.RetryOptions
}

// NewTwilioGateway validates cfg and creates a gateway.
func NewTwilioGateway(cfg Config) (*TwilioGateway, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: whatsapp account_sid, auth_token and from are required", common.ErrMissingConfig)
	}
	from, err := NormalizePhone(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("%w: whatsapp from: %v", common.ErrInvalidConfig, err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	return &TwilioGateway{
		cfg:        cfg,
		from:       from,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default().With("component", "whatsapp"),
		retry: common.RetryOptions{
			Op:           "twilio send",
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
		},
	}, nil
}

// Send delivers body to the given phone number.
func (g *TwilioGateway) Send(ctx context.Context, to, body string) error {
	if ctx == nil {
		return fmt.Errorf("%w: context cannot be nil", common.ErrValidation)
	}
	phone, err := NormalizePhone(to)
	if err != nil {
		return err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return common.Validationf("message body is empty")
	}
	body = truncate(body, maxBodyRunes)

	form := url.Values{}
	form.Set("To", channelPrefix+"+"+phone)
	form.Set("From", channelPrefix+"+"+g.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", g.cfg.BaseURL, url.PathEscape(g.cfg.AccountSID))

	var sid string
	err = common.WithRetry(ctx, func() error {
		var sendErr error
		sid, sendErr = g.postForm(ctx, endpoint, form)
		return sendErr
	}, g.retry)
	if err != nil {
		g.logger.Error("Message send failed", "to", maskPhone(phone), "error", err)
		return common.Upstream("whatsapp send", err)
	}

	g.logger.Debug("Message sent", "to", maskPhone(phone), "sid", sid)
	return nil
}

func (g *TwilioGateway) postForm(ctx context.Context, endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &common.RetryableError{Err: err, Retryable: false}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(g.cfg.AccountSID, g.cfg.AuthToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", &common.RetryableError{Err: err, Retryable: false}
		}
		return "", &common.RetryableError{Err: err, Retryable: true}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Warn("Failed to close response body", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("read response: %w", err), Retryable: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		var apiErr APIError
		if json.Unmarshal(raw, &apiErr) == nil && (apiErr.Code != 0 || apiErr.Message != "") {
			httpErr.APIError = &apiErr
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return "", fmt.Errorf("%w: %w", common.ErrRateLimit, httpErr)
		case resp.StatusCode >= 500:
			return "", &common.RetryableError{Err: httpErr, Retryable: true}
		default:
			return "", &common.RetryableError{Err: httpErr, Retryable: false}
		}
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("decode response: %w", err), Retryable: false}
	}
	return out.SID, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// maskPhone keeps the last four digits for logs.
func maskPhone(p string) string {
	if len(p) <= 4 {
		return p
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
