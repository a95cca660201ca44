// Package plaid reads account balances through the Plaid API. Savings goals
// linked to an account follow its balance.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/Idosegev23/finhealer/internal/common"
)

// Config holds Plaid API credentials. Access tokens are per user and passed
// to each call.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
}

// Enabled reports whether any credential is set.
func (c Config) Enabled() bool {
	return c.ClientID != "" || c.Secret != ""
}

// Validate ensures all required fields are present.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	}
	if c.Secret == "" {
		return fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	}
	switch c.Environment {
	case "sandbox", "production":
		return nil
	case "":
		return fmt.Errorf("%w: plaid environment is required", common.ErrMissingConfig)
	default:
		return fmt.Errorf("%w: plaid environment must be sandbox or production", common.ErrInvalidConfig)
	}
}

// Balance is one account's balance.
type Balance struct {
	AccountID string  `json:"account_id"`
	Name      string  `json:"name"`
	Currency  string  `json:"currency"`
	Current   float64 `json:"current"`
	Available float64 `json:"available"`
}

// BalanceSource fetches balances for a linked user.
type BalanceSource interface {
	GetBalances(ctx context.Context, accessToken string) ([]Balance, error)
}

// Client talks to Plaid.
type Client struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	environment string
	retryOpts   common.RetryOptions
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		environment: cfg.Environment,
		logger:      slog.Default().With("component", "plaid"),
		retryOpts: common.RetryOptions{
			Op:           "plaid",
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// GetBalances fetches the real-time balance of every account behind
// accessToken.
func (c *Client) GetBalances(ctx context.Context, accessToken string) ([]Balance, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: context cannot be nil", common.ErrValidation)
	}
	if accessToken == "" {
		return nil, common.Validationf("plaid access token is required")
	}

	var accounts []plaid.AccountBase
	err := common.WithRetry(ctx, func() error {
		request := plaid.NewAccountsBalanceGetRequest(accessToken)
		resp, _, err := c.client.PlaidApi.AccountsBalanceGet(ctx).AccountsBalanceGetRequest(*request).Execute()
		if err != nil {
			return c.callError("fetch balances", err)
		}
		accounts = resp.GetAccounts()
		return nil
	}, c.retryOpts)
	if err != nil {
		return nil, common.Upstream("plaid balances", err)
	}

	balances := make([]Balance, 0, len(accounts))
	for _, a := range accounts {
		balances = append(balances, mapBalance(a))
	}
	c.logger.Debug("Fetched balances", "accounts", len(balances))
	return balances, nil
}

func mapBalance(a plaid.AccountBase) Balance {
	b := a.GetBalances()
	return Balance{
		AccountID: a.GetAccountId(),
		Name:      a.GetName(),
		Currency:  b.GetIsoCurrencyCode(),
		Current:   b.GetCurrent(),
		Available: b.GetAvailable(),
	}
}

// callError marks rate limits and server-side failures as retryable.
func (c *Client) callError(op string, err error) error {
	plaidErr := extractPlaidError(err)
	if plaidErr == nil {
		return &common.RetryableError{Err: fmt.Errorf("failed to %s: %w", op, err), Retryable: true}
	}
	wrapped := fmt.Errorf("plaid API error: %s - %s", plaidErr.ErrorCode, plaidErr.ErrorMessage)
	switch {
	case plaidErr.ErrorCode == "RATE_LIMIT_EXCEEDED":
		c.logger.Warn("Rate limit hit, will retry", "error", plaidErr.ErrorMessage)
		return fmt.Errorf("%w: %w", common.ErrRateLimit, wrapped)
	case plaidErr.ErrorType == "API_ERROR" || plaidErr.ErrorType == "INSTITUTION_ERROR":
		return &common.RetryableError{Err: wrapped, Retryable: true}
	default:
		return &common.RetryableError{Err: wrapped, Retryable: false}
	}
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}

// CreateLinkToken creates a Link token the dashboard uses to connect a bank
// account for userID.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", common.Validationf("user id is required")
	}
	user := plaid.LinkTokenCreateRequestUser{ClientUserId: userID}

	request := plaid.NewLinkTokenCreateRequest(
		"Phi",
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		user,
	)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_AUTH})

	resp, _, err := c.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", common.Upstream("plaid link token", c.callError("create link token", err))
	}
	return resp.GetLinkToken(), nil
}

// ExchangePublicToken exchanges a public token from Link for an access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	if publicToken == "" {
		return "", "", common.Validationf("public token is required")
	}
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := c.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", common.Upstream("plaid token exchange", c.callError("exchange public token", err))
	}
	return resp.GetAccessToken(), resp.GetItemId(), nil
}
