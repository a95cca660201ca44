package plaid

import (
	"context"
	"sync"
)

// MockBalanceSource is a BalanceSource for tests.
type MockBalanceSource struct {
	GetBalancesFn func(ctx context.Context, accessToken string) ([]Balance, error)

	// Balances is returned per access token when GetBalancesFn is nil.
	Balances map[string][]Balance

	Calls []string
	mu    sync.Mutex
}

// GetBalances implements BalanceSource.
func (m *MockBalanceSource) GetBalances(ctx context.Context, accessToken string) ([]Balance, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, accessToken)
	m.mu.Unlock()

	if m.GetBalancesFn != nil {
		return m.GetBalancesFn(ctx, accessToken)
	}
	return m.Balances[accessToken], nil
}

// CallCount returns how many times GetBalances ran.
func (m *MockBalanceSource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
