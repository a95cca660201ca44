package sheets

import (
	"context"
	"sync"
)

// MockWriter records reports instead of writing them.
type MockWriter struct {
	WriteFunc  func(ctx context.Context, report *Report) error
	LastReport *Report
	calls      int
	mu         sync.Mutex
}

// Write implements ReportWriter.
func (m *MockWriter) Write(ctx context.Context, report *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.LastReport = report
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, report)
	}
	return nil
}

// CallCount returns how many times Write was called.
func (m *MockWriter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
