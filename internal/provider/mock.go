package provider

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockProvider implements ChainProvider for testing.
type MockProvider struct {
	mock.Mock
}

// Ensure MockProvider implements ChainProvider at compile time.
var _ ChainProvider = (*MockProvider)(nil)

// GetStrikesHistory returns the configured chain rows for the call.
func (m *MockProvider) GetStrikesHistory(ctx context.Context, tickers []string,
	tradeDate time.Time, dte DTERange, delta DeltaRange) ([]OptionRow, error) {
	args := m.Called(ctx, tickers, tradeDate, dte, delta)
	rows, _ := args.Get(0).([]OptionRow)
	return rows, args.Error(1)
}

// GetTickerWindows returns the configured trade-history windows for the call.
func (m *MockProvider) GetTickerWindows(ctx context.Context, tickers []string) ([]TickerWindow, error) {
	args := m.Called(ctx, tickers)
	windows, _ := args.Get(0).([]TickerWindow)
	return windows, args.Error(1)
}
