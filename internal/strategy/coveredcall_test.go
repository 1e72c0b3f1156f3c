package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tylerautera/LEAPSfrog/internal/models"
	"github.com/tylerautera/LEAPSfrog/internal/provider"
)

func testCCConfig() CoveredCallConfig {
	return CoveredCallConfig{
		MinDaysToExpire:          30,
		MinDelta:                 0,
		MaxDelta:                 0.3,
		MinPercentAboveBreakEven: 0.05,
	}
}

// testPosition mirrors the deep ITM LEAP from the selector tests: strike 100,
// premium 20, break-even 120, two-year expiration.
func testPosition(ticker string) *models.Position {
	pos := models.NewPosition(ticker)
	pos.TradeDate = time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
	pos.ExpirDate = time.Date(2023, time.January, 20, 0, 0, 0, 0, time.UTC)
	pos.DaysToExpire = 746
	pos.Delta = 0.8
	pos.StockPrice = 110
	pos.BreakEvenPrice = 120
	pos.BreakEvenPercent = 9.09
	pos.ContractCost = 2000
	return pos
}

func TestCoveredCallConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CoveredCallConfig)
		wantErr string
	}{
		{"valid", func(c *CoveredCallConfig) {}, ""},
		{"zero dte", func(c *CoveredCallConfig) { c.MinDaysToExpire = 0 }, "min days to expire"},
		{"negative min delta", func(c *CoveredCallConfig) { c.MinDelta = -0.1 }, "min delta"},
		{"inverted deltas", func(c *CoveredCallConfig) { c.MaxDelta = 0 }, "max delta"},
		{"negative margin", func(c *CoveredCallConfig) { c.MinPercentAboveBreakEven = -1 }, "percent above break even"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testCCConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSelectCoveredCallRow(t *testing.T) {
	cfg := testCCConfig()
	const breakEven = 120.0 // margin floor at 126

	tests := []struct {
		name       string
		rows       []provider.OptionRow
		wantStrike float64
		wantOK     bool
		wantReason string
	}{
		{
			name: "first qualifying row wins",
			rows: []provider.OptionRow{
				{Strike: 130, Delta: 0.2, CallValue: 1.5},
				{Strike: 140, Delta: 0.1, CallValue: 0.8},
			},
			wantStrike: 130,
			wantOK:     true,
		},
		{
			name: "delta above max skipped",
			rows: []provider.OptionRow{
				{Strike: 130, Delta: 0.45, CallValue: 3.0},
				{Strike: 140, Delta: 0.2, CallValue: 1.0},
			},
			wantStrike: 140,
			wantOK:     true,
		},
		{
			name: "strike below break even rejected",
			rows: []provider.OptionRow{
				{Strike: 115, Delta: 0.25, CallValue: 2.0},
			},
			wantReason: "below break-even",
		},
		{
			name: "strike inside margin rejected",
			rows: []provider.OptionRow{
				{Strike: 124, Delta: 0.25, CallValue: 2.0},
			},
			wantReason: "margin",
		},
		{
			name:       "empty chain",
			rows:       nil,
			wantReason: "no rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, reason, ok := selectCoveredCallRow(tt.rows, cfg, breakEven)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantStrike, row.Strike)
			} else {
				assert.Contains(t, reason, tt.wantReason)
			}
		})
	}
}

func TestEngineRunSellThenAssignment(t *testing.T) {
	start := time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
	pos := testPosition("AAPL")

	mp := new(provider.MockProvider)
	// Cycle 1: sell the 130 strike for a 1.50 premium.
	mp.On("GetStrikesHistory", mock.Anything, []string{"AAPL"}, start,
		provider.DTERange{Min: 30, Max: 55}, provider.DeltaRange{Min: 0, Max: 0.3}).
		Return([]provider.OptionRow{
			{Ticker: "AAPL", TradeDate: "2021-01-04", ExpirDate: "2021-02-19", DTE: 46,
				Strike: 130, StockPrice: 110, CallValue: 1.5, Delta: 0.2},
		}, nil).Once()

	// Cycle 2: stock at 135 breaches the 130 strike.
	feb19 := time.Date(2021, time.February, 19, 0, 0, 0, 0, time.UTC)
	mp.On("GetStrikesHistory", mock.Anything, []string{"AAPL"}, feb19,
		provider.DTERange{Min: 30, Max: 55}, provider.DeltaRange{Min: 0, Max: 0.3}).
		Return([]provider.OptionRow{
			{Ticker: "AAPL", TradeDate: "2021-02-19", ExpirDate: "2021-03-26", DTE: 35,
				Strike: 145, StockPrice: 135, CallValue: 2.0, Delta: 0.25},
		}, nil).Once()

	engine := NewEngine(mp, testLogger())
	err := engine.Run(context.Background(), []*models.Position{pos}, testCCConfig(), start)
	require.NoError(t, err)

	assert.True(t, pos.Assigned())
	require.Len(t, pos.SellOptions, 1)
	assert.Equal(t, 130.0, pos.SellOptions[0].Strike)
	assert.Equal(t, 150.0, pos.TotalPremiums)
	assert.Equal(t, 135.0, pos.StockPriceWhenAssigned)
	// (130 strike - 120 break-even) * 100 shares
	assert.Equal(t, 1000.0, pos.ReturnOnLeap)
	// Holding period is recomputed to the assigning cycle's expiration.
	assert.Equal(t, 81, pos.DaysToExpire)
	assert.Equal(t, 1150.0, pos.TotalReturn)
	assert.InDelta(t, 57.5, pos.TotalReturnPercent, 1e-9)
	assert.InDelta(t, 1150.0/81*365, pos.AnnualReturnDollars, 1e-9)
	assert.NoError(t, pos.Validate())
	mp.AssertExpectations(t)
}

func TestEngineRunChainExhausted(t *testing.T) {
	start := time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
	pos := testPosition("AAPL")

	mp := new(provider.MockProvider)
	mp.On("GetStrikesHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, provider.ErrNoData).Once()

	engine := NewEngine(mp, testLogger())
	err := engine.Run(context.Background(), []*models.Position{pos}, testCCConfig(), start)
	require.NoError(t, err)

	// No cycles completed: still open, returns approximated from the entry
	// stock price.
	assert.False(t, pos.Assigned())
	assert.Empty(t, pos.SellOptions)
	assert.Equal(t, (110.0-120.0)*100, pos.ReturnOnLeap)
	assert.Equal(t, -1000.0, pos.TotalReturn)
	mp.AssertNumberOfCalls(t, "GetStrikesHistory", 1)
}

func TestEngineRunProviderFailureIsFatal(t *testing.T) {
	start := time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
	pos := testPosition("AAPL")

	mp := new(provider.MockProvider)
	mp.On("GetStrikesHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &provider.APIError{Status: 500, Body: "boom"}).Once()

	engine := NewEngine(mp, testLogger())
	err := engine.Run(context.Background(), []*models.Position{pos}, testCCConfig(), start)
	require.Error(t, err)
	var apiErr *provider.APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestEngineRunIterationCap(t *testing.T) {
	start := time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
	pos := testPosition("AAPL")

	// A chain whose expiration never advances would loop forever without
	// the cap; no row ever qualifies (delta too high) so nothing is sold.
	mp := new(provider.MockProvider)
	mp.On("GetStrikesHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]provider.OptionRow{
			{Ticker: "AAPL", TradeDate: "2021-01-04", ExpirDate: "2021-02-19", DTE: 46,
				Strike: 130, StockPrice: 110, CallValue: 1.5, Delta: 0.9},
		}, nil)

	engine := NewEngine(mp, testLogger()).WithMaxIterations(5)
	err := engine.Run(context.Background(), []*models.Position{pos}, testCCConfig(), start)
	require.NoError(t, err)

	assert.False(t, pos.Assigned())
	assert.Empty(t, pos.SellOptions)
	mp.AssertNumberOfCalls(t, "GetStrikesHistory", 5)
}

func TestEngineRunAssignmentUsesOwnTickerExpiration(t *testing.T) {
	start := time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
	aapl := testPosition("AAPL")
	msft := testPosition("MSFT")
	msft.BreakEvenPrice = 200
	msft.StockPrice = 190

	mp := new(provider.MockProvider)
	// Cycle 1: both tickers sell a call expiring Feb 19.
	mp.On("GetStrikesHistory", mock.Anything, []string{"AAPL", "MSFT"}, start,
		mock.Anything, mock.Anything).
		Return([]provider.OptionRow{
			{Ticker: "AAPL", TradeDate: "2021-01-04", ExpirDate: "2021-02-19", DTE: 46,
				Strike: 130, StockPrice: 110, CallValue: 1.5, Delta: 0.2},
			{Ticker: "MSFT", TradeDate: "2021-01-04", ExpirDate: "2021-02-19", DTE: 46,
				Strike: 210, StockPrice: 190, CallValue: 2.2, Delta: 0.2},
		}, nil).Once()

	// Cycle 2: both strikes are breached, but the tickers' next weeklies
	// diverge — AAPL's chain expires Mar 26, MSFT's a week earlier.
	feb19 := time.Date(2021, time.February, 19, 0, 0, 0, 0, time.UTC)
	mp.On("GetStrikesHistory", mock.Anything, []string{"AAPL", "MSFT"}, feb19,
		mock.Anything, mock.Anything).
		Return([]provider.OptionRow{
			{Ticker: "AAPL", TradeDate: "2021-02-19", ExpirDate: "2021-03-26", DTE: 35,
				Strike: 145, StockPrice: 135, CallValue: 2.0, Delta: 0.25},
			{Ticker: "MSFT", TradeDate: "2021-02-19", ExpirDate: "2021-03-19", DTE: 28,
				Strike: 225, StockPrice: 215, CallValue: 1.8, Delta: 0.22},
		}, nil).Once()

	engine := NewEngine(mp, testLogger())
	err := engine.Run(context.Background(), []*models.Position{aapl, msft}, testCCConfig(), start)
	require.NoError(t, err)

	require.True(t, aapl.Assigned())
	require.True(t, msft.Assigned())
	// Each holding period ends at that ticker's own chain expiration, not
	// the shared cursor derived from the first ticker.
	assert.Equal(t, 81, aapl.DaysToExpire) // Jan 4 -> Mar 26
	assert.Equal(t, 74, msft.DaysToExpire) // Jan 4 -> Mar 19
	mp.AssertExpectations(t)
}

func TestEngineRunSkipsTickerWithoutRows(t *testing.T) {
	start := time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
	aapl := testPosition("AAPL")
	msft := testPosition("MSFT")
	msft.BreakEvenPrice = 200
	msft.StockPrice = 190

	mp := new(provider.MockProvider)
	// Only AAPL has rows this cycle; MSFT skips the cycle but stays open.
	mp.On("GetStrikesHistory", mock.Anything, []string{"AAPL", "MSFT"}, start,
		mock.Anything, mock.Anything).
		Return([]provider.OptionRow{
			{Ticker: "AAPL", TradeDate: "2021-01-04", ExpirDate: "2021-02-19", DTE: 46,
				Strike: 130, StockPrice: 110, CallValue: 1.5, Delta: 0.2},
		}, nil).Once()
	mp.On("GetStrikesHistory", mock.Anything, []string{"AAPL", "MSFT"}, mock.Anything,
		mock.Anything, mock.Anything).
		Return(nil, provider.ErrNoData).Once()

	engine := NewEngine(mp, testLogger())
	err := engine.Run(context.Background(), []*models.Position{aapl, msft}, testCCConfig(), start)
	require.NoError(t, err)

	assert.Len(t, aapl.SellOptions, 1)
	assert.Empty(t, msft.SellOptions)
	assert.False(t, msft.Assigned())
}

func TestEngineRunEmptyPositions(t *testing.T) {
	mp := new(provider.MockProvider)
	engine := NewEngine(mp, testLogger())
	err := engine.Run(context.Background(), nil, testCCConfig(), time.Now())
	require.NoError(t, err)
	mp.AssertNumberOfCalls(t, "GetStrikesHistory", 0)
}
