// Package strategy implements the poor-man's covered call simulation: LEAP
// selection, the covered-call cycle engine, and return calculation.
package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tylerautera/LEAPSfrog/internal/models"
	"github.com/tylerautera/LEAPSfrog/internal/provider"
)

// leapDTEWindow is how far past the minimum DTE the LEAP chain request
// reaches.
const leapDTEWindow = 300

// LeapConfig filters which long-dated calls qualify as a LEAP purchase.
type LeapConfig struct {
	MinDaysToExpire       int
	MinDelta              float64
	MaxPercentToBreakEven float64
}

// Validate checks the LEAP selection parameters.
func (c LeapConfig) Validate() error {
	if c.MinDaysToExpire <= 0 {
		return fmt.Errorf("leap min days to expire must be positive (current: %d)", c.MinDaysToExpire)
	}
	if c.MinDelta <= 0 || c.MinDelta > 1 {
		return fmt.Errorf("leap min delta must be in (0, 1] (current: %g)", c.MinDelta)
	}
	if c.MaxPercentToBreakEven <= 0 {
		return fmt.Errorf("leap max percent to break even must be positive (current: %g)", c.MaxPercentToBreakEven)
	}
	return nil
}

// Selector picks one qualifying LEAP per ticker from a historical chain.
type Selector struct {
	provider provider.ChainProvider
	logger   *logrus.Logger
}

// NewSelector creates a LEAP selector backed by the given chain provider.
func NewSelector(p provider.ChainProvider, logger *logrus.Logger) *Selector {
	return &Selector{provider: p, logger: logger}
}

// FindLeaps opens one position per ticker that has a qualifying long-dated
// call on tradeDate. Tickers with no chain rows or no qualifying row are
// skipped with a log line, not an error.
func (s *Selector) FindLeaps(ctx context.Context, cfg LeapConfig, tickers []string, tradeDate time.Time) ([]*models.Position, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.provider.GetStrikesHistory(ctx, tickers, tradeDate,
		provider.DTERange{Min: cfg.MinDaysToExpire, Max: cfg.MinDaysToExpire + leapDTEWindow},
		provider.DeltaRange{Min: cfg.MinDelta, Max: 1})
	if err != nil {
		return nil, fmt.Errorf("fetching LEAP chain for %s: %w", provider.FormatDate(tradeDate), err)
	}

	byTicker := groupRowsByTicker(rows)

	positions := make([]*models.Position, 0, len(tickers))
	for _, ticker := range tickers {
		tickerRows := byTicker[ticker]
		if len(tickerRows) == 0 {
			s.logger.WithField("ticker", ticker).Warn("no LEAP chain rows, skipping ticker")
			continue
		}

		row, reason, ok := selectLeapRow(tickerRows, cfg)
		if !ok {
			s.logger.WithFields(logrus.Fields{
				"ticker": ticker,
				"reason": reason,
			}).Warn("no qualifying LEAP, skipping ticker")
			continue
		}

		pos, err := positionFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("building position for %s: %w", ticker, err)
		}
		s.logger.WithFields(logrus.Fields{
			"ticker":       pos.Ticker,
			"expiration":   provider.FormatDate(pos.ExpirDate),
			"delta":        pos.Delta,
			"breakEven":    pos.BreakEvenPrice,
			"contractCost": pos.ContractCost,
		}).Info("opened LEAP position")
		positions = append(positions, pos)
	}

	return positions, nil
}

// selectLeapRow scans the chain from the farthest expiration backwards and
// returns the first row meeting the delta and break-even filters. On no
// match it returns the reason the last-rejected candidates failed.
func selectLeapRow(rows []provider.OptionRow, cfg LeapConfig) (provider.OptionRow, string, bool) {
	reason := "no rows in chain"
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if row.Delta < cfg.MinDelta {
			reason = fmt.Sprintf("delta %.3f below minimum %.3f", row.Delta, cfg.MinDelta)
			continue
		}
		if pct := breakEvenPercent(row); pct >= cfg.MaxPercentToBreakEven {
			reason = fmt.Sprintf("break-even %.2f%% at or above maximum %.2f%%", pct, cfg.MaxPercentToBreakEven)
			continue
		}
		return row, "", true
	}
	return provider.OptionRow{}, reason, false
}

// breakEvenPercent is the percent move from the current stock price needed
// to reach the call's break-even (strike plus premium paid).
func breakEvenPercent(row provider.OptionRow) float64 {
	be := row.Strike + row.CallValue
	return (be - row.StockPrice) / row.StockPrice * 100
}

func positionFromRow(row provider.OptionRow) (*models.Position, error) {
	tradeDate, err := provider.ParseDate(row.TradeDate)
	if err != nil {
		return nil, err
	}
	expirDate, err := provider.ParseDate(row.ExpirDate)
	if err != nil {
		return nil, err
	}

	pos := models.NewPosition(row.Ticker)
	pos.TradeDate = tradeDate
	pos.ExpirDate = expirDate
	pos.DaysToExpire = row.DTE
	pos.Delta = row.Delta
	pos.StockPrice = row.StockPrice
	pos.BreakEvenPrice = row.Strike + row.CallValue
	pos.BreakEvenPercent = breakEvenPercent(row)
	pos.ContractCost = row.CallValue * 100
	return pos, nil
}

// groupRowsByTicker buckets chain rows per ticker, preserving the provider's
// nearest-expiration-first ordering within each bucket.
func groupRowsByTicker(rows []provider.OptionRow) map[string][]provider.OptionRow {
	byTicker := make(map[string][]provider.OptionRow)
	for _, row := range rows {
		byTicker[row.Ticker] = append(byTicker[row.Ticker], row)
	}
	return byTicker
}
