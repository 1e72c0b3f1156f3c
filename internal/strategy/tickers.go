package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tylerautera/LEAPSfrog/internal/provider"
)

// FilterTickersByWindow removes tickers whose trade history does not cover
// startDate. Removed symbols are reported in a single warning; the remaining
// list keeps the input order.
func FilterTickersByWindow(ctx context.Context, p provider.ChainProvider, logger *logrus.Logger,
	tickers []string, startDate time.Time) ([]string, error) {
	windows, err := p.GetTickerWindows(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("fetching ticker trade histories: %w", err)
	}

	earliest := make(map[string]time.Time, len(windows))
	for _, w := range windows {
		min, err := provider.ParseDate(w.Min)
		if err != nil {
			return nil, fmt.Errorf("ticker %s history window: %w", w.Ticker, err)
		}
		earliest[w.Ticker] = min
	}

	kept := make([]string, 0, len(tickers))
	var removed []string
	for _, ticker := range tickers {
		min, ok := earliest[ticker]
		if !ok || min.After(startDate) {
			removed = append(removed, ticker)
			continue
		}
		kept = append(kept, ticker)
	}

	if len(removed) > 0 {
		logger.WithFields(logrus.Fields{
			"startDate": provider.FormatDate(startDate),
			"removed":   strings.Join(removed, ","),
		}).Warn("tickers lack history for the requested start date, excluding them")
	}
	return kept, nil
}
