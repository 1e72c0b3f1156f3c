package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tylerautera/LEAPSfrog/internal/calendar"
	"github.com/tylerautera/LEAPSfrog/internal/models"
	"github.com/tylerautera/LEAPSfrog/internal/provider"
)

const (
	// ccDTEWindow is how far past the minimum DTE the covered-call chain
	// request reaches.
	ccDTEWindow = 25

	// defaultMaxIterations bounds the simulation loop. Weekly cycles over a
	// two-year LEAP need ~104 iterations.
	defaultMaxIterations = 120
)

// CoveredCallConfig filters which short-dated calls qualify for selling
// against an open LEAP.
type CoveredCallConfig struct {
	MinDaysToExpire          int
	MinDelta                 float64
	MaxDelta                 float64
	MinPercentAboveBreakEven float64
}

// Validate checks the covered-call selection parameters.
func (c CoveredCallConfig) Validate() error {
	if c.MinDaysToExpire <= 0 {
		return fmt.Errorf("covered call min days to expire must be positive (current: %d)", c.MinDaysToExpire)
	}
	if c.MinDelta < 0 {
		return fmt.Errorf("covered call min delta must be non-negative (current: %g)", c.MinDelta)
	}
	if c.MaxDelta <= c.MinDelta || c.MaxDelta > 1 {
		return fmt.Errorf("covered call max delta must be in (min delta, 1] (current: %g)", c.MaxDelta)
	}
	if c.MinPercentAboveBreakEven < 0 {
		return fmt.Errorf("covered call min percent above break even must be non-negative (current: %g)", c.MinPercentAboveBreakEven)
	}
	return nil
}

// Engine advances open LEAP positions through successive covered-call
// cycles: each cycle fetches one chain snapshot, detects assignment against
// the new stock price, and sells the next qualifying call.
type Engine struct {
	provider      provider.ChainProvider
	logger        *logrus.Logger
	maxIterations int
}

// NewEngine creates a simulation engine backed by the given chain provider.
func NewEngine(p provider.ChainProvider, logger *logrus.Logger) *Engine {
	return &Engine{
		provider:      p,
		logger:        logger,
		maxIterations: defaultMaxIterations,
	}
}

// WithMaxIterations overrides the simulation loop bound.
func (e *Engine) WithMaxIterations(n int) *Engine {
	if n > 0 {
		e.maxIterations = n
	}
	return e
}

// cycle is one covered-call iteration's shared state. The expiration and
// next trade date come from the first open ticker's chain rows, so every
// position observes the same cursor. That cross-ticker approximation is
// deliberate; changing to per-ticker cursors only touches nextCycle.
type cycle struct {
	expiration time.Time
	nextTrade  time.Time
}

// Run steps every open position forward until it is assigned, the reference
// LEAP expiration is reached, or the iteration cap fires. The reference
// expiration is the first position's LEAP expiration. Positions are mutated
// in place and finalized with CalculateReturns before returning.
func (e *Engine) Run(ctx context.Context, positions []*models.Position, cfg CoveredCallConfig, startDate time.Time) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}

	terminal := positions[0].ExpirDate
	cursor := calendar.NextTradingDay(startDate)
	ccExpiration := startDate

	for iter := 0; iter < e.maxIterations && ccExpiration.Before(terminal); iter++ {
		active := openTickers(positions)
		if len(active) == 0 {
			break
		}

		rows, err := e.provider.GetStrikesHistory(ctx, active, cursor,
			provider.DTERange{Min: cfg.MinDaysToExpire, Max: cfg.MinDaysToExpire + ccDTEWindow},
			provider.DeltaRange{Min: cfg.MinDelta, Max: cfg.MaxDelta})
		if err != nil {
			if errors.Is(err, provider.ErrNoData) {
				e.logger.WithFields(logrus.Fields{
					"tradeDate": provider.FormatDate(cursor),
					"iteration": iter,
				}).Warn("chain history exhausted, ending simulation early")
				break
			}
			return fmt.Errorf("fetching covered-call chain for %s: %w", provider.FormatDate(cursor), err)
		}

		byTicker := groupRowsByTicker(rows)

		cyc, err := e.nextCycle(active, byTicker)
		if err != nil {
			if errors.Is(err, provider.ErrNoData) {
				e.logger.WithField("tradeDate", provider.FormatDate(cursor)).
					Warn("no chain rows for any open ticker, ending simulation early")
				break
			}
			return err
		}
		ccExpiration = cyc.expiration
		cursor = cyc.nextTrade

		for _, pos := range positions {
			if pos.Assigned() {
				continue
			}
			e.stepPosition(pos, byTicker[pos.Ticker], cfg)
		}
	}

	CalculateReturns(positions, e.logger)
	return nil
}

// nextCycle advances the shared cursor: the cycle expiration is the first
// chain row's expiration for the first open ticker that has data, and the
// next trade date is the first trading day on or after it.
func (e *Engine) nextCycle(active []string, byTicker map[string][]provider.OptionRow) (cycle, error) {
	for _, ticker := range active {
		rows := byTicker[ticker]
		if len(rows) == 0 {
			continue
		}
		expiration, err := provider.ParseDate(rows[0].ExpirDate)
		if err != nil {
			return cycle{}, fmt.Errorf("advancing cycle from %s chain: %w", ticker, err)
		}
		return cycle{
			expiration: expiration,
			nextTrade:  calendar.NextTradingDay(expiration),
		}, nil
	}
	return cycle{}, fmt.Errorf("%w: no chain rows for any open ticker", provider.ErrNoData)
}

// stepPosition runs one cycle for one open position: assignment check first,
// then at most one new short call.
func (e *Engine) stepPosition(pos *models.Position, rows []provider.OptionRow, cfg CoveredCallConfig) {
	log := e.logger.WithField("ticker", pos.Ticker)

	if len(rows) == 0 {
		log.Warn("no chain rows for ticker this cycle, skipping")
		return
	}
	stockPrice := rows[0].StockPrice
	log = log.WithField("expiration", rows[0].ExpirDate)

	if last, ok := pos.LastShortCall(); ok && last.Strike < stockPrice {
		// The holding period ends at this ticker's own cycle expiration,
		// which can differ from the shared cursor's when weeklies diverge.
		expiration, err := provider.ParseDate(rows[0].ExpirDate)
		if err != nil {
			log.WithError(err).Error("cannot resolve assignment expiration")
			return
		}
		if err := pos.MarkAssigned(stockPrice, expiration); err != nil {
			log.WithError(err).Error("failed to mark position assigned")
			return
		}
		log.WithFields(logrus.Fields{
			"strike":       last.Strike,
			"stockPrice":   stockPrice,
			"returnOnLeap": pos.ReturnOnLeap,
		}).Info("short call assigned, position closed")
		return
	}

	row, reason, ok := selectCoveredCallRow(rows, cfg, pos.BreakEvenPrice)
	if !ok {
		log.WithField("reason", reason).Warn("no qualifying covered call this cycle")
		return
	}

	call, err := shortCallFromRow(row)
	if err != nil {
		log.WithError(err).Warn("skipping covered call with malformed dates")
		return
	}
	if err := pos.AddShortCall(call); err != nil {
		log.WithError(err).Error("failed to record short call")
		return
	}
	log.WithFields(logrus.Fields{
		"strike":  call.Strike,
		"delta":   call.Delta,
		"premium": call.Premium(),
	}).Info("sold covered call")
}

// selectCoveredCallRow scans the chain nearest-expiration-first and returns
// the first row whose delta is within bounds and whose strike clears the
// break-even by the configured margin.
func selectCoveredCallRow(rows []provider.OptionRow, cfg CoveredCallConfig, breakEven float64) (provider.OptionRow, string, bool) {
	minStrike := breakEven * (1 + cfg.MinPercentAboveBreakEven)
	reason := "no rows in chain"
	for _, row := range rows {
		if row.Delta > cfg.MaxDelta {
			reason = fmt.Sprintf("delta %.3f above maximum %.3f", row.Delta, cfg.MaxDelta)
			continue
		}
		if row.Strike < breakEven {
			reason = fmt.Sprintf("strike %.2f below break-even %.2f", row.Strike, breakEven)
			continue
		}
		if row.Strike < minStrike {
			reason = fmt.Sprintf("strike %.2f below break-even margin %.2f", row.Strike, minStrike)
			continue
		}
		return row, "", true
	}
	return provider.OptionRow{}, reason, false
}

func shortCallFromRow(row provider.OptionRow) (models.ShortCall, error) {
	tradeDate, err := provider.ParseDate(row.TradeDate)
	if err != nil {
		return models.ShortCall{}, err
	}
	expirDate, err := provider.ParseDate(row.ExpirDate)
	if err != nil {
		return models.ShortCall{}, err
	}
	return models.ShortCall{
		TradeDate:  tradeDate,
		ExpirDate:  expirDate,
		DTE:        row.DTE,
		Strike:     row.Strike,
		StockPrice: row.StockPrice,
		CallValue:  row.CallValue,
		Delta:      row.Delta,
	}, nil
}

// openTickers lists the tickers that still have an open position, in input
// order without duplicates.
func openTickers(positions []*models.Position) []string {
	seen := make(map[string]bool, len(positions))
	tickers := make([]string, 0, len(positions))
	for _, pos := range positions {
		if pos.Assigned() || seen[pos.Ticker] {
			continue
		}
		seen[pos.Ticker] = true
		tickers = append(tickers, pos.Ticker)
	}
	return tickers
}
