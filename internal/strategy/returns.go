package strategy

import (
	"github.com/sirupsen/logrus"

	"github.com/tylerautera/LEAPSfrog/internal/models"
)

// CalculateReturns finalizes return metrics on every position. Positions
// that were never assigned approximate the realized LEAP return from the
// stock price of the last sold call (or the entry stock price if no call was
// ever sold). The transform is idempotent: re-running it on finalized
// positions yields identical values.
func CalculateReturns(positions []*models.Position, logger *logrus.Logger) {
	for _, pos := range positions {
		calculatePositionReturns(pos, logger)
	}
}

func calculatePositionReturns(pos *models.Position, logger *logrus.Logger) {
	log := logger.WithField("ticker", pos.Ticker)

	if !pos.Assigned() {
		exitPrice := pos.StockPrice
		if last, ok := pos.LastShortCall(); ok {
			exitPrice = last.StockPrice
		}
		pos.ReturnOnLeap = (exitPrice - pos.BreakEvenPrice) * 100
	}

	pos.TotalReturn = pos.ReturnOnLeap + pos.TotalPremiums

	if pos.ContractCost <= 0 {
		log.WithField("contractCost", pos.ContractCost).
			Error("contract cost not positive, skipping percent returns")
		return
	}
	pos.TotalReturnPercent = pos.TotalReturn / pos.ContractCost * 100

	days := pos.DaysToExpire
	if days < 1 {
		// Same-day assignment; annualize over a single day rather than
		// divide by zero.
		log.WithField("daysToExpire", days).Warn("clamping holding period to one day")
		days = 1
	}
	dailyReturn := pos.TotalReturn / float64(days)
	pos.AnnualReturnDollars = dailyReturn * 365
	pos.AnnualReturnPercent = pos.AnnualReturnDollars / pos.ContractCost * 100
}
