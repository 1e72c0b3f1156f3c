// Package models provides data structures and state management for simulated
// poor-man's covered call positions.
package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const sharesPerContract = 100.0

// PositionState represents the lifecycle state of a simulated position.
type PositionState string

const (
	// StateOpen means the LEAP is held and short calls may still be sold.
	StateOpen PositionState = "open"
	// StateAssigned means a sold call was exercised; the position is terminal.
	StateAssigned PositionState = "assigned"
)

// ShortCall is a single covered call sold against a position. Records are
// appended in selection order and never mutated.
type ShortCall struct {
	TradeDate  time.Time `json:"tradeDate"`
	ExpirDate  time.Time `json:"expirDate"`
	DTE        int       `json:"dte"`
	Strike     float64   `json:"strike"`
	StockPrice float64   `json:"stockPrice"`
	CallValue  float64   `json:"callValue"`
	Delta      float64   `json:"delta"`
}

// Premium returns the dollar premium collected for one contract.
func (c ShortCall) Premium() float64 {
	return c.CallValue * sharesPerContract
}

// Position is one poor-man's covered call simulation: a LEAP bought on
// TradeDate with short calls sold against it until assignment or the LEAP's
// expiration. Mutated only through AddShortCall and MarkAssigned.
type Position struct {
	ID                     string        `json:"id"`
	Ticker                 string        `json:"ticker"`
	State                  PositionState `json:"state"`
	TradeDate              time.Time     `json:"tradeDate"`
	ExpirDate              time.Time     `json:"expirDate"`
	DaysToExpire           int           `json:"daysToExpire"`
	Delta                  float64       `json:"delta"`
	StockPrice             float64       `json:"stockPrice"`
	BreakEvenPrice         float64       `json:"breakEvenPrice"`
	BreakEvenPercent       float64       `json:"breakEvenPercent"`
	ContractCost           float64       `json:"contractCost"`
	TotalPremiums          float64       `json:"totalPremiums"`
	SellOptions            []ShortCall   `json:"sellOptions"`
	ReturnOnLeap           float64       `json:"returnOnLeap"`
	StockPriceWhenAssigned float64       `json:"stockPriceWhenAssigned"`
	TotalReturn            float64       `json:"totalReturn"`
	TotalReturnPercent     float64       `json:"totalReturnPercent"`
	AnnualReturnDollars    float64       `json:"annualReturnDollars"`
	AnnualReturnPercent    float64       `json:"annualReturnPercent"`
}

// NewPosition creates an open position for the given ticker.
func NewPosition(ticker string) *Position {
	return &Position{
		ID:          uuid.NewString(),
		Ticker:      ticker,
		State:       StateOpen,
		SellOptions: make([]ShortCall, 0),
	}
}

// Assigned reports whether the position has reached its terminal state.
func (p *Position) Assigned() bool {
	return p.State == StateAssigned
}

// LastShortCall returns the most recently sold short call, if any.
func (p *Position) LastShortCall() (ShortCall, bool) {
	if len(p.SellOptions) == 0 {
		return ShortCall{}, false
	}
	return p.SellOptions[len(p.SellOptions)-1], true
}

// AddShortCall appends a sold call and accumulates its premium. Assigned
// positions reject further sales.
func (p *Position) AddShortCall(c ShortCall) error {
	if p.Assigned() {
		return fmt.Errorf("position %s (%s): cannot sell against an assigned position", p.ID, p.Ticker)
	}
	p.TotalPremiums += c.Premium()
	p.SellOptions = append(p.SellOptions, c)
	return nil
}

// MarkAssigned transitions the position to its terminal state. The realized
// LEAP return is fixed by the last sold strike, and DaysToExpire is
// recomputed to the days actually elapsed between the LEAP trade date and
// the assigning cycle's expiration.
func (p *Position) MarkAssigned(stockPrice float64, cycleExpiration time.Time) error {
	if p.Assigned() {
		return fmt.Errorf("position %s (%s): already assigned", p.ID, p.Ticker)
	}
	last, ok := p.LastShortCall()
	if !ok {
		return fmt.Errorf("position %s (%s): cannot assign without a sold call", p.ID, p.Ticker)
	}
	p.State = StateAssigned
	p.ReturnOnLeap = (last.Strike - p.BreakEvenPrice) * sharesPerContract
	p.StockPriceWhenAssigned = stockPrice
	p.DaysToExpire = daysBetween(p.TradeDate, cycleExpiration)
	return nil
}

// Validate checks the position's structural invariants.
func (p *Position) Validate() error {
	if p.Ticker == "" {
		return fmt.Errorf("position %s: ticker is required", p.ID)
	}
	switch p.State {
	case StateOpen, StateAssigned:
	default:
		return fmt.Errorf("position %s (%s): unknown state %q", p.ID, p.Ticker, p.State)
	}
	if p.ContractCost <= 0 {
		return fmt.Errorf("position %s (%s): contract cost must be positive (current: %.2f)",
			p.ID, p.Ticker, p.ContractCost)
	}
	var sum float64
	for _, c := range p.SellOptions {
		sum += c.Premium()
	}
	if math.Abs(sum-p.TotalPremiums) > 1e-6 {
		return fmt.Errorf("position %s (%s): total premiums %.4f do not match sell options sum %.4f",
			p.ID, p.Ticker, p.TotalPremiums, sum)
	}
	for i := 1; i < len(p.SellOptions); i++ {
		if p.SellOptions[i].TradeDate.Before(p.SellOptions[i-1].TradeDate) {
			return fmt.Errorf("position %s (%s): sell options out of chronological order at index %d",
				p.ID, p.Ticker, i)
		}
	}
	if p.Assigned() && len(p.SellOptions) == 0 {
		return fmt.Errorf("position %s (%s): assigned without any sold call", p.ID, p.Ticker)
	}
	return nil
}

// daysBetween returns the whole days from one date to another.
func daysBetween(from, to time.Time) int {
	f := from.UTC().Truncate(24 * time.Hour)
	t := to.UTC().Truncate(24 * time.Hour)
	return int(t.Sub(f).Hours() / 24)
}
