package models

import (
	"math"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPosition_Defaults(t *testing.T) {
	p := NewPosition("AAPL")
	if p.ID == "" {
		t.Fatal("expected generated ID")
	}
	if p.State != StateOpen {
		t.Fatalf("State = %q, want %q", p.State, StateOpen)
	}
	if p.Assigned() {
		t.Fatal("new position must not be assigned")
	}
	if len(p.SellOptions) != 0 {
		t.Fatalf("SellOptions = %d entries, want 0", len(p.SellOptions))
	}
}

func TestAddShortCall_AccumulatesPremium(t *testing.T) {
	p := NewPosition("AAPL")
	p.ContractCost = 2000

	calls := []ShortCall{
		{Strike: 130, CallValue: 1.50, TradeDate: day(2021, time.January, 4)},
		{Strike: 132, CallValue: 2.25, TradeDate: day(2021, time.February, 1)},
	}
	for _, c := range calls {
		if err := p.AddShortCall(c); err != nil {
			t.Fatalf("AddShortCall() error: %v", err)
		}
	}

	want := (1.50 + 2.25) * 100
	if math.Abs(p.TotalPremiums-want) > 1e-9 {
		t.Fatalf("TotalPremiums = %v, want %v", p.TotalPremiums, want)
	}
	last, ok := p.LastShortCall()
	if !ok || last.Strike != 132 {
		t.Fatalf("LastShortCall() = %+v, %v; want strike 132", last, ok)
	}
}

func TestAddShortCall_RejectedWhenAssigned(t *testing.T) {
	p := NewPosition("AAPL")
	p.BreakEvenPrice = 120
	p.TradeDate = day(2021, time.January, 4)
	if err := p.AddShortCall(ShortCall{Strike: 130, CallValue: 1}); err != nil {
		t.Fatalf("AddShortCall() error: %v", err)
	}
	if err := p.MarkAssigned(135, day(2021, time.February, 19)); err != nil {
		t.Fatalf("MarkAssigned() error: %v", err)
	}
	if err := p.AddShortCall(ShortCall{Strike: 140, CallValue: 1}); err == nil {
		t.Fatal("expected error selling against an assigned position")
	}
	if len(p.SellOptions) != 1 {
		t.Fatalf("SellOptions = %d entries, want 1", len(p.SellOptions))
	}
}

func TestMarkAssigned(t *testing.T) {
	p := NewPosition("AAPL")
	p.BreakEvenPrice = 120
	p.TradeDate = day(2021, time.January, 4)
	if err := p.AddShortCall(ShortCall{Strike: 130, CallValue: 1.5}); err != nil {
		t.Fatalf("AddShortCall() error: %v", err)
	}

	if err := p.MarkAssigned(135, day(2021, time.February, 19)); err != nil {
		t.Fatalf("MarkAssigned() error: %v", err)
	}

	if !p.Assigned() {
		t.Fatal("position should be assigned")
	}
	if want := (130.0 - 120.0) * 100; p.ReturnOnLeap != want {
		t.Fatalf("ReturnOnLeap = %v, want %v", p.ReturnOnLeap, want)
	}
	if p.StockPriceWhenAssigned != 135 {
		t.Fatalf("StockPriceWhenAssigned = %v, want 135", p.StockPriceWhenAssigned)
	}
	// Jan 4 -> Feb 19 is 46 elapsed days, replacing the originally queried DTE.
	if p.DaysToExpire != 46 {
		t.Fatalf("DaysToExpire = %d, want 46", p.DaysToExpire)
	}

	if err := p.MarkAssigned(140, day(2021, time.March, 19)); err == nil {
		t.Fatal("expected error assigning twice")
	}
}

func TestMarkAssigned_RequiresSoldCall(t *testing.T) {
	p := NewPosition("AAPL")
	if err := p.MarkAssigned(135, day(2021, time.February, 19)); err == nil {
		t.Fatal("expected error assigning a position with no sold calls")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Position {
		p := NewPosition("AAPL")
		p.ContractCost = 2000
		_ = p.AddShortCall(ShortCall{Strike: 130, CallValue: 1.5, TradeDate: day(2021, time.January, 4)})
		_ = p.AddShortCall(ShortCall{Strike: 131, CallValue: 1.2, TradeDate: day(2021, time.February, 1)})
		return p
	}

	tests := []struct {
		name    string
		mutate  func(*Position)
		wantErr bool
	}{
		{"valid open position", func(p *Position) {}, false},
		{"missing ticker", func(p *Position) { p.Ticker = "" }, true},
		{"zero contract cost", func(p *Position) { p.ContractCost = 0 }, true},
		{"premium sum mismatch", func(p *Position) { p.TotalPremiums += 5 }, true},
		{"unknown state", func(p *Position) { p.State = "pending" }, true},
		{"out of order sells", func(p *Position) {
			p.SellOptions[1].TradeDate = day(2020, time.December, 1)
		}, true},
		{"assigned without sells", func(p *Position) {
			p.State = StateAssigned
			p.SellOptions = nil
			p.TotalPremiums = 0
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
