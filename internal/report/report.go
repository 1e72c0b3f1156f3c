// Package report serializes finalized positions into field-sorted JSON
// documents for downstream analysis.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tylerautera/LEAPSfrog/internal/models"
	"github.com/tylerautera/LEAPSfrog/internal/util"
)

const centTick = 0.01

// Marshal renders positions as indented JSON with keys sorted at every
// level. Dollar and percent fields are rounded to cents first; the input
// positions are not mutated.
func Marshal(positions []*models.Position) ([]byte, error) {
	rounded := make([]models.Position, len(positions))
	for i, pos := range positions {
		rounded[i] = roundPosition(pos)
	}

	// Round-trip through generic maps so MarshalIndent emits sorted keys
	// instead of struct field order.
	raw, err := json.Marshal(rounded)
	if err != nil {
		return nil, fmt.Errorf("encoding positions: %w", err)
	}
	var generic []map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("re-decoding positions for key sorting: %w", err)
	}
	out, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding sorted positions: %w", err)
	}
	return append(out, '\n'), nil
}

// WriteFile writes the report atomically: a temp file in the target
// directory is renamed over the destination so readers never observe a
// partial document.
func WriteFile(path string, positions []*models.Position) error {
	data, err := Marshal(positions)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp report file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp report file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp report file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing report file %s: %w", path, err)
	}
	return nil
}

func roundPosition(pos *models.Position) models.Position {
	p := *pos
	p.SellOptions = make([]models.ShortCall, len(pos.SellOptions))
	copy(p.SellOptions, pos.SellOptions)

	p.BreakEvenPrice = util.RoundToTick(p.BreakEvenPrice, centTick)
	p.BreakEvenPercent = util.RoundToTick(p.BreakEvenPercent, centTick)
	p.ContractCost = util.RoundToTick(p.ContractCost, centTick)
	p.TotalPremiums = util.RoundToTick(p.TotalPremiums, centTick)
	p.ReturnOnLeap = util.RoundToTick(p.ReturnOnLeap, centTick)
	p.StockPriceWhenAssigned = util.RoundToTick(p.StockPriceWhenAssigned, centTick)
	p.TotalReturn = util.RoundToTick(p.TotalReturn, centTick)
	p.TotalReturnPercent = util.RoundToTick(p.TotalReturnPercent, centTick)
	p.AnnualReturnDollars = util.RoundToTick(p.AnnualReturnDollars, centTick)
	p.AnnualReturnPercent = util.RoundToTick(p.AnnualReturnPercent, centTick)
	return p
}
