package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylerautera/LEAPSfrog/internal/models"
)

func samplePosition(t *testing.T) *models.Position {
	t.Helper()
	pos := models.NewPosition("AAPL")
	pos.TradeDate = time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
	pos.ExpirDate = time.Date(2023, time.January, 20, 0, 0, 0, 0, time.UTC)
	pos.DaysToExpire = 746
	pos.Delta = 0.8
	pos.StockPrice = 110
	pos.BreakEvenPrice = 120
	pos.BreakEvenPercent = 9.090909090909
	pos.ContractCost = 2000
	require.NoError(t, pos.AddShortCall(models.ShortCall{
		TradeDate:  pos.TradeDate,
		ExpirDate:  time.Date(2021, time.February, 19, 0, 0, 0, 0, time.UTC),
		DTE:        46,
		Strike:     130,
		StockPrice: 110,
		CallValue:  1.505,
	}))
	return pos
}

func TestMarshalSortsKeysAndRoundsMoney(t *testing.T) {
	pos := samplePosition(t)
	pos.TotalReturn = 1150.333333

	data, err := Marshal([]*models.Position{pos})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.InDelta(t, 9.09, decoded[0]["breakEvenPercent"], 1e-9)
	assert.InDelta(t, 1150.33, decoded[0]["totalReturn"], 1e-9)

	// Keys come out sorted at every level.
	idx := func(key string) int { return strings.Index(string(data), `"`+key+`"`) }
	assert.Less(t, idx("annualReturnDollars"), idx("breakEvenPrice"))
	assert.Less(t, idx("breakEvenPrice"), idx("sellOptions"))
	assert.Less(t, idx("sellOptions"), idx("totalReturn"))

	// Input not mutated by rounding.
	assert.Equal(t, 9.090909090909, pos.BreakEvenPercent)
	assert.Equal(t, 1150.333333, pos.TotalReturn)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "results.json")

	require.NoError(t, WriteFile(path, []*models.Position{samplePosition(t)}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "AAPL", decoded[0]["ticker"])

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
