package export_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/phantomfill/internal/adapters/export"
	"github.com/alejandrodnm/phantomfill/internal/domain"
)

func results() []domain.ReplayResult {
	return []domain.ReplayResult{
		{MarketID: "m1", Category: "btc", Outcome: domain.OutcomeYes, Traded: true, Predicted: domain.SideYes,
			SharesRequested: 10, SharesFilled: 10, FillRate: 1, Filled: true, FirstFillMs: 61000,
			NaivePnL: 5.1, RealisticPnL: 5.1, Correct: true, NaiveCorrect: true},
		{MarketID: "m2", Category: "btc", Outcome: domain.OutcomeNo, Traded: true, Predicted: domain.SideYes,
			SharesRequested: 10, NaivePnL: -4.9},
	}
}

func TestWrite(t *testing.T) {
	rows := export.Rows(domain.Report{Strategy: "spread_arb", Run: 3, Seed: 42}, results())
	require.Len(t, rows, 2)

	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "strategy,run,seed,market_id,category,outcome,predicted"))
	assert.Contains(t, lines[1], "spread_arb,3,42,m1,btc,YES,YES,true")
	assert.Contains(t, lines[1], ",61000,")

	var back []export.WindowRow
	require.NoError(t, gocsv.UnmarshalString(buf.String(), &back))
	require.Len(t, back, 2)
	assert.Equal(t, "", back[1].FirstFillMs)
	assert.InDelta(t, -4.9, back[1].PhantomGap, 1e-9)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "windows.csv")
	require.NoError(t, export.WriteFile(path, export.Rows(domain.Report{Strategy: "momentum"}, results())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "momentum,0,0,m2")
}
