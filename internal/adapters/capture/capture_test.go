package capture_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/phantomfill/internal/adapters/capture"
	"github.com/alejandrodnm/phantomfill/internal/adapters/storage"
	"github.com/alejandrodnm/phantomfill/internal/domain"
)

const bookTicksSchema = `
CREATE TABLE book_ticks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT NOT NULL,
    asset TEXT NOT NULL,
    timeframe TEXT NOT NULL,
    window_ts INTEGER NOT NULL,
    tick_ms INTEGER NOT NULL,
    offset_ms INTEGER NOT NULL,
    side TEXT NOT NULL,
    best_bid REAL,
    best_bid_size REAL,
    best_ask REAL,
    best_ask_size REAL,
    depth_at_049 REAL,
    depth_at_050 REAL,
    depth_at_051 REAL,
    total_bid_depth REAL,
    total_ask_depth REAL,
    btc_price REAL,
    chainlink_price REAL
);`

func newSourceDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(bookTicksSchema)
	require.NoError(t, err)
	return db
}

// insertMarket inserta n offsets con los dos lados. chainlink crece o
// decrece según up; sin oráculo si withOracle es false.
func insertMarket(t *testing.T, db *sql.DB, slug, asset string, windowTs int64, n int, up, withOracle bool) {
	t.Helper()
	for i := 0; i < n; i++ {
		offset := int64(i) * 1000
		var chainlink any
		if withOracle {
			delta := float64(i)
			if !up {
				delta = -delta
			}
			chainlink = 50000 + delta
		}
		for _, side := range []string{"UP", "DOWN"} {
			_, err := db.Exec(`INSERT INTO book_ticks
				(slug, asset, timeframe, window_ts, tick_ms, offset_ms, side,
				 best_bid, best_bid_size, best_ask, best_ask_size,
				 depth_at_049, depth_at_050, depth_at_051,
				 total_bid_depth, total_ask_depth, btc_price, chainlink_price)
				VALUES (?, ?, '15m', ?, ?, ?, ?, 0.49, 100, 0.51, 80, 300, 0, 50, 500, 400, 50001, ?)`,
				slug, asset, windowTs, windowTs*1000+offset, offset, side, chainlink)
			require.NoError(t, err)
		}
	}
}

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(":memory:", storage.WithCacheSnapshots(0))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func windows(t *testing.T, s *storage.SQLiteStorage) []domain.Window {
	t.Helper()
	src, err := s.Source(context.Background(), "")
	require.NoError(t, err)
	var out []domain.Window
	for {
		w, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, w)
	}
}

func TestCaptureDB_Import(t *testing.T) {
	src := newSourceDB(t)
	insertMarket(t, src, "btc-updown-15m-1", "btc", 1000, 12, true, true)
	insertMarket(t, src, "btc-updown-15m-2", "btc", 2000, 12, false, true)
	insertMarket(t, src, "btc-updown-15m-3", "btc", 3000, 4, true, true)   // pocos ticks
	insertMarket(t, src, "btc-updown-15m-4", "btc", 4000, 12, true, false) // sin oráculo
	insertMarket(t, src, "eth-updown-15m-1", "eth", 1500, 12, true, true)

	dest := newStore(t)
	stats, err := capture.NewCaptureDB(src).Import(context.Background(), dest, "btc")
	require.NoError(t, err)

	assert.NotEmpty(t, stats.BatchID)
	assert.Equal(t, 2, stats.MarketsImported)
	assert.Equal(t, 2, stats.MarketsSkipped)
	assert.Equal(t, 48, stats.TicksImported)

	ws := windows(t, dest)
	require.Len(t, ws, 2)

	first := ws[0]
	assert.Equal(t, "btc-updown-15m-1", first.Market.ID)
	assert.Equal(t, "btc", first.Market.Category)
	assert.Equal(t, int64(900), first.Market.DurationSecs)
	assert.Equal(t, int64(1900), first.Market.CloseTs)
	assert.Equal(t, domain.OutcomeYes, first.Outcome)
	assert.Equal(t, domain.OutcomeNo, ws[1].Outcome)

	require.Len(t, first.Snapshots, 12)
	snap := first.Snapshots[0]
	assert.Equal(t, 0.49, snap.Yes.BestBid)
	assert.Equal(t, 0.49, snap.No.BestBid)
	assert.Equal(t, 50001.0, snap.ReferencePrice)
	assert.Equal(t, 50000.0, snap.OraclePrice)
	// depth_at_050 = 0 no genera nivel
	assert.Equal(t, []domain.PriceLevel{{Price: 0.49, CumulativeSize: 300}, {Price: 0.51, CumulativeSize: 50}}, snap.Yes.Depth)
}

func TestCaptureDB_ImportSlugPattern(t *testing.T) {
	src := newSourceDB(t)
	insertMarket(t, src, "btc-updown-15m-1", "btc", 1000, 10, true, true)
	insertMarket(t, src, "eth-updown-15m-1", "eth", 1500, 10, true, true)

	stats, err := capture.NewCaptureDB(src).Import(context.Background(), newStore(t), "eth-%")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MarketsImported)
}

func TestTimeframeSecs(t *testing.T) {
	assert.Equal(t, int64(300), capture.TimeframeSecs("5m"))
	assert.Equal(t, int64(900), capture.TimeframeSecs("15m"))
	assert.Equal(t, int64(3600), capture.TimeframeSecs("1h"))
	assert.Equal(t, int64(1800), capture.TimeframeSecs("30m"))
	assert.Equal(t, int64(14400), capture.TimeframeSecs("4h"))
	assert.Equal(t, int64(900), capture.TimeframeSecs("weird"))
}

func TestParseFilename(t *testing.T) {
	info, err := capture.ParseFilename("btc15m_market42_2026-01-15_10-30-00.ndjson")
	require.NoError(t, err)
	assert.Equal(t, "hf-btc15m-42", info.MarketID)
	assert.Equal(t, "btc", info.Coin)
	assert.Equal(t, "15m", info.Timeframe)
	assert.Equal(t, int64(900), info.DurationSecs)
	assert.Equal(t, int64(1768473000), info.OpenTs)

	info, err = capture.ParseFilename("eth1h_market1_2026-01-20_12-00-00.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "hf-eth1h-1", info.MarketID)
	assert.Equal(t, int64(3600), info.DurationSecs)

	for _, bad := range []string{"btc15m_2026-01-15.ndjson", "btc2d_market1_2026-01-15_10-30-00.ndjson", "btc15m_market1_nodate.ndjson"} {
		_, err := capture.ParseFilename(bad)
		assert.Error(t, err, bad)
	}
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestMapRow(t *testing.T) {
	row := capture.Row{
		Ts: 1000, Progress: 0.5, Type: 1, OutcomeUp: intp(1),
		BestBid: floatp(0.48), BestBidSize: floatp(10), BestAsk: floatp(0.52),
		BidSizeTotal: floatp(700),
	}
	tick, ok := capture.MapRow(row, "m1", 900)
	require.True(t, ok)
	assert.Equal(t, domain.SideYes, tick.Side)
	assert.Equal(t, int64(450_000), tick.OffsetMs)
	assert.Equal(t, []domain.PriceLevel{{Price: 0.48, CumulativeSize: 700}}, tick.State.Depth)

	row.Type = 2
	_, ok = capture.MapRow(row, "m1", 900)
	assert.False(t, ok, "trades se filtran")

	row.Type, row.OutcomeUp = 1, nil
	_, ok = capture.MapRow(row, "m1", 900)
	assert.False(t, ok, "sin lado")
}

type fakeResolver struct{ calls int }

func (f *fakeResolver) Resolve(_ context.Context, coin, timeframe string, _ int64) (domain.Outcome, error) {
	f.calls++
	if coin == "eth" {
		return domain.OutcomeUnresolved, errors.New("no klines")
	}
	return domain.OutcomeNo, nil
}

func writeDump(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func TestJSONLImporter_ImportDir(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "btc15m_market1_2026-01-15_10-30-00.ndjson",
		`{"ts":1,"progress":0.0,"type":1,"outcome_up":1,"best_bid":0.49,"best_bid_size":10,"best_ask":0.51,"best_ask_size":5,"bid_size_total":300,"ask_size_total":200}`,
		`{"ts":2,"progress":0.0,"type":1,"outcome_down":1,"best_bid":0.50,"best_bid_size":10,"best_ask":0.52,"best_ask_size":5,"bid_size_total":250,"ask_size_total":150}`,
		``,
		`{"ts":3,"progress":0.5,"type":2,"outcome_up":1}`,
		`{"ts":4,"progress":0.5,"type":1,"outcome_up":1,"best_bid":0.47,"bid_size_total":100}`,
	)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "eth"), 0o755))
	writeDump(t, filepath.Join(dir, "eth"), "eth15m_market2_2026-01-15_10-45-00.jsonl",
		`{"ts":1,"progress":0.1,"type":1,"outcome_up":1,"best_bid":0.40}`,
	)
	writeDump(t, dir, "bad_name.ndjson", `{}`)
	writeDump(t, dir, "notes.txt", "ignored")

	dest := newStore(t)
	resolver := &fakeResolver{}
	stats, err := capture.NewJSONLImporter(dest, resolver, "", 0).ImportDir(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.MarketsImported)
	assert.Equal(t, 1, stats.MarketsSkipped)
	assert.Equal(t, 4, stats.TicksImported)
	assert.Equal(t, 1, stats.RowsFiltered)
	assert.Equal(t, 2, resolver.calls)

	ws := windows(t, dest)
	require.Len(t, ws, 2)
	btc := ws[0]
	assert.Equal(t, "hf-btc15m-1", btc.Market.ID)
	assert.Equal(t, domain.OutcomeNo, btc.Outcome)
	require.Len(t, btc.Snapshots, 2)
	assert.Equal(t, 0.49, btc.Snapshots[0].Yes.BestBid)
	assert.Equal(t, 0.50, btc.Snapshots[0].No.BestBid)
	assert.Equal(t, 0.47, btc.Snapshots[1].Yes.BestBid)
	assert.Equal(t, 0.50, btc.Snapshots[1].No.BestBid)

	assert.False(t, ws[1].Outcome.Resolved(), "resolver falló: ventana sin resolver")
}

func TestJSONLImporter_CoinFilterAndLimit(t *testing.T) {
	dir := t.TempDir()
	row := `{"ts":1,"progress":0.0,"type":1,"outcome_up":1,"best_bid":0.49}`
	writeDump(t, dir, "btc15m_market1_2026-01-15_10-30-00.ndjson", row)
	writeDump(t, dir, "btc15m_market2_2026-01-15_10-45-00.ndjson", row)
	writeDump(t, dir, "eth15m_market3_2026-01-15_10-30-00.ndjson", row)

	stats, err := capture.NewJSONLImporter(newStore(t), nil, "eth", 0).ImportDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MarketsImported)
	assert.Equal(t, 2, stats.MarketsSkipped)

	stats, err = capture.NewJSONLImporter(newStore(t), nil, "", 1).ImportDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MarketsImported)
}

func TestJSONLImporter_BadJSONSkipsFile(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "btc15m_market1_2026-01-15_10-30-00.ndjson", `{not json`)

	stats, err := capture.NewJSONLImporter(newStore(t), nil, "", 0).ImportDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.MarketsImported)
	assert.Equal(t, 1, stats.MarketsSkipped)
}
