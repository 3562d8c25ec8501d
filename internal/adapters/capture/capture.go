// Package capture importa capturas externas de libros de órdenes al
// almacén nativo de ventanas.
package capture

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/alejandrodnm/phantomfill/internal/ports"
)

// MinTicksPerMarket es el mínimo de ticks para importar un mercado.
const MinTicksPerMarket = 10

// ImportStats resume un import.
type ImportStats struct {
	BatchID         string
	MarketsImported int
	TicksImported   int
	MarketsSkipped  int
	RowsFiltered    int
}

// CaptureDB lee la tabla `book_ticks` de una base de captura del bot de
// spread arb. Cada fila es un lado (UP/DOWN) del libro en un instante.
type CaptureDB struct {
	db *sql.DB
}

// OpenCaptureDB abre la base de captura en modo solo lectura.
func OpenCaptureDB(path string) (*CaptureDB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("capture.OpenCaptureDB: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("capture.OpenCaptureDB: ping %q: %w", path, err)
	}
	return &CaptureDB{db: db}, nil
}

// NewCaptureDB envuelve una conexión ya abierta (tests con :memory:).
func NewCaptureDB(db *sql.DB) *CaptureDB {
	return &CaptureDB{db: db}
}

// Close cierra la conexión.
func (c *CaptureDB) Close() error {
	return c.db.Close()
}

type captureMarket struct {
	slug      string
	asset     string
	timeframe string
	windowTs  int64
}

// Import copia los mercados de la captura a dest. filter es un asset
// ("btc") o, si contiene '%', un patrón LIKE sobre el slug. Los mercados con
// menos de MinTicksPerMarket ticks o sin precio de oráculo se saltan.
func (c *CaptureDB) Import(ctx context.Context, dest ports.WindowStore, filter string) (ImportStats, error) {
	stats := ImportStats{BatchID: uuid.NewString()}

	markets, err := c.listMarkets(ctx, filter)
	if err != nil {
		return stats, fmt.Errorf("capture.Import: %w", err)
	}
	slog.Info("capture import started", "batch", stats.BatchID, "markets", len(markets), "filter", filter)

	for _, m := range markets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		ticks, hasOracle, err := c.loadTicks(ctx, m.slug)
		if err != nil {
			return stats, fmt.Errorf("capture.Import: %s: %w", m.slug, err)
		}
		if len(ticks) < MinTicksPerMarket || !hasOracle {
			slog.Debug("capture market skipped", "slug", m.slug, "ticks", len(ticks), "has_oracle", hasOracle)
			stats.MarketsSkipped++
			continue
		}

		duration := TimeframeSecs(m.timeframe)
		market := domain.Market{
			ID:           m.slug,
			Platform:     "polymarket",
			Description:  fmt.Sprintf("%s %s %s", strings.ToUpper(m.asset), m.timeframe, m.slug),
			Category:     m.asset,
			OpenTs:       m.windowTs,
			CloseTs:      m.windowTs + duration,
			DurationSecs: duration,
		}
		if err := dest.SaveMarket(ctx, market, oracleOutcome(ticks)); err != nil {
			return stats, fmt.Errorf("capture.Import: %w", err)
		}
		if err := dest.SaveTicks(ctx, ticks); err != nil {
			return stats, fmt.Errorf("capture.Import: %w", err)
		}

		stats.MarketsImported++
		stats.TicksImported += len(ticks)
	}

	slog.Info("capture import finished",
		"batch", stats.BatchID,
		"imported", stats.MarketsImported,
		"ticks", stats.TicksImported,
		"skipped", stats.MarketsSkipped,
	)
	return stats, nil
}

func (c *CaptureDB) listMarkets(ctx context.Context, filter string) ([]captureMarket, error) {
	query := `SELECT DISTINCT slug, asset, timeframe, window_ts FROM book_ticks`
	var args []any
	switch {
	case strings.Contains(filter, "%"):
		query += ` WHERE slug LIKE ?`
		args = append(args, filter)
	case filter != "":
		query += ` WHERE asset = ?`
		args = append(args, filter)
	}
	query += ` ORDER BY window_ts, slug`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var markets []captureMarket
	for rows.Next() {
		var m captureMarket
		if err := rows.Scan(&m.slug, &m.asset, &m.timeframe, &m.windowTs); err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// loadTicks lee los ticks de un slug ordenados por offset.
func (c *CaptureDB) loadTicks(ctx context.Context, slug string) ([]domain.Tick, bool, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT tick_ms, offset_ms, side,
		       best_bid, best_bid_size, best_ask, best_ask_size,
		       depth_at_049, depth_at_050, depth_at_051,
		       total_bid_depth, total_ask_depth, btc_price, chainlink_price
		FROM book_ticks
		WHERE slug = ?
		ORDER BY offset_ms, side
	`, slug)
	if err != nil {
		return nil, false, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var (
		ticks     []domain.Tick
		hasOracle bool
	)
	for rows.Next() {
		var (
			t                          domain.Tick
			side                       string
			bid, bidSize, ask, askSize sql.NullFloat64
			d049, d050, d051           sql.NullFloat64
			totalBid, totalAsk         sql.NullFloat64
			btc, chainlink             sql.NullFloat64
		)
		if err := rows.Scan(
			&t.TimestampMs, &t.OffsetMs, &side,
			&bid, &bidSize, &ask, &askSize,
			&d049, &d050, &d051,
			&totalBid, &totalAsk, &btc, &chainlink,
		); err != nil {
			return nil, false, fmt.Errorf("scan tick: %w", err)
		}

		t.MarketID = slug
		t.Side = mapSide(side)
		t.State = domain.SideState{
			BestBid:       bid.Float64,
			BestBidSize:   bidSize.Float64,
			BestAsk:       ask.Float64,
			BestAskSize:   askSize.Float64,
			Depth:         depthLevels(d049.Float64, d050.Float64, d051.Float64),
			TotalBidDepth: totalBid.Float64,
			TotalAskDepth: totalAsk.Float64,
		}
		t.ReferencePrice = btc.Float64
		t.OraclePrice = chainlink.Float64
		if chainlink.Valid && chainlink.Float64 > 0 {
			hasOracle = true
		}
		ticks = append(ticks, t)
	}
	return ticks, hasOracle, rows.Err()
}

// oracleOutcome compara el primer y el último precio de oráculo.
func oracleOutcome(ticks []domain.Tick) domain.Outcome {
	var first, last float64
	for _, t := range ticks {
		if t.OraclePrice <= 0 {
			continue
		}
		if first == 0 {
			first = t.OraclePrice
		}
		last = t.OraclePrice
	}
	return domain.OutcomeFromPrices(first, last)
}

// mapSide convierte UP/DOWN de Polymarket a YES/NO.
func mapSide(s string) domain.Side {
	if strings.EqualFold(s, "UP") {
		return domain.SideYes
	}
	return domain.SideNo
}

// depthLevels arma los niveles de profundidad de las tres columnas fijas.
// Solo incluye los niveles con profundidad positiva.
func depthLevels(d049, d050, d051 float64) []domain.PriceLevel {
	var levels []domain.PriceLevel
	for _, l := range []domain.PriceLevel{
		{Price: 0.49, CumulativeSize: d049},
		{Price: 0.50, CumulativeSize: d050},
		{Price: 0.51, CumulativeSize: d051},
	} {
		if l.CumulativeSize > 0 {
			levels = append(levels, l)
		}
	}
	return levels
}

// TimeframeSecs convierte "5m", "15m", "1h"... a segundos. Lo que no se
// entiende cuenta como 15 minutos.
func TimeframeSecs(tf string) int64 {
	switch tf {
	case "5m":
		return 300
	case "15m":
		return 900
	case "1h":
		return 3600
	}
	var n int64
	switch {
	case strings.HasSuffix(tf, "m"):
		if _, err := fmt.Sscanf(tf, "%dm", &n); err == nil && n > 0 {
			return n * 60
		}
	case strings.HasSuffix(tf, "h"):
		if _, err := fmt.Sscanf(tf, "%dh", &n); err == nil && n > 0 {
			return n * 3600
		}
	}
	return 900
}
