package capture

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/alejandrodnm/phantomfill/internal/ports"
)

// tickBatchSize es cada cuántos ticks se vuelca a la DB al leer un archivo.
const tickBatchSize = 10_000

// OutcomeResolver resuelve el outcome de una ventana que no trae precios de
// oráculo propios.
type OutcomeResolver interface {
	Resolve(ctx context.Context, coin, timeframe string, openTs int64) (domain.Outcome, error)
}

// Row es una fila de los dumps NDJSON de libros de Polymarket.
type Row struct {
	Ts           int64    `json:"ts"`       // unix ms
	Progress     float64  `json:"progress"` // 0.0 → 1.0 dentro de la ventana
	Type         int      `json:"type"`     // 1 = libro, 2 = trade
	OutcomeUp    *int     `json:"outcome_up"`
	OutcomeDown  *int     `json:"outcome_down"`
	BestBid      *float64 `json:"best_bid"`
	BestBidSize  *float64 `json:"best_bid_size"`
	BestAsk      *float64 `json:"best_ask"`
	BestAskSize  *float64 `json:"best_ask_size"`
	BidSizeTotal *float64 `json:"bid_size_total"`
	AskSizeTotal *float64 `json:"ask_size_total"`
}

// FileInfo son los datos que se sacan del nombre de un dump, p. ej.
// `btc15m_market42_2026-01-15_10-30-00.ndjson`.
type FileInfo struct {
	MarketID     string // "hf-btc15m-42"
	OpenTs       int64
	Coin         string
	Timeframe    string
	DurationSecs int64
}

// ParseFilename extrae FileInfo del nombre de un dump.
func ParseFilename(name string) (FileInfo, error) {
	stem := strings.TrimSuffix(strings.TrimSuffix(name, ".ndjson"), ".jsonl")

	prefix, rest, ok := strings.Cut(stem, "_market")
	if !ok {
		return FileInfo{}, fmt.Errorf("capture.ParseFilename: %q doesn't match {coin}{tf}_market{id}_{date}_{time}", name)
	}

	var info FileInfo
	for _, tf := range []string{"15m", "5m", "1h"} {
		if coin, found := strings.CutSuffix(prefix, tf); found {
			info.Coin, info.Timeframe, info.DurationSecs = coin, tf, TimeframeSecs(tf)
			break
		}
	}
	if info.Timeframe == "" {
		return FileInfo{}, fmt.Errorf("capture.ParseFilename: unknown timeframe in %q", prefix)
	}

	parts := strings.SplitN(rest, "_", 3)
	if len(parts) != 3 || parts[0] == "" {
		return FileInfo{}, fmt.Errorf("capture.ParseFilename: cannot parse market id and datetime from %q", rest)
	}
	open, err := time.Parse("2006-01-02_15-04-05", parts[1]+"_"+parts[2])
	if err != nil {
		return FileInfo{}, fmt.Errorf("capture.ParseFilename: datetime: %w", err)
	}

	info.OpenTs = open.UTC().Unix()
	info.MarketID = fmt.Sprintf("hf-%s%s-%s", info.Coin, info.Timeframe, parts[0])
	return info, nil
}

// MapRow convierte una fila en un Tick. ok es false para trades y filas sin
// lado claro.
//
// La profundidad se aproxima concentrando todo el bid en el best bid: el
// fill model queda más difícil de llenar, nunca más fácil.
func MapRow(row Row, marketID string, durationSecs int64) (domain.Tick, bool) {
	if row.Type != 1 {
		return domain.Tick{}, false
	}

	var side domain.Side
	switch {
	case row.OutcomeUp != nil && *row.OutcomeUp == 1:
		side = domain.SideYes
	case row.OutcomeDown != nil && *row.OutcomeDown == 1:
		side = domain.SideNo
	default:
		return domain.Tick{}, false
	}

	state := domain.SideState{
		BestBid:       deref(row.BestBid),
		BestBidSize:   deref(row.BestBidSize),
		BestAsk:       deref(row.BestAsk),
		BestAskSize:   deref(row.BestAskSize),
		TotalBidDepth: deref(row.BidSizeTotal),
		TotalAskDepth: deref(row.AskSizeTotal),
	}
	if state.BestBid > 0 && state.TotalBidDepth > 0 {
		state.Depth = []domain.PriceLevel{{Price: state.BestBid, CumulativeSize: state.TotalBidDepth}}
	}

	return domain.Tick{
		MarketID:    marketID,
		Side:        side,
		TimestampMs: row.Ts,
		OffsetMs:    int64(math.Round(row.Progress * float64(durationSecs*1000))),
		State:       state,
	}, true
}

// JSONLImporter importa un directorio de dumps NDJSON.
type JSONLImporter struct {
	dest     ports.WindowStore
	resolver OutcomeResolver // nil: ventanas sin resolver
	coin     string          // "" = todas
	limit    int             // 0 = sin límite
}

// NewJSONLImporter crea un importer. resolver puede ser nil.
func NewJSONLImporter(dest ports.WindowStore, resolver OutcomeResolver, coin string, limit int) *JSONLImporter {
	return &JSONLImporter{dest: dest, resolver: resolver, coin: coin, limit: limit}
}

// ImportDir importa todos los .ndjson/.jsonl bajo dir, en orden de nombre.
// Un archivo que falla se cuenta como saltado y el import sigue.
func (im *JSONLImporter) ImportDir(ctx context.Context, dir string) (ImportStats, error) {
	stats := ImportStats{BatchID: uuid.NewString()}

	files, err := collectFiles(dir)
	if err != nil {
		return stats, fmt.Errorf("capture.ImportDir: %w", err)
	}
	if im.limit > 0 && len(files) > im.limit {
		files = files[:im.limit]
	}
	slog.Info("jsonl import started", "batch", stats.BatchID, "dir", dir, "files", len(files))

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		info, err := ParseFilename(filepath.Base(path))
		if err != nil {
			slog.Warn("skipping file", "file", path, "err", err)
			stats.MarketsSkipped++
			continue
		}
		if im.coin != "" && info.Coin != im.coin {
			stats.MarketsSkipped++
			continue
		}

		imported, filtered, err := im.importFile(ctx, path, info)
		if err != nil {
			slog.Warn("error importing file", "file", path, "err", err)
			stats.MarketsSkipped++
			continue
		}
		stats.MarketsImported++
		stats.TicksImported += imported
		stats.RowsFiltered += filtered

		if (i+1)%100 == 0 || i+1 == len(files) {
			slog.Info("jsonl import progress",
				"files", fmt.Sprintf("%d/%d", i+1, len(files)),
				"markets", stats.MarketsImported,
				"ticks", stats.TicksImported,
			)
		}
	}
	return stats, nil
}

// importFile lee un archivo línea a línea y vuelca cada tickBatchSize ticks.
func (im *JSONLImporter) importFile(ctx context.Context, path string, info FileInfo) (imported, filtered int, err error) {
	outcome := domain.OutcomeUnresolved
	if im.resolver != nil {
		outcome, err = im.resolver.Resolve(ctx, info.Coin, info.Timeframe, info.OpenTs)
		if err != nil {
			slog.Warn("outcome unresolved", "market", info.MarketID, "err", err)
			outcome = domain.OutcomeUnresolved
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	market := domain.Market{
		ID:           info.MarketID,
		Platform:     "polymarket",
		Description:  fmt.Sprintf("%s %s window at %d", strings.ToUpper(info.Coin), info.Timeframe, info.OpenTs),
		Category:     info.Coin,
		OpenTs:       info.OpenTs,
		CloseTs:      info.OpenTs + info.DurationSecs,
		DurationSecs: info.DurationSecs,
	}
	if err := im.dest.SaveMarket(ctx, market, outcome); err != nil {
		return 0, 0, err
	}

	ticks := make([]domain.Tick, 0, tickBatchSize)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}

		var row Row
		if err := json.Unmarshal(raw, &row); err != nil {
			return imported, filtered, fmt.Errorf("line %d: %w", line, err)
		}
		tick, ok := MapRow(row, info.MarketID, info.DurationSecs)
		if !ok {
			filtered++
			continue
		}
		ticks = append(ticks, tick)
		imported++

		if len(ticks) >= tickBatchSize {
			if err := im.dest.SaveTicks(ctx, sortTicks(ticks)); err != nil {
				return imported, filtered, err
			}
			ticks = ticks[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return imported, filtered, fmt.Errorf("read: %w", err)
	}
	if err := im.dest.SaveTicks(ctx, sortTicks(ticks)); err != nil {
		return imported, filtered, err
	}

	slog.Debug("imported file", "market", info.MarketID, "imported", imported, "filtered", filtered)
	return imported, filtered, nil
}

// collectFiles busca recursivamente .ndjson y .jsonl bajo dir.
func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext == ".ndjson" || ext == ".jsonl" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// sortTicks ordena por offset; los dumps no garantizan orden.
func sortTicks(ticks []domain.Tick) []domain.Tick {
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].OffsetMs < ticks[j].OffsetMs })
	return ticks
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
