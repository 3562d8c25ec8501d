// Package export escribe resultados por ventana a CSV.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// WindowRow es una fila del CSV de resultados.
type WindowRow struct {
	Strategy          string  `csv:"strategy"`
	Run               int     `csv:"run"`
	Seed              uint64  `csv:"seed"`
	MarketID          string  `csv:"market_id"`
	Category          string  `csv:"category"`
	Outcome           string  `csv:"outcome"`
	Predicted         string  `csv:"predicted"`
	Traded            bool    `csv:"traded"`
	OrdersPlaced      int     `csv:"orders_placed"`
	SharesRequested   float64 `csv:"shares_requested"`
	SharesFilled      float64 `csv:"shares_filled"`
	FillRate          float64 `csv:"fill_rate"`
	QueueAheadAtPlace float64 `csv:"queue_ahead_at_place"`
	Filled            bool    `csv:"filled"`
	FirstFillMs       string  `csv:"fill_time_ms"` // vacío si no hubo fill
	Correct           bool    `csv:"correct"`
	NaiveCorrect      bool    `csv:"naive_correct"`
	NaivePnL          float64 `csv:"naive_pnl"`
	RealisticPnL      float64 `csv:"realistic_pnl"`
	PhantomGap        float64 `csv:"phantom_gap"`
	InvalidActions    int     `csv:"invalid_actions"`
	Failed            bool    `csv:"failed"`
	Fault             string  `csv:"fault"`
	RefPriceOpen      float64 `csv:"ref_price_open"`
	RefPriceClose     float64 `csv:"ref_price_close"`
}

// Rows convierte los resultados de un run en filas.
func Rows(report domain.Report, results []domain.ReplayResult) []WindowRow {
	rows := make([]WindowRow, 0, len(results))
	for _, r := range results {
		row := WindowRow{
			Strategy:          report.Strategy,
			Run:               report.Run,
			Seed:              report.Seed,
			MarketID:          r.MarketID,
			Category:          r.Category,
			Outcome:           string(r.Outcome),
			Predicted:         string(r.Predicted),
			Traded:            r.Traded,
			OrdersPlaced:      r.OrdersPlaced,
			SharesRequested:   r.SharesRequested,
			SharesFilled:      r.SharesFilled,
			FillRate:          r.FillRate,
			QueueAheadAtPlace: r.QueueAheadAtPlace,
			Filled:            r.Filled,
			Correct:           r.Correct,
			NaiveCorrect:      r.NaiveCorrect,
			NaivePnL:          r.NaivePnL,
			RealisticPnL:      r.RealisticPnL,
			PhantomGap:        r.PhantomGap(),
			InvalidActions:    r.InvalidActions,
			Failed:            r.Failed,
			Fault:             r.Fault,
			RefPriceOpen:      r.RefPriceOpen,
			RefPriceClose:     r.RefPriceClose,
		}
		if r.Filled {
			row.FirstFillMs = strconv.FormatInt(r.FirstFillMs, 10)
		}
		rows = append(rows, row)
	}
	return rows
}

// Write escribe las filas en CSV con cabecera.
func Write(w io.Writer, rows []WindowRow) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("export.Write: %w", err)
	}
	return nil
}

// WriteFile crea path (y sus directorios) y escribe las filas.
func WriteFile(path string, rows []WindowRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export.WriteFile: mkdir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export.WriteFile: create %q: %w", path, err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("export.WriteFile: marshal: %w", err)
	}
	slog.Info("exported window results", "path", path, "rows", len(rows))
	return nil
}
