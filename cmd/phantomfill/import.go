package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/phantomfill/internal/adapters/binance"
	"github.com/alejandrodnm/phantomfill/internal/adapters/capture"
	"github.com/alejandrodnm/phantomfill/internal/adapters/notify"
	"github.com/alejandrodnm/phantomfill/internal/adapters/storage"
	"github.com/alejandrodnm/phantomfill/internal/domain"
)

//nolint:gochecknoglobals // Cobra boilerplate
var importOpts struct {
	source      string
	format      string
	dest        string
	asset       string
	limit       int
	binanceBase string
	noResolve   bool
}

//nolint:gochecknoglobals // Cobra boilerplate
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import recorded windows into the window database",
	Long: `Imports recorded market windows into the native window database.

  --format sqlite  reads a capture database (book_ticks table). Outcomes come
                   from the first and last chainlink price of each window.
  --format jsonl   reads a directory of NDJSON orderbook dumps. Outcomes come
                   from the matching Binance kline (open vs close).

--asset filters by coin; with --format sqlite a value containing '%' is used
as a LIKE pattern on the market slug.`,
	Example: `  phantomfill import --source capture.db --format sqlite --dest data/btc.db --asset btc
  phantomfill import --source dumps/ --format jsonl --dest data/hf.db --limit 500`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(importCmd)
	f := importCmd.Flags()
	f.StringVar(&importOpts.source, "source", "", "capture database file or NDJSON directory")
	f.StringVar(&importOpts.format, "format", "sqlite", "source format: sqlite|jsonl")
	f.StringVar(&importOpts.dest, "dest", "", "destination window database (overrides config)")
	f.StringVar(&importOpts.asset, "asset", "", "only import this asset (btc, eth...) or slug pattern")
	f.IntVar(&importOpts.limit, "limit", 0, "jsonl: import at most this many files, 0 = all")
	f.StringVar(&importOpts.binanceBase, "binance-base", binance.DefaultBase, "jsonl: Binance REST base URL")
	f.BoolVar(&importOpts.noResolve, "no-resolve", false, "jsonl: skip outcome resolution, windows stay unresolved")
	_ = importCmd.MarkFlagRequired("source")
}

func runImport(cmd *cobra.Command, args []string) error {
	if importOpts.dest != "" {
		cfg.Storage.DSN = importOpts.dest
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Sin cache: el import solo escribe.
	dest, err := storage.NewSQLiteStorage(cfg.Storage.DSN, storage.WithCacheSnapshots(0))
	if err != nil {
		return err
	}
	defer dest.Close()

	var stats capture.ImportStats
	switch strings.ToLower(importOpts.format) {
	case "sqlite":
		src, err := capture.OpenCaptureDB(importOpts.source)
		if err != nil {
			return err
		}
		defer src.Close()
		stats, err = src.Import(ctx, dest, importOpts.asset)
		if err != nil {
			return err
		}
	case "jsonl", "ndjson":
		var resolver capture.OutcomeResolver
		if !importOpts.noResolve {
			resolver = binance.NewResolver(binance.NewClient(importOpts.binanceBase))
		}
		im := capture.NewJSONLImporter(dest, resolver, strings.ToLower(importOpts.asset), importOpts.limit)
		stats, err = im.ImportDir(ctx, importOpts.source)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown import format %q (sqlite|jsonl): %w", importOpts.format, domain.ErrInvalidConfig)
	}

	slog.Info("import finished", "batch", stats.BatchID, "dest", cfg.Storage.DSN)
	notify.NewConsoleWriter(cmd.OutOrStdout()).ImportStats(
		stats.BatchID, stats.MarketsImported, stats.TicksImported, stats.MarketsSkipped, stats.RowsFiltered)
	return nil
}
