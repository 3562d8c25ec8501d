package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/alejandrodnm/phantomfill/internal/adapters/export"
	"github.com/alejandrodnm/phantomfill/internal/adapters/notify"
	"github.com/alejandrodnm/phantomfill/internal/adapters/script"
	"github.com/alejandrodnm/phantomfill/internal/adapters/storage"
	"github.com/alejandrodnm/phantomfill/internal/application/engine/fill"
	"github.com/alejandrodnm/phantomfill/internal/application/engine/replay"
	"github.com/alejandrodnm/phantomfill/internal/application/montecarlo"
	"github.com/alejandrodnm/phantomfill/internal/domain"
	strategies "github.com/alejandrodnm/phantomfill/internal/domain/strategy"
	"github.com/alejandrodnm/phantomfill/internal/ports"
	"github.com/alejandrodnm/phantomfill/internal/strategy"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runOpts struct {
	strategies  string
	script      string
	db          string
	category    string
	runs        int
	seed        uint64
	workers     int
	shares      float64
	bidPrice    float64
	minBps      float64
	csv         string
	metricsAddr string
	windows     bool
}

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay stored windows through a strategy",
	Long: `Replays every stored window through the strategy and the fill model.

With --runs 1 prints a single backtest report. With more runs prints the
Monte Carlo distribution of realistic PnL against the deterministic naive PnL.
A comma-separated --strategy list prints a comparison table instead.`,
	Example: `  phantomfill run --strategy momentum --db data/btc.db --runs 200 --seed 7
  phantomfill run --strategy spread_arb,post_cancel --db data/btc.db
  phantomfill run --script strategies/my_arb.lua --db data/btc.db --csv out/windows.csv`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringVarP(&runOpts.strategies, "strategy", "s", "", "native strategy id, or a comma-separated list to compare")
	f.StringVar(&runOpts.script, "script", "", "path to a Lua strategy script")
	f.StringVar(&runOpts.db, "db", "", "path to the window database (overrides config)")
	f.StringVar(&runOpts.category, "category", "", "only replay windows of this category")
	f.IntVarP(&runOpts.runs, "runs", "n", 0, "Monte Carlo runs (overrides config)")
	f.Uint64Var(&runOpts.seed, "seed", 0, "base seed, 0 picks a random one (overrides config)")
	f.IntVar(&runOpts.workers, "workers", 0, "replay workers, 0 = NumCPU (overrides config)")
	f.Float64Var(&runOpts.shares, "shares", 0, "shares per order (overrides config)")
	f.Float64Var(&runOpts.bidPrice, "bid-price", 0, "default bid price (overrides config)")
	f.Float64Var(&runOpts.minBps, "min-bps", 0, "minimum oracle move in bps (overrides config)")
	f.StringVar(&runOpts.csv, "csv", "", "write per-window results of every run to this CSV file")
	f.StringVar(&runOpts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.BoolVar(&runOpts.windows, "windows", false, "print the per-window table of the first run")
	runCmd.MarkFlagsMutuallyExclusive("strategy", "script")
	runCmd.MarkFlagsOneRequired("strategy", "script")
}

// candidate es una estrategia lista para un batch.
type candidate struct {
	name    string
	factory strategy.Factory
}

func runBacktest(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd)

	params := cfg.StrategyParams()
	if err := params.Validate(); err != nil {
		return err
	}
	model, err := fill.NewModel(cfg.FillParams())
	if err != nil {
		return err
	}
	candidates, err := buildCandidates(params)
	if err != nil {
		return err
	}

	seed := cfg.MonteCarlo.Seed
	if seed == 0 {
		seed = rand.Uint64()
		slog.Info("no seed given, picked a random one", "seed", seed)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr)
		defer stop()
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN, storage.WithCacheSnapshots(cfg.Storage.CacheSnapshots))
	if err != nil {
		return err
	}
	defer store.Close()

	engine := replay.New(model)
	console := notify.NewConsoleWriter(cmd.OutOrStdout())
	var reporter ports.Reporter = console

	var (
		summaries []domain.MonteCarloSummary
		rows      []export.WindowRow
		first     montecarlo.Batch
	)
	for _, c := range candidates {
		src, err := store.Source(ctx, runOpts.category)
		if err != nil {
			return err
		}
		runner := montecarlo.New(montecarlo.Config{
			Strategy:    c.name,
			Runs:        cfg.MonteCarlo.Runs,
			Seed:        seed,
			Workers:     cfg.MonteCarlo.Workers,
			Percentiles: cfg.MonteCarlo.Percentiles,
		}, engine, montecarlo.Factory(c.factory))

		batch, err := runner.Run(ctx, src)
		if errors.Is(err, domain.ErrDataExhausted) {
			slog.Warn("no usable windows to replay", "strategy", c.name, "db", cfg.Storage.DSN, "category", runOpts.category)
			return nil
		}
		if err != nil {
			return err
		}

		if len(summaries) == 0 {
			first = batch
		}
		summaries = append(summaries, batch.Summary)
		for run, results := range batch.Results {
			rows = append(rows, export.Rows(batch.Summary.Reports[run], results)...)
		}
	}

	if len(summaries) == 1 {
		if err := reporter.Summary(summaries[0]); err != nil {
			return err
		}
	} else if err := console.Compare(summaries); err != nil {
		return err
	}
	if runOpts.windows && len(first.Results) > 0 {
		if err := reporter.Windows(first.Results[0]); err != nil {
			return err
		}
	}

	if runOpts.csv != "" {
		if err := export.WriteFile(runOpts.csv, rows); err != nil {
			return err
		}
	}
	return nil
}

// applyRunFlags pisa la configuración con los flags que el usuario pasó.
func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("db") {
		cfg.Storage.DSN = runOpts.db
	}
	if f.Changed("runs") && runOpts.runs > 0 {
		cfg.MonteCarlo.Runs = runOpts.runs
	}
	if f.Changed("seed") {
		cfg.MonteCarlo.Seed = runOpts.seed
	}
	if f.Changed("workers") {
		cfg.MonteCarlo.Workers = runOpts.workers
	}
	if f.Changed("shares") {
		cfg.Replay.Shares = runOpts.shares
	}
	if f.Changed("bid-price") {
		cfg.Replay.BidPrice = runOpts.bidPrice
	}
	if f.Changed("min-bps") {
		cfg.Replay.MinBps = runOpts.minBps
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr = runOpts.metricsAddr
	}
}

// buildCandidates resuelve --strategy o --script en factories.
func buildCandidates(params strategies.Params) ([]candidate, error) {
	if runOpts.script != "" {
		prog, err := script.Load(runOpts.script, params, script.Options{CallTimeout: cfg.Script.CallTimeout})
		if err != nil {
			return nil, err
		}
		return []candidate{{name: prog.Name(), factory: prog.NewStrategy}}, nil
	}

	registry := strategy.Default()
	var out []candidate
	for _, name := range strings.Split(runOpts.strategies, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		factory, err := registry.Factory(name, params)
		if err != nil {
			return nil, fmt.Errorf("%w (see `phantomfill strategies`)", err)
		}
		out = append(out, candidate{name: name, factory: factory})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no strategy given: %w", domain.ErrUnknownStrategy)
	}
	return out, nil
}

// serveMetrics expone /metrics en addr hasta que se llame a la función devuelta.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
