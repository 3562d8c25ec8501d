package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/phantomfill/internal/application/engine/replay"
	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/alejandrodnm/phantomfill/internal/domain/strategy"
	"github.com/alejandrodnm/phantomfill/internal/ports"
)

// ErrNaiveDrift means naive PnL differed between runs of the same batch.
// Naive PnL comes from actions alone, so this is always a bug.
var ErrNaiveDrift = errors.New("naive pnl drifted across runs")

// Factory crea una instancia nueva de estrategia para cada replay.
type Factory func() (strategy.Strategy, error)

// Config controla un batch de Monte Carlo.
type Config struct {
	Strategy    string
	Runs        int
	Seed        uint64
	Workers     int       // <= 0 usa runtime.NumCPU()
	Percentiles []float64 // por defecto p5 y p95
}

// DefaultConfig devuelve un backtest simple: un run, p5/p95.
func DefaultConfig() Config {
	return Config{Runs: 1, Percentiles: []float64{5, 95}}
}

// Batch es lo que devuelve un Monte Carlo: el resumen y el detalle
// por run y ventana (ventanas inutilizables omitidas).
type Batch struct {
	Summary domain.MonteCarloSummary
	Results [][]domain.ReplayResult
}

// Runner ejecuta el replay engine una vez por (run, ventana).
type Runner struct {
	cfg     Config
	engine  *replay.Engine
	factory Factory
}

// New crea un Runner.
func New(cfg Config, engine *replay.Engine, factory Factory) *Runner {
	if cfg.Runs <= 0 {
		cfg.Runs = 1
	}
	if len(cfg.Percentiles) == 0 {
		cfg.Percentiles = []float64{5, 95}
	}
	return &Runner{cfg: cfg, engine: engine, factory: factory}
}

// Run drains src once and replays every window Runs times.
//
// An empty source returns domain.ErrDataExhausted with an empty batch.
// Cancelling ctx stops the batch between replays; a replay already
// running is never interrupted.
func (r *Runner) Run(ctx context.Context, src ports.WindowSource) (Batch, error) {
	start := time.Now()

	windows, err := drain(ctx, src)
	if err != nil {
		return Batch{}, fmt.Errorf("montecarlo.Run: read windows: %w", err)
	}
	if len(windows) == 0 {
		return Batch{}, fmt.Errorf("montecarlo.Run: %w", domain.ErrDataExhausted)
	}

	runID := uuid.NewString()
	slog.Info("montecarlo: batch starting",
		"run_id", runID,
		"strategy", r.cfg.Strategy,
		"windows", len(windows),
		"runs", r.cfg.Runs,
		"seed", r.cfg.Seed,
	)

	cells, err := r.replayAll(ctx, windows)
	if err != nil {
		return Batch{}, fmt.Errorf("montecarlo.Run: %w", err)
	}

	results := make([][]domain.ReplayResult, r.cfg.Runs)
	reports := make([]domain.Report, r.cfg.Runs)
	skipped := 0
	for run := range cells {
		for _, c := range cells[run] {
			if c.err != nil {
				if run == 0 {
					skipped++
				}
				continue
			}
			results[run] = append(results[run], c.result)
		}
		reports[run] = domain.NewReport(r.cfg.Strategy, run, RunSeed(r.cfg.Seed, run), results[run])
	}
	if skipped == len(windows) {
		return Batch{}, fmt.Errorf("montecarlo.Run: all %d windows unusable: %w", skipped, domain.ErrDataExhausted)
	}

	summary, err := summarize(reports, r.cfg.Percentiles)
	if err != nil {
		return Batch{}, fmt.Errorf("montecarlo.Run: %w", err)
	}
	summary.RunID = runID
	summary.Strategy = r.cfg.Strategy
	summary.Seed = r.cfg.Seed

	elapsed := time.Since(start)
	BatchDurationSeconds.Observe(elapsed.Seconds())
	slog.Info("montecarlo: batch complete",
		"run_id", runID,
		"windows", summary.Windows,
		"skipped", skipped,
		"naive", fmt.Sprintf("%+.2f", summary.NaiveTotalPnL),
		"realistic_median", fmt.Sprintf("%+.2f", summary.RealisticMedian),
		"phantom_gap", fmt.Sprintf("%.2f", summary.PhantomGap),
		"elapsed", elapsed.Round(time.Millisecond),
	)

	return Batch{Summary: summary, Results: results}, nil
}

// replayOne ejecuta un job con su propia estrategia y su propio RNG.
func (r *Runner) replayOne(w domain.Window, run, window int) cell {
	s, err := r.factory()
	if err != nil {
		return cell{result: domain.ReplayResult{
			MarketID: w.Market.ID,
			Category: w.Market.Category,
			Outcome:  w.Outcome,
			Failed:   true,
			Fault:    fmt.Errorf("create strategy: %w: %w", domain.ErrStrategyFault, err).Error(),
		}}
	}
	if c, ok := s.(io.Closer); ok {
		defer c.Close()
	}

	rng := rand.New(rand.NewPCG(RunSeed(r.cfg.Seed, run), uint64(window)))
	res, err := r.engine.Run(w, s, rng)
	return cell{result: res, err: err}
}

// RunSeed deriva la semilla de un run a partir de la semilla base (splitmix64).
func RunSeed(base uint64, run int) uint64 {
	z := base + uint64(run+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func drain(ctx context.Context, src ports.WindowSource) ([]domain.Window, error) {
	var windows []domain.Window
	for {
		w, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return windows, nil
		}
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
}
