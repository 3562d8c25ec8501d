package montecarlo

// concurrent.go — worker pool para replays en paralelo.
//
// Cada job es un par (run, ventana) y escribe en su propia celda de la
// matriz de resultados, así que los workers no comparten estado mutable
// y el orden de terminación no afecta a la agregación.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/phantomfill/internal/domain"
)

type cell struct {
	result domain.ReplayResult
	err    error // ventana inutilizable (sin snapshots o sin outcome)
}

// replayAll ejecuta todos los jobs y devuelve la matriz [run][ventana].
// Si workers <= 0 usa runtime.NumCPU(): el replay es CPU-bound.
func (r *Runner) replayAll(ctx context.Context, windows []domain.Window) ([][]cell, error) {
	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	cells := make([][]cell, r.cfg.Runs)
	for run := range cells {
		cells[run] = make([]cell, len(windows))
	}

	type job struct {
		run    int
		window int
	}

	total := r.cfg.Runs * len(windows)
	workCh := make(chan job, workers*2)
	progress := rate.Sometimes{Interval: time.Second}
	var done atomic.Int64

	// Worker pool: cada worker toma jobs de workCh y escribe su celda.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range workCh {
				if ctx.Err() != nil {
					continue
				}
				cells[j.run][j.window] = r.replayOne(windows[j.window], j.run, j.window)
				ReplayJobsTotal.Inc()
				n := done.Add(1)
				progress.Do(func() {
					slog.Info("montecarlo: progress", "done", n, "total", total)
				})
			}
		}()
	}

	// Alimentar el work channel; se deja de encolar si ctx se cancela.
feed:
	for run := 0; run < r.cfg.Runs; run++ {
		for w := range windows {
			select {
			case <-ctx.Done():
				break feed
			case workCh <- job{run: run, window: w}:
			}
		}
	}
	close(workCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Debug("concurrent replay complete",
		"jobs", total,
		"workers", workers,
	)
	return cells, nil
}
