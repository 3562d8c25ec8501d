package replay

// replay.go — ejecuta una ventana contra una instancia de estrategia.
//
// Por snapshot: OnTick → aplicar Actions → resolver fills de las órdenes
// colocadas en ticks anteriores. Una orden colocada en el tick i se resuelve
// por primera vez en i+1, contra el par (snapshot i, snapshot i+1).
//
// El PnL naive sale de un ledger aparte construido solo con Actions, así que
// no depende del RNG y es idéntico entre runs de Monte Carlo.

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/phantomfill/internal/application/engine/fill"
	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/alejandrodnm/phantomfill/internal/domain/strategy"
)

// Engine replays windows through a fill model. It holds no per-window state
// and can be shared by concurrent replays.
type Engine struct {
	model *fill.Model
}

// New crea un Engine con el fill model dado.
func New(model *fill.Model) *Engine {
	return &Engine{model: model}
}

// Run replays one window with one strategy instance and one random source.
//
// It returns an error only when the window itself is unusable (no snapshots
// or no resolved outcome). Strategy faults do not return an error: the
// result comes back with Failed set. OnReset is called exactly once.
func (e *Engine) Run(w domain.Window, s strategy.Strategy, rng fill.Rand) (result domain.ReplayResult, err error) {
	result = domain.ReplayResult{
		MarketID: w.Market.ID,
		Category: w.Market.Category,
		Outcome:  w.Outcome,
	}

	defer func() {
		if resetErr := call(s.OnReset); resetErr != nil && err == nil && !result.Failed {
			result = failed(result, fmt.Errorf("on_reset: %w", resetErr))
		}
		e.observe(result, err)
	}()

	if len(w.Snapshots) == 0 {
		return result, fmt.Errorf("replay.Run: %s: %w", w.Market.ID, domain.ErrEmptyWindow)
	}
	if !w.Outcome.Resolved() {
		return result, fmt.Errorf("replay.Run: %s: %w", w.Market.ID, domain.ErrUnresolved)
	}

	r := &run{model: e.model, window: w, rng: rng}
	if err := r.play(s); err != nil {
		result.InvalidActions = r.invalid
		return failed(result, err), nil
	}
	return r.result(result), nil
}

// observe registra métricas y un log de debug por ventana.
func (e *Engine) observe(res domain.ReplayResult, err error) {
	switch {
	case err != nil:
		WindowsReplayedTotal.WithLabelValues("skipped").Inc()
		slog.Debug("replay: window skipped", "market", res.MarketID, "err", err)
		return
	case res.Failed:
		WindowsReplayedTotal.WithLabelValues("failed").Inc()
		slog.Debug("replay: strategy fault", "market", res.MarketID, "fault", res.Fault)
		return
	}

	WindowsReplayedTotal.WithLabelValues("ok").Inc()
	for _, f := range res.Fills {
		FillsTotal.WithLabelValues(string(f.Trigger)).Inc()
	}
	if res.InvalidActions > 0 {
		InvalidActionsTotal.Add(float64(res.InvalidActions))
	}
	slog.Debug("replay: window complete",
		"market", res.MarketID,
		"outcome", res.Outcome,
		"predicted", res.Predicted,
		"naive", fmt.Sprintf("%+.2f", res.NaivePnL),
		"realistic", fmt.Sprintf("%+.2f", res.RealisticPnL),
		"fills", len(res.Fills),
	)
}

// failed convierte un resultado en una ventana abortada: sin fills, sin
// actions y con PnL cero.
func failed(res domain.ReplayResult, err error) domain.ReplayResult {
	return domain.ReplayResult{
		MarketID:       res.MarketID,
		Category:       res.Category,
		Outcome:        res.Outcome,
		InvalidActions: res.InvalidActions,
		Failed:         true,
		Fault:          err.Error(),
	}
}

// call ejecuta un callback de la estrategia convirtiendo panics en errores.
// Todo error devuelto envuelve domain.ErrStrategyFault.
func call(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v: %w", p, domain.ErrStrategyFault)
		}
	}()
	if err := fn(); err != nil {
		if errors.Is(err, domain.ErrStrategyFault) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrStrategyFault, err)
	}
	return nil
}
