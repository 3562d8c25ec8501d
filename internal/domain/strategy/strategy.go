package strategy

import (
	"fmt"

	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// Strategy define el contrato que el replay engine usa para dirigir una
// estrategia por una ventana. Nativas y scripts lo implementan igual.
//
// Una instancia nunca se comparte entre replays concurrentes.
type Strategy interface {
	// Name devuelve el identificador único de la estrategia.
	Name() string

	// OnTick recibe cada snapshot en orden y devuelve cero o más Actions.
	OnTick(snap domain.BookSnapshot) ([]domain.Action, error)

	// OnReset limpia el estado interno al final de cada ventana.
	OnReset() error
}

// MarketOpener es la capacidad opcional de recibir el primer snapshot
// antes del primer OnTick.
type MarketOpener interface {
	OnMarketOpen(snap domain.BookSnapshot) error
}

// Params son las constantes inyectadas al construir una estrategia.
// Se fijan una vez antes de cualquier ventana y no cambian durante el run.
type Params struct {
	Shares           float64
	BidPrice         float64
	MinBps           float64 // movimiento mínimo del oráculo, en basis points
	SignalOffsetMs   int64
	WindowDurationMs int64   // usado cuando la ventana no trae duración
	MinBid           float64 // last_15s: best bid mínimo para entrar
	MaxCombined      float64 // gabagool: suma máxima de bids
}

// DefaultParams devuelve los valores por defecto de la CLI.
func DefaultParams() Params {
	return Params{
		Shares:           10,
		BidPrice:         0.49,
		MinBps:           5,
		SignalOffsetMs:   90_000,
		WindowDurationMs: 900_000,
		MinBid:           0.98,
		MaxCombined:      0.99,
	}
}

// Validate rechaza constantes con las que ninguna estrategia puede operar.
func (p Params) Validate() error {
	switch {
	case !(p.Shares > 0):
		return fmt.Errorf("strategy.Params: shares=%v must be positive: %w", p.Shares, domain.ErrInvalidConfig)
	case !(p.BidPrice > 0 && p.BidPrice < 1):
		return fmt.Errorf("strategy.Params: bid_price=%v outside (0, 1): %w", p.BidPrice, domain.ErrInvalidConfig)
	case p.MinBps < 0:
		return fmt.Errorf("strategy.Params: min_bps=%v is negative: %w", p.MinBps, domain.ErrInvalidConfig)
	case p.SignalOffsetMs < 0 || p.WindowDurationMs <= 0:
		return fmt.Errorf("strategy.Params: offsets must be positive: %w", domain.ErrInvalidConfig)
	}
	return nil
}

// momentumBps devuelve el movimiento del oráculo desde la apertura en bps.
// ok es false si falta alguno de los dos precios.
func momentumBps(open, current float64) (bps float64, ok bool) {
	if open <= 0 || current <= 0 {
		return 0, false
	}
	return (current - open) / open * 10_000, true
}

// predictedSide devuelve YES para movimiento positivo y NO para negativo.
func predictedSide(bps float64) domain.Side {
	if bps > 0 {
		return domain.SideYes
	}
	return domain.SideNo
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
