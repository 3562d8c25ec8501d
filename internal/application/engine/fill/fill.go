package fill

// fill.go — modelo probabilístico de fills para órdenes límite de compra.
//
// Por tick, en orden:
//   - inferencia de cola: la caída de profundidad en nuestro precio consume
//     shares por delante (la cola nunca crece)
//   - regla adversa: el ask de nuestro lado cruza el límite, o la profundidad
//     del lado desaparece; fill completo con probabilidad AdverseFillProb
//   - flujo de fondo: eventos de taker con probabilidad por segundo Rf,
//     multiplicada tras SignalOffsetMs; el volumen consume la cola primero
//
// La primera regla que aplica gana. El precio del fill es siempre el límite.

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/phantomfill/internal/application/engine"
	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// Rand is the only thing the model needs from a random source.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Params are the calibrated constants of the model.
type Params struct {
	AdverseFillProb     float64 // fill probability on an adverse tick
	Rf                  float64 // background taker event probability per second
	SignalOffsetMs      int64   // informed-trader activation point
	PostSignalTakerMult float64 // Rf multiplier once SignalOffsetMs is reached
	TakerSize           float64 // shares per background event, 0 = unbounded
}

// DefaultParams devuelve la calibración por defecto.
func DefaultParams() Params {
	return Params{
		AdverseFillProb:     0.99,
		Rf:                  0.02,
		SignalOffsetMs:      90_000,
		PostSignalTakerMult: 1.8,
	}
}

// Validate checks every parameter is finite and in range.
func (p Params) Validate() error {
	check := func(name string, v, lo, hi float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < lo || v > hi {
			return fmt.Errorf("fill.Params: %s=%v outside [%v, %v]: %w", name, v, lo, hi, domain.ErrInvalidConfig)
		}
		return nil
	}
	if err := check("adverse_fill_prob", p.AdverseFillProb, 0, 1); err != nil {
		return err
	}
	if err := check("rf", p.Rf, 0, 1); err != nil {
		return err
	}
	if err := check("post_signal_taker_mult", p.PostSignalTakerMult, 0, math.MaxFloat64); err != nil {
		return err
	}
	if err := check("taker_size", p.TakerSize, 0, math.MaxFloat64); err != nil {
		return err
	}
	if p.SignalOffsetMs < 0 {
		return fmt.Errorf("fill.Params: signal_offset_ms=%d is negative: %w", p.SignalOffsetMs, domain.ErrInvalidConfig)
	}
	return nil
}

// Model resolves fills for resting orders. It holds no mutable state and is
// safe to share between concurrent replays.
type Model struct {
	p Params
}

// NewModel validates params and builds a Model.
func NewModel(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("fill.NewModel: %w", err)
	}
	return &Model{p: p}, nil
}

// Params devuelve la configuración del modelo.
func (m *Model) Params() Params {
	return m.p
}

// ResolveTick decides whether order fills between prev and curr.
// It mutates order (queue and filled size) and returns the fill, if any.
func (m *Model) ResolveTick(order *domain.Order, prev, curr domain.BookSnapshot, elapsedSeconds float64, rng Rand) (domain.Fill, bool) {
	remaining := order.Remaining()
	if remaining <= 0 {
		return domain.Fill{}, false
	}

	order.ReduceQueue(engine.TakerVolume(prev, curr, order.Side, order.Price))

	state := curr.Side(order.Side)
	if IsAdverseTick(prev.Side(order.Side), state, order.Price) {
		order.ReduceQueue(state.BestAskSize)
		if rng.Float64() < m.p.AdverseFillProb {
			order.QueueAhead = 0
			return m.record(order, curr, remaining, domain.TriggerAdverse), true
		}
		return domain.Fill{}, false
	}

	p := EventProbability(m.EffectiveRate(curr.OffsetMs), elapsedSeconds)
	if p <= 0 || rng.Float64() >= p {
		return domain.Fill{}, false
	}

	if m.p.TakerSize <= 0 {
		order.QueueAhead = 0
		return m.record(order, curr, remaining, domain.TriggerBackground), true
	}

	consumed := math.Min(m.p.TakerSize, order.QueueAhead)
	order.ReduceQueue(consumed)
	leftover := m.p.TakerSize - consumed
	if leftover <= 0 {
		return domain.Fill{}, false
	}
	return m.record(order, curr, math.Min(leftover, remaining), domain.TriggerBackground), true
}

// EffectiveRate devuelve Rf, multiplicado una vez alcanzado el punto de señal.
func (m *Model) EffectiveRate(offsetMs int64) float64 {
	rate := m.p.Rf
	if offsetMs >= m.p.SignalOffsetMs {
		rate *= m.p.PostSignalTakerMult
	}
	return math.Min(math.Max(rate, 0), 1)
}

// EventProbability converts a per-second rate into the probability of at
// least one event in dt seconds.
func EventProbability(rate, dt float64) float64 {
	if dt <= 0 || rate <= 0 {
		return 0
	}
	if rate >= 1 {
		return 1
	}
	return 1 - math.Pow(1-rate, dt)
}

// IsAdverseTick reports whether the book moved through our bid: the best
// ask on our side sits at or below our price, or the bid depth on that side
// was observed and has vanished.
func IsAdverseTick(prev, curr domain.SideState, price float64) bool {
	if curr.HasAsk() && curr.BestAsk <= price {
		return true
	}
	// Solo la transición >0 → 0 cuenta. Los feeds sin profundidad reportan
	// TotalBidDepth = 0 en todos los ticks, y eso no es un libro barrido.
	return prev.TotalBidDepth > 0 && curr.TotalBidDepth <= 0
}

func (m *Model) record(order *domain.Order, curr domain.BookSnapshot, size float64, trigger domain.FillTrigger) domain.Fill {
	order.Filled += size
	if order.Filled > order.Size {
		order.Filled = order.Size
	}
	return domain.Fill{
		OrderID:  order.ID,
		Side:     order.Side,
		OffsetMs: curr.OffsetMs,
		Price:    order.Price,
		Size:     size,
		Trigger:  trigger,
	}
}
