package domain

import (
	"fmt"
	"math"
)

// Order es una orden límite de compra simulada.
// Solo el fill model (queue y fills) y la cancelación explícita la mutan.
type Order struct {
	ID          string
	Side        Side
	Price       float64
	Size        float64
	Filled      float64
	PlacedTick  int
	PlacedAtMs  int64
	QueueAhead  float64 // shares delante en la cola; nunca crece
	QueueAtOpen float64 // valor inicial de QueueAhead
}

// Remaining devuelve el tamaño aún sin llenar.
func (o Order) Remaining() float64 {
	r := o.Size - o.Filled
	if r < 0 {
		return 0
	}
	return r
}

// IsFilled devuelve true si la orden está completamente llena.
func (o Order) IsFilled() bool {
	return o.Remaining() <= priceEpsilon
}

// ReduceQueue descuenta shares de la cola por delante, con clamp a 0.
func (o *Order) ReduceQueue(shares float64) {
	if shares <= 0 || math.IsNaN(shares) {
		return
	}
	o.QueueAhead -= shares
	if o.QueueAhead < 0 {
		o.QueueAhead = 0
	}
}

// ActionKind identifica el tipo de Action.
type ActionKind string

const (
	ActionPlaceBid ActionKind = "place_bid"
	ActionCancel   ActionKind = "cancel"
)

// Action es lo que una estrategia pide en un tick.
// PlaceBid usa Side, Price y Size; Cancel solo usa Side.
type Action struct {
	Kind  ActionKind
	Side  Side
	Price float64
	Size  float64
}

// PlaceBid construye una Action de compra.
func PlaceBid(side Side, price, size float64) Action {
	return Action{Kind: ActionPlaceBid, Side: side, Price: price, Size: size}
}

// Cancel construye una Action de cancelación.
func Cancel(side Side) Action {
	return Action{Kind: ActionCancel, Side: side}
}

// Validate rechaza actions fuera del vocabulario: tipo o lado desconocido,
// precio/tamaño no positivo o no finito, precio por encima de 1.
func (a Action) Validate() error {
	if !a.Side.Valid() {
		return fmt.Errorf("domain.Action.Validate: side %q: %w", a.Side, ErrInvalidAction)
	}
	switch a.Kind {
	case ActionCancel:
		return nil
	case ActionPlaceBid:
	default:
		return fmt.Errorf("domain.Action.Validate: kind %q: %w", a.Kind, ErrInvalidAction)
	}
	if !finitePositive(a.Price) || a.Price > 1 {
		return fmt.Errorf("domain.Action.Validate: price %v: %w", a.Price, ErrInvalidAction)
	}
	if !finitePositive(a.Size) {
		return fmt.Errorf("domain.Action.Validate: size %v: %w", a.Size, ErrInvalidAction)
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// FillTrigger indica qué regla del fill model produjo el fill.
type FillTrigger string

const (
	TriggerAdverse    FillTrigger = "adverse"
	TriggerBackground FillTrigger = "background"
)

// Fill es una ejecución simulada, siempre al precio límite de la orden.
type Fill struct {
	OrderID  string
	Side     Side
	Tick     int
	OffsetMs int64
	Price    float64
	Size     float64
	Trigger  FillTrigger
}

// PnL valora shares compradas a price contra el outcome: el ganador paga 1.
func PnL(outcome Outcome, side Side, price, shares float64) float64 {
	if outcome.Matches(side) {
		return shares * (1 - price)
	}
	return -shares * price
}
