package replay

import (
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/phantomfill/internal/application/engine"
	"github.com/alejandrodnm/phantomfill/internal/application/engine/fill"
	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/alejandrodnm/phantomfill/internal/domain/strategy"
)

var sides = [2]domain.Side{domain.SideYes, domain.SideNo}

func sideIndex(s domain.Side) int {
	if s == domain.SideNo {
		return 1
	}
	return 0
}

// naiveBid es una PlaceBid aceptada en el ledger naive.
type naiveBid struct {
	side      domain.Side
	price     float64
	size      float64
	cancelled bool
}

// slot es la orden de un lado en los dos ledgers a la vez. Ocupa el lado
// hasta que un Cancel la retira sin fills; una orden llenada nunca lo libera.
type slot struct {
	order   *domain.Order
	naive   *naiveBid
	stopped bool // cancelada con fills parciales: no recibe más fills
}

func (s *slot) resolvable(tick int) bool {
	return !s.stopped && !s.order.IsFilled() && s.order.PlacedTick < tick
}

// run es el estado mutable de una sola ventana.
type run struct {
	model  *fill.Model
	window domain.Window
	rng    fill.Rand

	slots  [2]*slot
	orders []*domain.Order // todas las órdenes colocadas, en orden
	fills  []domain.Fill
	naive  []*naiveBid

	actions int
	invalid int
}

func (r *run) play(s strategy.Strategy) error {
	snaps := r.window.Snapshots

	if opener, ok := s.(strategy.MarketOpener); ok {
		if err := call(func() error { return opener.OnMarketOpen(snaps[0]) }); err != nil {
			return fmt.Errorf("on_market_open: %w", err)
		}
	}

	for i, snap := range snaps {
		var actions []domain.Action
		err := call(func() error {
			var err error
			actions, err = s.OnTick(snap)
			return err
		})
		if err != nil {
			return fmt.Errorf("on_tick at %dms: %w", snap.OffsetMs, err)
		}

		for _, a := range actions {
			r.apply(i, snap, a)
		}

		if i > 0 {
			r.resolve(i, snaps[i-1], snap)
		}
	}
	return nil
}

// apply valida y aplica una Action. Las inválidas se descartan una a una.
func (r *run) apply(tick int, snap domain.BookSnapshot, a domain.Action) {
	if err := a.Validate(); err != nil {
		r.invalid++
		slog.Debug("replay: invalid action discarded",
			"market", r.window.Market.ID,
			"offset_ms", snap.OffsetMs,
			"err", err,
		)
		return
	}
	r.actions++
	idx := sideIndex(a.Side)

	switch a.Kind {
	case domain.ActionPlaceBid:
		if r.slots[idx] != nil {
			return
		}
		queue := engine.QueuePosition(snap, a.Side, a.Price)
		o := &domain.Order{
			ID:          fmt.Sprintf("%s-%s-%d", r.window.Market.ID, a.Side, len(r.orders)+1),
			Side:        a.Side,
			Price:       a.Price,
			Size:        a.Size,
			PlacedTick:  tick,
			PlacedAtMs:  snap.OffsetMs,
			QueueAhead:  queue,
			QueueAtOpen: queue,
		}
		nb := &naiveBid{side: a.Side, price: a.Price, size: a.Size}
		r.slots[idx] = &slot{order: o, naive: nb}
		r.orders = append(r.orders, o)
		r.naive = append(r.naive, nb)

	case domain.ActionCancel:
		sl := r.slots[idx]
		if sl == nil {
			return
		}
		if sl.order.Filled > 0 {
			// lo ya ejecutado queda en ambos ledgers
			sl.stopped = true
			return
		}
		sl.naive.cancelled = true
		r.slots[idx] = nil
	}
}

// resolve pide al fill model un veredicto para cada orden abierta colocada
// antes de este tick. YES siempre se resuelve antes que NO.
func (r *run) resolve(tick int, prev, curr domain.BookSnapshot) {
	elapsed := float64(curr.OffsetMs-prev.OffsetMs) / 1000
	for idx := range sides {
		sl := r.slots[idx]
		if sl == nil || !sl.resolvable(tick) {
			continue
		}
		f, ok := r.model.ResolveTick(sl.order, prev, curr, elapsed, r.rng)
		if !ok {
			continue
		}
		f.Tick = tick
		r.fills = append(r.fills, f)
	}
}

// result valora los dos ledgers contra el outcome.
func (r *run) result(res domain.ReplayResult) domain.ReplayResult {
	outcome := r.window.Outcome
	snaps := r.window.Snapshots

	res.Actions = r.actions
	res.InvalidActions = r.invalid
	res.Fills = r.fills
	res.OrdersPlaced = len(r.orders)
	res.RefPriceOpen = snaps[0].ReferencePrice
	res.RefPriceClose = snaps[len(snaps)-1].ReferencePrice
	res.Traded = len(r.orders) > 0

	for _, nb := range r.naive {
		if nb.cancelled {
			continue
		}
		if res.Predicted == "" {
			res.Predicted = nb.side
		}
		if outcome.Matches(nb.side) {
			res.NaiveCorrect = true
		}
		res.NaivePnL += domain.PnL(outcome, nb.side, nb.price, nb.size)
	}

	var filledBySide [2]float64
	for _, f := range r.fills {
		res.RealisticPnL += domain.PnL(outcome, f.Side, f.Price, f.Size)
		res.SharesFilled += f.Size
		filledBySide[sideIndex(f.Side)] += f.Size
	}
	if len(r.fills) > 0 {
		res.Filled = true
		res.FirstFillMs = r.fills[0].OffsetMs
	}

	for _, o := range r.orders {
		res.SharesRequested += o.Size
	}
	if res.SharesRequested > 0 {
		res.FillRate = res.SharesFilled / res.SharesRequested
	}

	yes, no := filledBySide[0], filledBySide[1]
	switch {
	case yes > no:
		res.Correct = outcome.Matches(domain.SideYes)
	case no > yes:
		res.Correct = outcome.Matches(domain.SideNo)
	}

	res.QueueAheadAtPlace = primaryQueue(r.orders)
	return res
}

// primaryQueue devuelve la cola inicial de la primera orden con fills, o
// de la primera orden colocada si ninguna llenó.
func primaryQueue(orders []*domain.Order) float64 {
	for _, o := range orders {
		if o.Filled > 0 {
			return o.QueueAtOpen
		}
	}
	if len(orders) > 0 {
		return orders[0].QueueAtOpen
	}
	return 0
}
