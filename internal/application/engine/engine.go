package engine

import (
	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// QueuePosition estima las shares delante de una nueva orden a bidPrice.
// FIFO dentro de un nivel de precio: la orden entra al final de la cola.
//
// Con niveles de profundidad usa la profundidad acumulada en ese precio.
// Sin ellos: el tamaño del best bid si el precio lo iguala, 0 si lo mejora,
// y la profundidad total de bids si queda por debajo.
func QueuePosition(snap domain.BookSnapshot, side domain.Side, bidPrice float64) float64 {
	state := snap.Side(side)
	if len(state.Depth) > 0 {
		return nonNegative(state.BidDepthAt(bidPrice))
	}
	switch {
	case state.BestBid <= 0:
		return nonNegative(state.TotalBidDepth)
	case domain.SamePrice(state.BestBid, bidPrice):
		return nonNegative(state.BestBidSize)
	case bidPrice > state.BestBid:
		return 0
	default:
		return nonNegative(state.TotalBidDepth)
	}
}

// TakerVolume es la caída de profundidad en price entre dos snapshots.
// Los aumentos son órdenes nuevas que entran detrás y no cuentan.
func TakerVolume(prev, curr domain.BookSnapshot, side domain.Side, price float64) float64 {
	p := prev.Side(side)
	c := curr.Side(side)
	var before, after float64
	if len(p.Depth) > 0 && len(c.Depth) > 0 {
		before, after = p.BidDepthAt(price), c.BidDepthAt(price)
	} else if domain.SamePrice(p.BestBid, price) && domain.SamePrice(c.BestBid, price) {
		before, after = p.BestBidSize, c.BestBidSize
	} else {
		return 0
	}
	return nonNegative(before - after)
}

func nonNegative(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}
