package strategy

import "github.com/alejandrodnm/phantomfill/internal/domain"

const DepthName = "depth"

// Depth es Momentum con un filtro extra: el lado predicho debe tener más
// profundidad de bids en BidPrice que el otro. Empate = no opera.
type Depth struct {
	p          Params
	openOracle float64
	acted      bool
}

func NewDepth(p Params) *Depth {
	return &Depth{p: p}
}

func (s *Depth) Name() string { return DepthName }

func (s *Depth) OnMarketOpen(snap domain.BookSnapshot) error {
	s.openOracle = snap.OraclePrice
	return nil
}

func (s *Depth) OnTick(snap domain.BookSnapshot) ([]domain.Action, error) {
	if s.acted || snap.OffsetMs < s.p.SignalOffsetMs {
		return nil, nil
	}
	s.acted = true

	bps, ok := momentumBps(s.openOracle, snap.OraclePrice)
	if !ok || abs(bps) < s.p.MinBps {
		return nil, nil
	}

	yes := snap.Yes.BidDepthAt(s.p.BidPrice)
	no := snap.No.BidDepthAt(s.p.BidPrice)
	var depthSide domain.Side
	switch {
	case yes > no:
		depthSide = domain.SideYes
	case no > yes:
		depthSide = domain.SideNo
	default:
		return nil, nil
	}

	side := predictedSide(bps)
	if side != depthSide {
		return nil, nil
	}
	return []domain.Action{domain.PlaceBid(side, s.p.BidPrice, s.p.Shares)}, nil
}

func (s *Depth) OnReset() error {
	s.openOracle = 0
	s.acted = false
	return nil
}
