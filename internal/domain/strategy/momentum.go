package strategy

import "github.com/alejandrodnm/phantomfill/internal/domain"

const MomentumName = "momentum"

// Momentum espera al punto de señal y puja por el lado que predice el
// movimiento del oráculo desde la apertura, si supera MinBps.
type Momentum struct {
	p          Params
	openOracle float64
	acted      bool
}

func NewMomentum(p Params) *Momentum {
	return &Momentum{p: p}
}

func (s *Momentum) Name() string { return MomentumName }

func (s *Momentum) OnMarketOpen(snap domain.BookSnapshot) error {
	s.openOracle = snap.OraclePrice
	return nil
}

func (s *Momentum) OnTick(snap domain.BookSnapshot) ([]domain.Action, error) {
	if s.acted || snap.OffsetMs < s.p.SignalOffsetMs {
		return nil, nil
	}
	s.acted = true

	bps, ok := momentumBps(s.openOracle, snap.OraclePrice)
	if !ok || abs(bps) < s.p.MinBps {
		return nil, nil
	}
	return []domain.Action{domain.PlaceBid(predictedSide(bps), s.p.BidPrice, s.p.Shares)}, nil
}

func (s *Momentum) OnReset() error {
	s.openOracle = 0
	s.acted = false
	return nil
}
