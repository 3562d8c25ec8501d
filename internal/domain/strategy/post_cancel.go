package strategy

import "github.com/alejandrodnm/phantomfill/internal/domain"

const PostCancelName = "post_cancel"

// PostCancel puja en ambos lados al abrir y, en el punto de señal, cancela
// el perdedor previsto. Si la señal es débil o falta el oráculo cancela ambos.
type PostCancel struct {
	p           Params
	openOracle  float64
	placed      bool
	signalActed bool
}

func NewPostCancel(p Params) *PostCancel {
	return &PostCancel{p: p}
}

func (s *PostCancel) Name() string { return PostCancelName }

func (s *PostCancel) OnMarketOpen(snap domain.BookSnapshot) error {
	s.openOracle = snap.OraclePrice
	return nil
}

func (s *PostCancel) OnTick(snap domain.BookSnapshot) ([]domain.Action, error) {
	if !s.placed {
		s.placed = true
		return []domain.Action{
			domain.PlaceBid(domain.SideYes, s.p.BidPrice, s.p.Shares),
			domain.PlaceBid(domain.SideNo, s.p.BidPrice, s.p.Shares),
		}, nil
	}
	if s.signalActed || snap.OffsetMs < s.p.SignalOffsetMs {
		return nil, nil
	}
	s.signalActed = true

	bps, ok := momentumBps(s.openOracle, snap.OraclePrice)
	if !ok || abs(bps) < s.p.MinBps {
		return []domain.Action{domain.Cancel(domain.SideYes), domain.Cancel(domain.SideNo)}, nil
	}
	return []domain.Action{domain.Cancel(predictedSide(bps).Opposite())}, nil
}

func (s *PostCancel) OnReset() error {
	s.openOracle = 0
	s.placed = false
	s.signalActed = false
	return nil
}
