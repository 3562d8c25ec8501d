package strategy

import "github.com/alejandrodnm/phantomfill/internal/domain"

const SpreadArbName = "spread_arb"

// SpreadArb puja en ambos lados al mismo precio en el primer tick y nunca cancela.
// Con fills instantáneos siempre gana el spread; con colas reales no.
type SpreadArb struct {
	p      Params
	placed bool
}

func NewSpreadArb(p Params) *SpreadArb {
	return &SpreadArb{p: p}
}

func (s *SpreadArb) Name() string { return SpreadArbName }

func (s *SpreadArb) OnTick(_ domain.BookSnapshot) ([]domain.Action, error) {
	if s.placed {
		return nil, nil
	}
	s.placed = true
	return []domain.Action{
		domain.PlaceBid(domain.SideYes, s.p.BidPrice, s.p.Shares),
		domain.PlaceBid(domain.SideNo, s.p.BidPrice, s.p.Shares),
	}, nil
}

func (s *SpreadArb) OnReset() error {
	s.placed = false
	return nil
}
