package strategy

import "github.com/alejandrodnm/phantomfill/internal/domain"

const GabagoolName = "gabagool"

// Gabagool compra YES y NO en momentos distintos cuando la suma de best bids
// está por debajo de MaxCombined: primero el lado más barato y, en un tick
// posterior, el otro si la suma sigue por debajo.
type Gabagool struct {
	p         Params
	yesPlaced bool
	noPlaced  bool
}

func NewGabagool(p Params) *Gabagool {
	return &Gabagool{p: p}
}

func (s *Gabagool) Name() string { return GabagoolName }

func (s *Gabagool) OnTick(snap domain.BookSnapshot) ([]domain.Action, error) {
	if s.yesPlaced && s.noPlaced {
		return nil, nil
	}
	yes, no := snap.Yes.BestBid, snap.No.BestBid
	if yes+no >= s.p.MaxCombined {
		return nil, nil
	}

	switch {
	case !s.yesPlaced && !s.noPlaced:
		if yes > 0 && yes <= no {
			s.yesPlaced = true
			return []domain.Action{domain.PlaceBid(domain.SideYes, yes, s.p.Shares)}, nil
		}
		if no > 0 {
			s.noPlaced = true
			return []domain.Action{domain.PlaceBid(domain.SideNo, no, s.p.Shares)}, nil
		}
	case s.yesPlaced && no > 0:
		s.noPlaced = true
		return []domain.Action{domain.PlaceBid(domain.SideNo, no, s.p.Shares)}, nil
	case s.noPlaced && yes > 0:
		s.yesPlaced = true
		return []domain.Action{domain.PlaceBid(domain.SideYes, yes, s.p.Shares)}, nil
	}
	return nil, nil
}

func (s *Gabagool) OnReset() error {
	s.yesPlaced = false
	s.noPlaced = false
	return nil
}
