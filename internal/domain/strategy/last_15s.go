package strategy

import "github.com/alejandrodnm/phantomfill/internal/domain"

const Last15sName = "last_15s"

const last15sTriggerMs = 15_000

// Last15s compra, en los últimos 15 segundos de la ventana, el lado cuyo
// best bid está en MinBid o más, al precio del best bid observado.
// En la práctica ese nivel o está vacío o tiene una cola enorme delante.
type Last15s struct {
	p     Params
	acted bool
}

func NewLast15s(p Params) *Last15s {
	return &Last15s{p: p}
}

func (s *Last15s) Name() string { return Last15sName }

func (s *Last15s) OnTick(snap domain.BookSnapshot) ([]domain.Action, error) {
	if s.acted || snap.OffsetMs < s.p.WindowDurationMs-last15sTriggerMs {
		return nil, nil
	}

	yes, no := snap.Yes.BestBid, snap.No.BestBid
	var side domain.Side
	var price float64
	switch {
	case yes >= s.p.MinBid && yes >= no:
		side, price = domain.SideYes, yes
	case no >= s.p.MinBid:
		side, price = domain.SideNo, no
	default:
		return nil, nil
	}

	s.acted = true
	return []domain.Action{domain.PlaceBid(side, price, s.p.Shares)}, nil
}

func (s *Last15s) OnReset() error {
	s.acted = false
	return nil
}
