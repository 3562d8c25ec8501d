package strategy

import (
	"fmt"
	"sort"

	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/alejandrodnm/phantomfill/internal/domain/strategy"
)

// Factory crea una instancia nueva de una estrategia. Cada replay pide la
// suya: las instancias no se comparten entre replays concurrentes.
type Factory func() (strategy.Strategy, error)

// Descriptor describe una estrategia nativa.
type Descriptor struct {
	Name        string
	Description string
	build       func(strategy.Params) strategy.Strategy
}

// Registry mantiene las estrategias nativas disponibles indexadas por nombre.
type Registry map[string]Descriptor

// NewRegistry crea un registry vacío.
func NewRegistry() Registry {
	return make(Registry)
}

// Default devuelve el registry con todas las estrategias nativas.
func Default() Registry {
	r := NewRegistry()
	r.Register(strategy.SpreadArbName, "Naive spread arb: bid both sides at T+0, never cancel",
		func(p strategy.Params) strategy.Strategy { return strategy.NewSpreadArb(p) })
	r.Register(strategy.MomentumName, "Momentum signal: wait for oracle price movement, bet on predicted winner",
		func(p strategy.Params) strategy.Strategy { return strategy.NewMomentum(p) })
	r.Register(strategy.PostCancelName, "Post both + cancel loser: bid both at T+0, cancel predicted loser at signal time",
		func(p strategy.Params) strategy.Strategy { return strategy.NewPostCancel(p) })
	r.Register(strategy.DepthName, "Depth + momentum: like momentum but also requires orderbook depth agreement",
		func(p strategy.Params) strategy.Strategy { return strategy.NewDepth(p) })
	r.Register(strategy.Last15sName, "Last 15 Seconds: buy the side bid at 98c+ in the final 15 seconds",
		func(p strategy.Params) strategy.Strategy { return strategy.NewLast15s(p) })
	r.Register(strategy.GabagoolName, "Gabagool combined-price arb: buy YES+NO at different times when combined bid < $1.00",
		func(p strategy.Params) strategy.Strategy { return strategy.NewGabagool(p) })
	return r
}

// Register añade una estrategia al registry.
func (r Registry) Register(name, description string, build func(strategy.Params) strategy.Strategy) {
	r[name] = Descriptor{Name: name, Description: description, build: build}
}

// Get devuelve el descriptor por nombre.
func (r Registry) Get(name string) (Descriptor, bool) {
	d, ok := r[name]
	return d, ok
}

// List devuelve los descriptores ordenados por nombre.
func (r Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r))
	for _, d := range r {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Factory devuelve una factory para la estrategia name con params fijados.
func (r Registry) Factory(name string, params strategy.Params) (Factory, error) {
	d, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("strategy.Factory: %q: %w", name, domain.ErrUnknownStrategy)
	}
	return func() (strategy.Strategy, error) {
		return d.build(params), nil
	}, nil
}
