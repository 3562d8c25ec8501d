package domain

import (
	"math"
	"strconv"
)

// priceEpsilon es la tolerancia para comparar niveles de precio.
const priceEpsilon = 1e-9

// PriceLevel es la profundidad acumulada de bids en un precio concreto.
type PriceLevel struct {
	Price          float64
	CumulativeSize float64
}

// SideState es el estado del libro de un token (YES o NO) en un instante.
// Los precios y tamaños en 0 significan "ausente".
type SideState struct {
	BestBid       float64
	BestBidSize   float64
	BestAsk       float64
	BestAskSize   float64
	Depth         []PriceLevel // profundidad de bids en niveles clave
	TotalBidDepth float64
	TotalAskDepth float64
}

// HasAsk devuelve true si hay un best ask observado.
func (s SideState) HasAsk() bool {
	return s.BestAsk > 0
}

// BidDepthAt devuelve la profundidad acumulada en price.
// Primero busca un nivel exacto; si no existe, usa el nivel más cercano
// por encima. Devuelve 0 si no hay niveles que sirvan.
func (s SideState) BidDepthAt(price float64) float64 {
	for _, l := range s.Depth {
		if math.Abs(l.Price-price) < priceEpsilon {
			return l.CumulativeSize
		}
	}

	best := -1
	for i, l := range s.Depth {
		if l.Price < price {
			continue
		}
		if best < 0 || l.Price < s.Depth[best].Price {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return s.Depth[best].CumulativeSize
}

// BookSnapshot es una foto inmutable de ambos lados del libro de una ventana.
// Se pasa por valor: ni las estrategias ni el fill model pueden mutarla.
type BookSnapshot struct {
	MarketID       string
	OffsetMs       int64 // ms desde la apertura de la ventana
	TimestampMs    int64
	Yes            SideState
	No             SideState
	ReferencePrice float64 // 0 si no hay señal externa
	OraclePrice    float64 // 0 si no hay oráculo
}

// Side devuelve el estado del lado pedido.
func (b BookSnapshot) Side(s Side) SideState {
	if s == SideNo {
		return b.No
	}
	return b.Yes
}

// ParsePrice convierte un string de precio a float64.
// Usado al importar capturas donde los precios vienen como texto.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// SamePrice compara dos precios con la tolerancia de niveles.
func SamePrice(a, b float64) bool {
	return math.Abs(a-b) < priceEpsilon
}
