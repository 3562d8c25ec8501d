package domain

// Market describe un mercado binario con apertura y cierre conocidos.
type Market struct {
	ID           string
	Platform     string
	Description  string
	Category     string
	OpenTs       int64 // unix segundos
	CloseTs      int64
	DurationSecs int64
}

// Window es una unidad de backtest: un mercado, sus snapshots ordenados por
// tiempo y el outcome real. El outcome nunca se le pasa a la estrategia.
type Window struct {
	Market    Market
	Snapshots []BookSnapshot
	Outcome   Outcome
}

// DurationMs devuelve la duración de la ventana en ms, o 0 si no se conoce.
func (w Window) DurationMs() int64 {
	if w.Market.DurationSecs > 0 {
		return w.Market.DurationSecs * 1000
	}
	if w.Market.CloseTs > w.Market.OpenTs {
		return (w.Market.CloseTs - w.Market.OpenTs) * 1000
	}
	return 0
}

// TruncateID devuelve el id del mercado truncado a maxLen caracteres.
// Si la descripción existe se prefiere a la id.
func TruncateID(description, id string, maxLen int) string {
	q := description
	if q == "" {
		q = id
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
