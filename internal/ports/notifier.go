package ports

import (
	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// Reporter presenta los resultados de un backtest al usuario.
type Reporter interface {
	// Summary muestra el resumen de Monte Carlo (o del run único).
	Summary(s domain.MonteCarloSummary) error

	// Windows muestra el detalle por ventana de un run.
	Windows(results []domain.ReplayResult) error
}
