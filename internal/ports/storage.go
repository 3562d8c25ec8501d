package ports

import (
	"context"

	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// WindowStore persiste ventanas en el formato nativo.
type WindowStore interface {
	// SaveWindow guarda el mercado y todos sus snapshots en una transacción.
	SaveWindow(ctx context.Context, w domain.Window) error

	// SaveMarket hace upsert de un mercado con su outcome.
	SaveMarket(ctx context.Context, m domain.Market, outcome domain.Outcome) error

	// SaveTicks añade ticks de un mercado ya guardado, en una transacción.
	// Permite importar por lotes sin tener la ventana entera en memoria.
	SaveTicks(ctx context.Context, ticks []domain.Tick) error

	// Source devuelve un WindowSource sobre las ventanas guardadas.
	// category vacío significa todas.
	Source(ctx context.Context, category string) (WindowSource, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
