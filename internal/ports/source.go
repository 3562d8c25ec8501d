package ports

import (
	"context"

	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// WindowSource entrega ventanas en orden, una por llamada.
// Devuelve io.EOF cuando no quedan más.
type WindowSource interface {
	Next(ctx context.Context) (domain.Window, error)
}
