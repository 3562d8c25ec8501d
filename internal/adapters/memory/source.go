package memory

import (
	"context"
	"io"

	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// Source is an in-memory WindowSource over a fixed slice.
type Source struct {
	windows []domain.Window
	next    int
}

// NewSource crea un Source. El slice no se copia: no mutarlo después.
func NewSource(windows ...domain.Window) *Source {
	return &Source{windows: windows}
}

// Next devuelve la siguiente ventana o io.EOF.
func (s *Source) Next(ctx context.Context) (domain.Window, error) {
	if err := ctx.Err(); err != nil {
		return domain.Window{}, err
	}
	if s.next >= len(s.windows) {
		return domain.Window{}, io.EOF
	}
	w := s.windows[s.next]
	s.next++
	return w, nil
}
