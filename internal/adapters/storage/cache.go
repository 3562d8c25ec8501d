package storage

import (
	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// cached devuelve la ventana de la cache si está.
func (s *SQLiteStorage) cached(marketID string) (domain.Window, bool) {
	if s.cache == nil {
		return domain.Window{}, false
	}
	v, ok := s.cache.Get(marketID)
	if !ok {
		CacheMissesTotal.Inc()
		return domain.Window{}, false
	}
	CacheHitsTotal.Inc()
	return v.(domain.Window), true
}

// store guarda la ventana con coste = número de snapshots. Ristretto puede
// rechazarla; en ese caso la próxima lectura va a la DB.
func (s *SQLiteStorage) store(w domain.Window) {
	if s.cache == nil {
		return
	}
	if s.cache.Set(w.Market.ID, w, int64(len(w.Snapshots))+1) {
		CacheSetsTotal.Inc()
	}
}

func (s *SQLiteStorage) invalidate(marketID string) {
	if s.cache != nil {
		s.cache.Del(marketID)
	}
}
