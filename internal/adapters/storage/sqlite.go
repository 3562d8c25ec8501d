package storage

// sqlite.go — almacén nativo de ventanas.
//
// Esquema:
//   - `pf_markets`: una fila por mercado con su outcome (NULL si no resuelto).
//   - `pf_ticks`: una fila por lado del libro y offset. Los campos ausentes
//     se guardan como NULL.
//   - `pf_depth_levels`: niveles de profundidad de bids de cada tick.
//
// Las ventanas leídas se guardan en una cache en memoria: varios runs sobre
// el mismo dataset (p. ej. comparar estrategias) leen la DB una sola vez.

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dgraph-io/ristretto"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/alejandrodnm/phantomfill/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS pf_markets (
    id            TEXT PRIMARY KEY,
    platform      TEXT    NOT NULL,
    description   TEXT    NOT NULL DEFAULT '',
    category      TEXT    NOT NULL DEFAULT '',
    open_ts       INTEGER NOT NULL,
    close_ts      INTEGER NOT NULL,
    duration_secs INTEGER NOT NULL,
    outcome       TEXT
);

CREATE TABLE IF NOT EXISTS pf_ticks (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id       TEXT    NOT NULL,
    side            TEXT    NOT NULL,
    timestamp_ms    INTEGER NOT NULL,
    offset_ms       INTEGER NOT NULL,
    best_bid        REAL,
    best_bid_size   REAL,
    best_ask        REAL,
    best_ask_size   REAL,
    total_bid_depth REAL NOT NULL DEFAULT 0,
    total_ask_depth REAL NOT NULL DEFAULT 0,
    reference_price REAL,
    oracle_price    REAL
);

CREATE TABLE IF NOT EXISTS pf_depth_levels (
    tick_id         INTEGER NOT NULL REFERENCES pf_ticks(id),
    price           REAL    NOT NULL,
    cumulative_size REAL    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pf_markets_cat              ON pf_markets(category, open_ts);
CREATE INDEX IF NOT EXISTS idx_pf_ticks_market_offset_side ON pf_ticks(market_id, offset_ms, side);
CREATE INDEX IF NOT EXISTS idx_pf_depth_tick               ON pf_depth_levels(tick_id);
`

// DefaultCacheSnapshots es el tamaño por defecto de la cache, en snapshots.
const DefaultCacheSnapshots = 500_000

// Option configura el SQLiteStorage.
type Option func(*SQLiteStorage)

// WithCacheSnapshots fija el tamaño de la cache de ventanas en snapshots.
// 0 desactiva la cache.
func WithCacheSnapshots(n int64) Option {
	return func(s *SQLiteStorage) { s.cacheSnapshots = n }
}

// SQLiteStorage implementa ports.WindowStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db             *sql.DB
	cache          *ristretto.Cache // nil si está desactivada
	cacheSnapshots int64
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteStorage(path string, opts ...Option) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db, cacheSnapshots: DefaultCacheSnapshots}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSnapshots > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 100_000, // ~10x las ventanas que esperamos tener en cache
			MaxCost:     s.cacheSnapshots,
			BufferItems: 64,
			Metrics:     true,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("storage.NewSQLiteStorage: cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// SaveWindow guarda el mercado y todos sus snapshots en una transacción,
// reemplazando lo que hubiera de ese mercado.
func (s *SQLiteStorage) SaveWindow(ctx context.Context, w domain.Window) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveWindow: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertMarket(ctx, tx, w.Market, w.Outcome); err != nil {
		return fmt.Errorf("storage.SaveWindow: %w", err)
	}

	ticks := make([]domain.Tick, 0, 2*len(w.Snapshots))
	for _, snap := range w.Snapshots {
		pair := domain.SplitSnapshot(snap)
		pair[0].MarketID, pair[1].MarketID = w.Market.ID, w.Market.ID
		ticks = append(ticks, pair[0], pair[1])
	}
	if err := insertTicks(ctx, tx, ticks); err != nil {
		return fmt.Errorf("storage.SaveWindow: %s: %w", w.Market.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveWindow: commit: %w", err)
	}
	s.invalidate(w.Market.ID)
	return nil
}

// SaveMarket hace upsert del mercado y borra sus ticks previos: un re-import
// no duplica datos.
func (s *SQLiteStorage) SaveMarket(ctx context.Context, m domain.Market, outcome domain.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveMarket: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertMarket(ctx, tx, m, outcome); err != nil {
		return fmt.Errorf("storage.SaveMarket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveMarket: commit: %w", err)
	}
	s.invalidate(m.ID)
	return nil
}

// SaveTicks añade ticks en una sola transacción.
func (s *SQLiteStorage) SaveTicks(ctx context.Context, ticks []domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveTicks: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertTicks(ctx, tx, ticks); err != nil {
		return fmt.Errorf("storage.SaveTicks: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveTicks: commit: %w", err)
	}

	seen := make(map[string]bool)
	for _, t := range ticks {
		if !seen[t.MarketID] {
			seen[t.MarketID] = true
			s.invalidate(t.MarketID)
		}
	}
	return nil
}

// ListMarkets devuelve los mercados guardados ordenados por apertura.
// category vacío significa todas.
func (s *SQLiteStorage) ListMarkets(ctx context.Context, category string) ([]MarketRow, error) {
	query := `SELECT id, platform, description, category, open_ts, close_ts, duration_secs, outcome
		FROM pf_markets`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY open_ts, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListMarkets: query: %w", err)
	}
	defer rows.Close()

	var markets []MarketRow
	for rows.Next() {
		var (
			m       MarketRow
			outcome sql.NullString
		)
		if err := rows.Scan(
			&m.Market.ID,
			&m.Market.Platform,
			&m.Market.Description,
			&m.Market.Category,
			&m.Market.OpenTs,
			&m.Market.CloseTs,
			&m.Market.DurationSecs,
			&outcome,
		); err != nil {
			return nil, fmt.Errorf("storage.ListMarkets: scan row: %w", err)
		}
		m.Outcome = domain.Outcome(outcome.String)
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// LoadWindow arma la ventana completa de un mercado. Usa la cache si está
// activa.
func (s *SQLiteStorage) LoadWindow(ctx context.Context, m MarketRow) (domain.Window, error) {
	if w, ok := s.cached(m.Market.ID); ok {
		return w, nil
	}

	ticks, err := s.loadTicks(ctx, m.Market.ID)
	if err != nil {
		return domain.Window{}, fmt.Errorf("storage.LoadWindow: %s: %w", m.Market.ID, err)
	}

	w := domain.Window{
		Market:    m.Market,
		Snapshots: domain.SnapshotsFromTicks(m.Market.ID, ticks),
		Outcome:   m.Outcome,
	}
	s.store(w)
	return w, nil
}

// Source devuelve un iterador sobre las ventanas guardadas. La lista de
// mercados se lee al crear el iterador; los ticks, al pedir cada ventana.
func (s *SQLiteStorage) Source(ctx context.Context, category string) (ports.WindowSource, error) {
	markets, err := s.ListMarkets(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("storage.Source: %w", err)
	}
	return &windowIterator{store: s, markets: markets}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.db.Close()
}

// MarketRow es un mercado tal como está guardado, con su outcome.
type MarketRow struct {
	Market  domain.Market
	Outcome domain.Outcome
}

type windowIterator struct {
	store   *SQLiteStorage
	markets []MarketRow
	next    int
}

// Next implementa ports.WindowSource.
func (it *windowIterator) Next(ctx context.Context) (domain.Window, error) {
	if err := ctx.Err(); err != nil {
		return domain.Window{}, err
	}
	if it.next >= len(it.markets) {
		return domain.Window{}, io.EOF
	}
	m := it.markets[it.next]
	it.next++
	return it.store.LoadWindow(ctx, m)
}

// --- helpers internos ---

func upsertMarket(ctx context.Context, tx *sql.Tx, m domain.Market, outcome domain.Outcome) error {
	var out sql.NullString
	if outcome.Resolved() {
		out = sql.NullString{String: string(outcome), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pf_markets
			(id, platform, description, category, open_ts, close_ts, duration_secs, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			platform      = excluded.platform,
			description   = excluded.description,
			category      = excluded.category,
			open_ts       = excluded.open_ts,
			close_ts      = excluded.close_ts,
			duration_secs = excluded.duration_secs,
			outcome       = excluded.outcome
	`, m.ID, m.Platform, m.Description, m.Category, m.OpenTs, m.CloseTs, m.DurationSecs, out); err != nil {
		return fmt.Errorf("upsert market %s: %w", m.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pf_depth_levels WHERE tick_id IN (SELECT id FROM pf_ticks WHERE market_id = ?)`, m.ID,
	); err != nil {
		return fmt.Errorf("delete depth %s: %w", m.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pf_ticks WHERE market_id = ?`, m.ID); err != nil {
		return fmt.Errorf("delete ticks %s: %w", m.ID, err)
	}
	return nil
}

func insertTicks(ctx context.Context, tx *sql.Tx, ticks []domain.Tick) error {
	tickStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pf_ticks
			(market_id, side, timestamp_ms, offset_ms,
			 best_bid, best_bid_size, best_ask, best_ask_size,
			 total_bid_depth, total_ask_depth, reference_price, oracle_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare ticks: %w", err)
	}
	defer tickStmt.Close()

	depthStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pf_depth_levels (tick_id, price, cumulative_size) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare depth: %w", err)
	}
	defer depthStmt.Close()

	for _, t := range ticks {
		res, err := tickStmt.ExecContext(ctx,
			t.MarketID,
			string(t.Side),
			t.TimestampMs,
			t.OffsetMs,
			nullable(t.State.BestBid),
			nullable(t.State.BestBidSize),
			nullable(t.State.BestAsk),
			nullable(t.State.BestAskSize),
			t.State.TotalBidDepth,
			t.State.TotalAskDepth,
			nullable(t.ReferencePrice),
			nullable(t.OraclePrice),
		)
		if err != nil {
			return fmt.Errorf("insert tick %s@%d: %w", t.MarketID, t.OffsetMs, err)
		}
		if len(t.State.Depth) == 0 {
			continue
		}

		tickID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("tick id: %w", err)
		}
		for _, lvl := range t.State.Depth {
			if _, err := depthStmt.ExecContext(ctx, tickID, lvl.Price, lvl.CumulativeSize); err != nil {
				return fmt.Errorf("insert depth %s@%d: %w", t.MarketID, t.OffsetMs, err)
			}
		}
	}
	return nil
}

// loadTicks lee los ticks de un mercado ordenados por offset y lado, con sus
// niveles de profundidad.
func (s *SQLiteStorage) loadTicks(ctx context.Context, marketID string) ([]domain.Tick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, side, timestamp_ms, offset_ms,
		       best_bid, best_bid_size, best_ask, best_ask_size,
		       total_bid_depth, total_ask_depth, reference_price, oracle_price
		FROM pf_ticks
		WHERE market_id = ?
		ORDER BY offset_ms, side DESC, id
	`, marketID)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}

	var (
		ticks []domain.Tick
		index = make(map[int64]int) // tick id → posición en ticks
	)
	for rows.Next() {
		var (
			id                                      int64
			side                                    string
			t                                       domain.Tick
			bid, bidSize, ask, askSize, ref, oracle sql.NullFloat64
		)
		if err := rows.Scan(
			&id, &side, &t.TimestampMs, &t.OffsetMs,
			&bid, &bidSize, &ask, &askSize,
			&t.State.TotalBidDepth, &t.State.TotalAskDepth, &ref, &oracle,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		t.MarketID = marketID
		t.Side = domain.Side(side)
		t.State.BestBid, t.State.BestBidSize = bid.Float64, bidSize.Float64
		t.State.BestAsk, t.State.BestAskSize = ask.Float64, askSize.Float64
		t.ReferencePrice, t.OraclePrice = ref.Float64, oracle.Float64

		index[id] = len(ticks)
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	rows.Close() // una sola conexión: liberar antes de la siguiente query

	if len(ticks) == 0 {
		return nil, nil
	}

	depth, err := s.db.QueryContext(ctx, `
		SELECT d.tick_id, d.price, d.cumulative_size
		FROM pf_depth_levels d
		JOIN pf_ticks t ON t.id = d.tick_id
		WHERE t.market_id = ?
		ORDER BY d.tick_id, d.price
	`, marketID)
	if err != nil {
		return nil, fmt.Errorf("query depth: %w", err)
	}
	defer depth.Close()

	for depth.Next() {
		var (
			tickID int64
			lvl    domain.PriceLevel
		)
		if err := depth.Scan(&tickID, &lvl.Price, &lvl.CumulativeSize); err != nil {
			return nil, fmt.Errorf("scan depth: %w", err)
		}
		if i, ok := index[tickID]; ok {
			ticks[i].State.Depth = append(ticks[i].State.Depth, lvl)
		}
	}
	return ticks, depth.Err()
}

// nullable guarda 0 como NULL: en el dominio 0 significa "ausente".
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v != 0}
}
