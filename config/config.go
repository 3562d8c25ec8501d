package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/phantomfill/internal/application/engine/fill"
	"github.com/alejandrodnm/phantomfill/internal/domain/strategy"
)

// Config es la configuración completa de phantomfill.
type Config struct {
	Fill       FillConfig       `yaml:"fill"`
	Replay     ReplayConfig     `yaml:"replay"`
	MonteCarlo MonteCarloConfig `yaml:"montecarlo"`
	Storage    StorageConfig    `yaml:"storage"`
	Script     ScriptConfig     `yaml:"script"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// FillConfig son las constantes calibradas del fill model.
type FillConfig struct {
	AdverseFillProb     float64 `yaml:"adverse_fill_prob"`
	Rf                  float64 `yaml:"rf"` // probabilidad de evento taker por segundo
	SignalOffsetMs      int64   `yaml:"signal_offset_ms"`
	PostSignalTakerMult float64 `yaml:"post_signal_taker_mult"`
	TakerSize           float64 `yaml:"taker_size"` // 0 = sin límite
}

// ReplayConfig son las constantes que reciben las estrategias.
type ReplayConfig struct {
	Shares           float64 `yaml:"shares"`
	BidPrice         float64 `yaml:"bid_price"`
	MinBps           float64 `yaml:"min_bps"`
	WindowDurationMs int64   `yaml:"window_duration_ms"`
	MinBid           float64 `yaml:"min_bid"`      // last_15s
	MaxCombined      float64 `yaml:"max_combined"` // gabagool
}

// MonteCarloConfig controla los batches.
type MonteCarloConfig struct {
	Runs        int       `yaml:"runs"`
	Seed        uint64    `yaml:"seed"`    // 0 = aleatoria
	Workers     int       `yaml:"workers"` // 0 = NumCPU
	Percentiles []float64 `yaml:"percentiles"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN            string `yaml:"dsn"`             // ruta al archivo SQLite, o ":memory:"
	CacheSnapshots int64  `yaml:"cache_snapshots"` // 0 desactiva la cache
}

// ScriptConfig controla el sandbox de estrategias Lua.
type ScriptConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// MetricsConfig controla el endpoint de Prometheus.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // vacío = sin endpoint
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default devuelve la configuración por defecto.
func Default() *Config {
	fp := fill.DefaultParams()
	sp := strategy.DefaultParams()
	return &Config{
		Fill: FillConfig{
			AdverseFillProb:     fp.AdverseFillProb,
			Rf:                  fp.Rf,
			SignalOffsetMs:      fp.SignalOffsetMs,
			PostSignalTakerMult: fp.PostSignalTakerMult,
			TakerSize:           fp.TakerSize,
		},
		Replay: ReplayConfig{
			Shares:           sp.Shares,
			BidPrice:         sp.BidPrice,
			MinBps:           sp.MinBps,
			WindowDurationMs: sp.WindowDurationMs,
			MinBid:           sp.MinBid,
			MaxCombined:      sp.MaxCombined,
		},
		MonteCarlo: MonteCarloConfig{Runs: 1, Percentiles: []float64{5, 95}},
		Storage:    StorageConfig{DSN: "phantomfill.db", CacheSnapshots: 500_000},
		Script:     ScriptConfig{CallTimeout: time.Second},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los campos ausentes en el YAML conservan el valor por defecto, y un archivo
// inexistente equivale a un YAML vacío.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(cfg)

	return cfg, nil
}

// FillParams devuelve los parámetros del fill model.
func (c *Config) FillParams() fill.Params {
	return fill.Params{
		AdverseFillProb:     c.Fill.AdverseFillProb,
		Rf:                  c.Fill.Rf,
		SignalOffsetMs:      c.Fill.SignalOffsetMs,
		PostSignalTakerMult: c.Fill.PostSignalTakerMult,
		TakerSize:           c.Fill.TakerSize,
	}
}

// StrategyParams devuelve las constantes de estrategia. El offset de señal
// es el mismo que usa el fill model.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		Shares:           c.Replay.Shares,
		BidPrice:         c.Replay.BidPrice,
		MinBps:           c.Replay.MinBps,
		SignalOffsetMs:   c.Fill.SignalOffsetMs,
		WindowDurationMs: c.Replay.WindowDurationMs,
		MinBid:           c.Replay.MinBid,
		MaxCombined:      c.Replay.MaxCombined,
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PHANTOMFILL_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("PHANTOMFILL_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PHANTOMFILL_SEED=%q: %w", v, err)
		}
		cfg.MonteCarlo.Seed = seed
	}
	if v := os.Getenv("PHANTOMFILL_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.MonteCarlo.Runs <= 0 {
		cfg.MonteCarlo.Runs = 1
	}
	if len(cfg.MonteCarlo.Percentiles) == 0 {
		cfg.MonteCarlo.Percentiles = []float64{5, 95}
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "phantomfill.db"
	}
	if cfg.Script.CallTimeout <= 0 {
		cfg.Script.CallTimeout = time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
