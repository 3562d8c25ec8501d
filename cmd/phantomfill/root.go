package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/phantomfill/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	configPath string
	verbose    bool
	logFormat  string

	// cfg se carga en PersistentPreRunE, antes de cualquier subcomando.
	cfg *config.Config
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "phantomfill",
	Short: "Fill simulation and replay engine for prediction-market backtests",
	Long: `PhantomFill replays recorded binary-market windows through a strategy and
a probabilistic fill model, and reports naive PnL (every bid fills) next to
realistic PnL (queue position, taker flow, adverse selection).

The difference between the two is the phantom gap.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		if logFormat != "" {
			loaded.Log.Format = logFormat
		}
		setupLogger(loaded.Log)
		cfg = loaded
		return nil
	},
}

// Execute ejecuta el comando raíz. Lo llama main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set log level to debug")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text|json (overrides config)")
}

// setupLogger instala el logger global. Los logs van a stderr para no
// mezclarse con los reportes.
func setupLogger(c config.LogConfig) {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
