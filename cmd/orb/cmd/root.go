package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/orb/config"
	"github.com/rustyeddy/orb/journal"
)

var rootCmd = &cobra.Command{
	Use:   "orb",
	Short: "An opening-range breakout trading engine",
	Long: `ORB is an intraday opening-range breakout trading engine.

It builds each symbol's opening range from the first minutes of the
session, enters long on the first breakout above the range high, and
manages every position with fixed stop, target and time-based exits
under account-level circuit breakers.

The same decision pipeline runs in two modes:
  - backtest: deterministic replay of historical minute bars
  - live: real-time bars with broker order dispatch`,
	PersistentPreRunE: setupLogging,
}

var (
	cfgPath  string
	symbols  []string
	profile  string
	logLevel string

	logger zerolog.Logger
)

// Execute runs the root command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&symbols, "symbols", nil, "symbols to trade (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "risk profile name (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		return fmt.Errorf("bad log level %q: %w", logLevel, err)
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// loadConfig resolves the effective run configuration: the config file
// if one was given, defaults otherwise, with flags layered on top.
func loadConfig(mode string) (*config.Config, error) {
	var cfg *config.Config
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	cfg.Mode = mode
	if len(symbols) > 0 {
		cfg.Symbols = symbols
	}
	if profile != "" {
		cfg.Profile = profile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openJournal builds the configured trade log sink.
func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.Path)
	case "csv":
		return journal.NewCSV(cfg.Journal.Path)
	default:
		return journal.Nop{}, nil
	}
}
