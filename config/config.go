package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/orb/risk"
)

// ErrConfigInvalid is fatal and fires before any trading starts.
var ErrConfigInvalid = errors.New("invalid config")

// Config is the full run configuration. Unknown fields in the document
// are ignored; missing required fields fail fast at startup.
type Config struct {
	Mode    string   `yaml:"mode"` // "backtest" or "live"
	Symbols []string `yaml:"symbols"`

	Timezone   string `yaml:"timezone"` // exchange-local, e.g. America/New_York
	ORBMinutes int    `yaml:"orb_minutes"`

	StartingEquity float64 `yaml:"starting_equity"`

	// Profile selects a named risk profile; Profiles may add or override
	// entries on top of the built-in table.
	Profile  string                  `yaml:"profile"`
	Profiles map[string]risk.Profile `yaml:"profiles,omitempty"`

	Commission CommissionConfig `yaml:"commission"`
	Journal    JournalConfig    `yaml:"journal"`
	Live       LiveConfig       `yaml:"live"`
}

// CommissionConfig is the round-trip fee model, IBKR-style defaults.
type CommissionConfig struct {
	PerShare float64 `yaml:"per_share"`
	Base     float64 `yaml:"base"`
}

type JournalConfig struct {
	Type string `yaml:"type"` // "sqlite", "csv" or "none"
	Path string `yaml:"path,omitempty"`
}

type LiveConfig struct {
	AckTimeout       time.Duration `yaml:"ack_timeout"`
	DisconnectBudget int           `yaml:"disconnect_budget"` // retries before the run aborts
	ForceCloseOnStop bool          `yaml:"force_close_on_stop"`
}

const (
	ModeBacktest = "backtest"
	ModeLive     = "live"
)

// BuiltinProfiles is the named risk-tier table. Stops and targets are
// shared across tiers; the tiers differ in how much equity each trade
// risks and how tight the account-level limits are.
func BuiltinProfiles() map[string]risk.Profile {
	base := risk.Profile{
		StopLossPct:              -0.008,
		TakeProfitPct:            0.045,
		MaxPositionNotionalPct:   0.25,
		MaxDailyTrades:           6,
		MaxSimultaneousPositions: 3,
		DailyLossLimitPct:        0.03,
		ConsecutiveLossLimit:     3,
		VolatilityCeiling:        45,
	}

	profiles := make(map[string]risk.Profile, 4)
	for name, riskPct := range map[string]float64{
		"conservative": 0.02,
		"balanced":     0.03,
		"growth":       0.04,
		"aggressive":   0.05,
	} {
		p := base
		p.Name = name
		p.PositionRiskPct = riskPct
		profiles[name] = p
	}

	// The conservative tier also trades less.
	c := profiles["conservative"]
	c.MaxDailyTrades = 4
	c.MaxSimultaneousPositions = 2
	c.DailyLossLimitPct = 0.02
	profiles["conservative"] = c

	return profiles
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfigInvalid, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with sensible defaults; symbols still have
// to come from the document or flags.
func Default() *Config {
	return &Config{
		Mode:           ModeBacktest,
		Timezone:       "America/New_York",
		ORBMinutes:     15,
		StartingEquity: 100000,
		Profile:        "balanced",
		Commission: CommissionConfig{
			PerShare: 0.0035,
			Base:     0.35,
		},
		Journal: JournalConfig{Type: "none"},
		Live: LiveConfig{
			AckTimeout:       5 * time.Second,
			DisconnectBudget: 3,
		},
	}
}

// Validate fails fast on anything that could not trade safely.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	if c.Mode != ModeBacktest && c.Mode != ModeLive {
		return fail("mode must be %q or %q, got %q", ModeBacktest, ModeLive, c.Mode)
	}
	if len(c.Symbols) == 0 {
		return fail("symbols is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fail("unknown timezone %q", c.Timezone)
	}
	if c.ORBMinutes <= 0 {
		return fail("orb_minutes must be positive, got %d", c.ORBMinutes)
	}
	if c.StartingEquity <= 0 {
		return fail("starting_equity must be positive, got %v", c.StartingEquity)
	}
	if c.Commission.PerShare < 0 || c.Commission.Base < 0 {
		return fail("commission fees must not be negative")
	}
	switch c.Journal.Type {
	case "none":
	case "sqlite", "csv":
		if c.Journal.Path == "" {
			return fail("journal.path required for journal.type %q", c.Journal.Type)
		}
	default:
		return fail("journal.type must be sqlite, csv or none, got %q", c.Journal.Type)
	}
	if c.Mode == ModeLive {
		if c.Live.AckTimeout <= 0 {
			return fail("live.ack_timeout must be positive")
		}
		if c.Live.DisconnectBudget < 0 {
			return fail("live.disconnect_budget must not be negative")
		}
	}

	if _, err := c.ResolveProfile(); err != nil {
		return err
	}
	return nil
}

// ResolveProfile returns the selected risk profile, with document
// profiles shadowing the built-in table, validated.
func (c *Config) ResolveProfile() (risk.Profile, error) {
	table := BuiltinProfiles()
	for name, p := range c.Profiles {
		if p.Name == "" {
			p.Name = name
		}
		table[name] = p
	}

	p, ok := table[c.Profile]
	if !ok {
		return risk.Profile{}, fmt.Errorf("%w: unknown risk profile %q", ErrConfigInvalid, c.Profile)
	}
	if err := p.Validate(); err != nil {
		return risk.Profile{}, fmt.Errorf("%w: profile %q: %v", ErrConfigInvalid, c.Profile, err)
	}
	return p, nil
}

// Location resolves the configured exchange timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrConfigInvalid, c.Timezone)
	}
	return loc, nil
}
