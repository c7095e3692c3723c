package risk

import (
	"errors"
	"fmt"
)

// ErrInvalidRiskParameter marks a signal whose risk inputs cannot produce
// a valid position (for example a zero stop distance). The signal is
// discarded; the run continues.
var ErrInvalidRiskParameter = errors.New("invalid risk parameter")

// Profile is the immutable risk configuration for a run, selected once at
// startup and threaded explicitly through every component.
type Profile struct {
	Name string `yaml:"name"`

	PositionRiskPct        float64 `yaml:"position_risk_pct"`         // equity fraction risked per trade
	StopLossPct            float64 `yaml:"stop_loss_pct"`             // negative, e.g. -0.008
	TakeProfitPct          float64 `yaml:"take_profit_pct"`           // positive, e.g. 0.045
	MaxPositionNotionalPct float64 `yaml:"max_position_notional_pct"` // cap on shares*entry vs equity

	MaxDailyTrades           int     `yaml:"max_daily_trades"`
	MaxSimultaneousPositions int     `yaml:"max_simultaneous_positions"`
	DailyLossLimitPct        float64 `yaml:"daily_loss_limit_pct"`
	ConsecutiveLossLimit     int     `yaml:"consecutive_loss_limit"`
	VolatilityCeiling        float64 `yaml:"volatility_ceiling"`

	// MaxHoldMinutes shortens the time exit below the session close.
	// Zero means hold until the close.
	MaxHoldMinutes int `yaml:"max_hold_minutes"`
}

// Validate fails fast on a profile that could not trade safely.
func (p Profile) Validate() error {
	if p.PositionRiskPct <= 0 || p.PositionRiskPct >= 1 {
		return fmt.Errorf("position_risk_pct must be in (0, 1), got %v", p.PositionRiskPct)
	}
	if p.StopLossPct >= 0 {
		return fmt.Errorf("stop_loss_pct must be negative, got %v", p.StopLossPct)
	}
	if p.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_pct must be positive, got %v", p.TakeProfitPct)
	}
	if p.MaxPositionNotionalPct <= 0 {
		return fmt.Errorf("max_position_notional_pct must be positive, got %v", p.MaxPositionNotionalPct)
	}
	if p.MaxDailyTrades <= 0 {
		return fmt.Errorf("max_daily_trades must be positive, got %d", p.MaxDailyTrades)
	}
	if p.MaxSimultaneousPositions <= 0 {
		return fmt.Errorf("max_simultaneous_positions must be positive, got %d", p.MaxSimultaneousPositions)
	}
	if p.DailyLossLimitPct <= 0 {
		return fmt.Errorf("daily_loss_limit_pct must be positive, got %v", p.DailyLossLimitPct)
	}
	if p.ConsecutiveLossLimit <= 0 {
		return fmt.Errorf("consecutive_loss_limit must be positive, got %d", p.ConsecutiveLossLimit)
	}
	if p.VolatilityCeiling <= 0 {
		return fmt.Errorf("volatility_ceiling must be positive, got %v", p.VolatilityCeiling)
	}
	if p.MaxHoldMinutes < 0 {
		return fmt.Errorf("max_hold_minutes must not be negative, got %d", p.MaxHoldMinutes)
	}
	return nil
}
