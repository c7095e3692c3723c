package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Size converts a signal's trigger price, the current account equity and
// a risk profile into a share quantity:
//
//	risk_amount   = equity * position_risk_pct
//	stop_distance = trigger * |stop_loss_pct|
//	shares        = floor(risk_amount / stop_distance)
//
// capped so that shares*trigger never exceeds
// equity * max_position_notional_pct. Zero shares is a valid no-trade
// outcome, not an error.
func Size(trigger float64, equity decimal.Decimal, p Profile) (int64, error) {
	stopDistance := decimal.NewFromFloat(trigger).
		Mul(decimal.NewFromFloat(math.Abs(p.StopLossPct)))
	if !stopDistance.IsPositive() {
		return 0, fmt.Errorf("%w: stop distance %s for trigger %v",
			ErrInvalidRiskParameter, stopDistance, trigger)
	}

	riskAmount := equity.Mul(decimal.NewFromFloat(p.PositionRiskPct))
	shares := riskAmount.Div(stopDistance).Floor().IntPart()
	if shares < 0 {
		shares = 0
	}

	maxNotional := equity.Mul(decimal.NewFromFloat(p.MaxPositionNotionalPct))
	maxShares := maxNotional.Div(decimal.NewFromFloat(trigger)).Floor().IntPart()
	if shares > maxShares {
		shares = maxShares
	}
	if shares < 0 {
		shares = 0
	}
	return shares, nil
}
