package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/pkg/id"
	"github.com/rustyeddy/orb/risk"
	"github.com/rustyeddy/orb/trade"
)

// Broker is the external order-placement collaborator. Implementations
// live outside this engine; the engine only needs fills back.
type Broker interface {
	PlaceMarketOrder(ctx context.Context, symbol string, shares int64) (Fill, error)
	AccountValue(ctx context.Context) (decimal.Decimal, error)
}

// Fill is a broker acknowledgement for a filled entry order.
type Fill struct {
	Price decimal.Decimal
	Time  time.Time
}

// Live submits intents to the broker collaborator. A missing
// acknowledgement within the timeout converts to ErrExecutionRejected
// rather than hanging the pipeline.
type Live struct {
	broker     Broker
	profile    risk.Profile
	clock      market.Clock
	ackTimeout time.Duration
	log        zerolog.Logger
}

func NewLive(b Broker, p risk.Profile, clock market.Clock, ackTimeout time.Duration, log zerolog.Logger) *Live {
	return &Live{broker: b, profile: p, clock: clock, ackTimeout: ackTimeout, log: log}
}

func (l *Live) Submit(ctx context.Context, it Intent) (*trade.Position, error) {
	if it.Shares <= 0 {
		return nil, fmt.Errorf("%w: sizing produced %d shares for %s",
			ErrExecutionRejected, it.Shares, it.Signal.Symbol)
	}

	ctx, cancel := context.WithTimeout(ctx, l.ackTimeout)
	defer cancel()

	fill, err := l.broker.PlaceMarketOrder(ctx, it.Signal.Symbol, it.Shares)
	switch {
	case errors.Is(err, ErrBrokerDisconnected):
		return nil, fmt.Errorf("place order %s: %w", it.Signal.Symbol, err)
	case errors.Is(err, context.DeadlineExceeded):
		l.log.Warn().
			Str("symbol", it.Signal.Symbol).
			Dur("timeout", l.ackTimeout).
			Str("reason", "EXECUTION_REJECTED").
			Msg("broker acknowledgement timed out")
		return nil, fmt.Errorf("%w: no acknowledgement within %s", ErrExecutionRejected, l.ackTimeout)
	case err != nil:
		l.log.Warn().
			Str("symbol", it.Signal.Symbol).
			Err(err).
			Str("reason", "EXECUTION_REJECTED").
			Msg("broker rejected order")
		return nil, fmt.Errorf("%w: %v", ErrExecutionRejected, err)
	}

	sess := l.clock.SessionFor(fill.Time)
	pos := trade.NewOpen(id.New(), it.Signal.Symbol, it.Shares,
		fill.Price, fill.Time, l.profile, sess.Close)

	l.log.Info().
		Str("id", pos.ID).
		Str("symbol", pos.Symbol).
		Int64("shares", pos.Shares).
		Str("entry", pos.EntryPrice.String()).
		Msg("live fill")
	return pos, nil
}
