package exec

import (
	"context"
	"errors"

	"github.com/rustyeddy/orb/strategy"
	"github.com/rustyeddy/orb/trade"
)

var (
	// ErrExecutionRejected means no position was created for an accepted
	// intent: zero-share sizing in backtest, or a broker error in live
	// mode. Recoverable; the run continues.
	ErrExecutionRejected = errors.New("execution rejected")

	// ErrBrokerDisconnected means the broker collaborator is unreachable.
	// Live mode halts new entries and retries within a bounded budget.
	ErrBrokerDisconnected = errors.New("broker disconnected")
)

// Intent is an accepted (signal, sizing) pair ready for dispatch.
type Intent struct {
	Signal strategy.Signal
	Shares int64
}

// Dispatcher routes intents to the live broker or the fill simulator.
// The decision pipeline upstream is identical either way; this interface
// is the only fork between live and backtest runs.
type Dispatcher interface {
	Submit(ctx context.Context, intent Intent) (*trade.Position, error)
}
