package perf

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/orb/trade"
)

type Period string

const (
	Daily   Period = "daily"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// Record is the aggregate for one calendar period.
type Record struct {
	Period    string // "2025-03-14", "2025-03" or "2025"
	Trades    int
	Wins      int
	WinRate   float64
	TotalPnL  decimal.Decimal
	ReturnPct float64 // vs equity at period start
	Sharpe    float64
	MaxLoss   decimal.Decimal // worst sub-period loss, zero if none
}

// Aggregator rolls CLOSED positions into per-period records. Appending
// is the only mutation; Rollup is pure and idempotent over the recorded
// set.
type Aggregator struct {
	mu          sync.Mutex
	startEquity decimal.Decimal
	trades      []closedTrade
}

type closedTrade struct {
	exit time.Time
	pnl  decimal.Decimal
}

func New(startEquity decimal.Decimal) *Aggregator {
	return &Aggregator{startEquity: startEquity}
}

// Record appends one CLOSED position. Anything else is a caller bug.
func (a *Aggregator) Record(p *trade.Position) error {
	if p.Status != trade.Closed {
		return fmt.Errorf("perf: cannot record %s position %s", p.Status, p.ID)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trades = append(a.trades, closedTrade{exit: p.ExitTime, pnl: p.PnL})
	return nil
}

// TradeCount returns the number of recorded positions.
func (a *Aggregator) TradeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.trades)
}

// Rollup partitions the recorded trades by calendar period and returns
// one record per period in chronological order. The return percentage
// for each period is taken against the equity carried into it.
func (a *Aggregator) Rollup(period Period) []Record {
	a.mu.Lock()
	trades := make([]closedTrade, len(a.trades))
	copy(trades, a.trades)
	a.mu.Unlock()

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].exit.Before(trades[j].exit)
	})

	keyFn, subKeyFn, annualize := periodFns(period)

	type bucket struct {
		key    string
		trades []closedTrade
	}
	var buckets []bucket
	idx := make(map[string]int)
	for _, t := range trades {
		k := keyFn(t.exit)
		i, ok := idx[k]
		if !ok {
			i = len(buckets)
			idx[k] = i
			buckets = append(buckets, bucket{key: k})
		}
		buckets[i].trades = append(buckets[i].trades, t)
	}

	equity := a.startEquity
	out := make([]Record, 0, len(buckets))
	for _, b := range buckets {
		rec := Record{Period: b.key, Trades: len(b.trades)}

		total := decimal.Zero
		for _, t := range b.trades {
			total = total.Add(t.pnl)
			if !t.pnl.IsNegative() {
				rec.Wins++
			}
		}
		rec.TotalPnL = total
		rec.WinRate = float64(rec.Wins) / float64(rec.Trades)
		if equity.IsPositive() {
			rec.ReturnPct = total.Div(equity).InexactFloat64() * 100
		}

		subs := subTotals(b.trades, subKeyFn)
		rec.Sharpe = sharpe(subs, annualize)
		rec.MaxLoss = worstLoss(subs)

		out = append(out, rec)
		equity = equity.Add(total)
	}
	return out
}

// periodFns returns the bucket key, the sub-bucket key used for sharpe
// and worst-loss figures, and the annualization factor for the sharpe
// ratio: days within a month annualize by sqrt(252), months within a
// year by sqrt(12). Within a single day the trades themselves are the
// sub-series and are not annualized.
func periodFns(p Period) (key, subKey func(time.Time) string, annualize float64) {
	day := func(t time.Time) string { return t.Format("2006-01-02") }
	month := func(t time.Time) string { return t.Format("2006-01") }
	year := func(t time.Time) string { return t.Format("2006") }

	switch p {
	case Monthly:
		return month, day, math.Sqrt(252)
	case Yearly:
		return year, month, math.Sqrt(12)
	default:
		seq := 0
		return day, func(time.Time) string {
			seq++
			return fmt.Sprintf("#%d", seq)
		}, 1
	}
}

func subTotals(trades []closedTrade, key func(time.Time) string) []float64 {
	var order []string
	sums := make(map[string]decimal.Decimal)
	for _, t := range trades {
		k := key(t.exit)
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] = sums[k].Add(t.pnl)
	}
	out := make([]float64, len(order))
	for i, k := range order {
		out[i] = sums[k].InexactFloat64()
	}
	return out
}

func sharpe(series []float64, annualize float64) float64 {
	if len(series) < 2 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	mean := sum / float64(len(series))

	var ss float64
	for _, v := range series {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(series)))
	if std == 0 {
		return 0
	}
	return mean / std * annualize
}

func worstLoss(series []float64) decimal.Decimal {
	worst := 0.0
	for _, v := range series {
		if v < worst {
			worst = v
		}
	}
	return decimal.NewFromFloat(worst)
}
