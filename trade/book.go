package trade

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/orb/market"
)

// Listener is notified exactly once per CLOSED position, after the book
// has released its lock.
type Listener interface {
	OnClosed(*Position)
}

// Book owns every OPEN position for a run, at most one per symbol. It is
// safe for concurrent use: live mode feeds it from one goroutine per
// symbol.
type Book struct {
	mu       sync.Mutex
	comm     Commission
	open     map[string]*Position
	listener Listener
}

func NewBook(comm Commission, l Listener) *Book {
	return &Book{
		comm:     comm,
		open:     make(map[string]*Position),
		listener: l,
	}
}

// Add registers a freshly opened position.
func (bk *Book) Add(p *Position) error {
	bk.mu.Lock()
	defer bk.mu.Unlock()
	if _, ok := bk.open[p.Symbol]; ok {
		return fmt.Errorf("book: position already open for %s", p.Symbol)
	}
	bk.open[p.Symbol] = p
	return nil
}

// HasOpen reports whether a position is open for symbol.
func (bk *Book) HasOpen(symbol string) bool {
	bk.mu.Lock()
	defer bk.mu.Unlock()
	_, ok := bk.open[symbol]
	return ok
}

// OnBar routes one bar to its symbol's open position, if any.
func (bk *Book) OnBar(b market.Bar) {
	bk.mu.Lock()
	p, ok := bk.open[b.Symbol]
	if !ok {
		bk.mu.Unlock()
		return
	}
	closed := p.OnBar(b, bk.comm)
	if closed {
		delete(bk.open, b.Symbol)
	}
	bk.mu.Unlock()

	if closed && bk.listener != nil {
		bk.listener.OnClosed(p)
	}
}

// CloseAt force-closes symbol's open position at the given price.
func (bk *Book) CloseAt(symbol string, price decimal.Decimal, t time.Time, reason ExitReason) {
	bk.mu.Lock()
	p, ok := bk.open[symbol]
	if !ok {
		bk.mu.Unlock()
		return
	}
	closed := p.CloseAt(price, t, reason, bk.comm)
	if closed {
		delete(bk.open, symbol)
	}
	bk.mu.Unlock()

	if closed && bk.listener != nil {
		bk.listener.OnClosed(p)
	}
}

// OpenSymbols lists symbols with an open position, in no particular
// order.
func (bk *Book) OpenSymbols() []string {
	bk.mu.Lock()
	defer bk.mu.Unlock()
	syms := make([]string, 0, len(bk.open))
	for s := range bk.open {
		syms = append(syms, s)
	}
	return syms
}

// OpenCount returns the number of open positions.
func (bk *Book) OpenCount() int {
	bk.mu.Lock()
	defer bk.mu.Unlock()
	return len(bk.open)
}
