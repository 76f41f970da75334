// Package portfolio tracks cash, per-symbol positions, and the fill
// history for one engine run.
package portfolio

import (
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"winter/internal/model/enum"
)

// Position is the current inventory for a symbol with its aggregate
// cost basis. quantity == 0 implies costBasis == 0.
type Position struct {
	Quantity  int64
	CostBasis float64
}

// AverageCost returns costBasis / quantity, or zero when flat.
func (p Position) AverageCost() float64 {
	if p.Quantity <= 0 {
		return 0
	}
	return p.CostBasis / float64(p.Quantity)
}

// Trade is one realized fill in the trade log.
type Trade struct {
	Time     time.Time
	Symbol   string
	Side     enum.OrderSide
	Quantity int64
	Price    float64
	Value    float64
	// PnL is set on sells only; HasPnL tells the two apart.
	PnL    float64
	HasPnL bool
}

// Portfolio aggregates cash and positions. The execution stage is the
// sole mutator; snapshot reads from other goroutines tolerate slight
// staleness, so a plain mutex suffices.
type Portfolio struct {
	mu         sync.Mutex
	cash       float64
	positions  map[string]Position
	tradeCount int
	tradeLog   []Trade
	now        func() time.Time
}

// Option adjusts portfolio construction.
type Option func(*Portfolio)

// WithClock overrides the fill-timestamp source. Backtests inject the
// synthetic tick clock so the trade log shares the replay timeline.
func WithClock(now func() time.Time) Option {
	return func(p *Portfolio) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a portfolio with the given starting cash.
func New(cash float64, opts ...Option) *Portfolio {
	p := &Portfolio{
		cash:      cash,
		positions: make(map[string]Position),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

// SetCash replaces the cash balance.
func (p *Portfolio) SetCash(x float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash = x
}

// AddCash credits the cash balance.
func (p *Portfolio) AddCash(x float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash += x
}

// ReduceCash debits the cash balance. Going negative is tolerated but
// logged; the engine's cash gate is the real guard.
func (p *Portfolio) ReduceCash(x float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash -= x
	if p.cash < 0 {
		logs.Warnf("cash balance went negative, cash: %.2f, debit: %.2f", p.cash, x)
	}
}

// Position returns the quantity held for a symbol, zero when absent.
func (p *Portfolio) Position(symbol string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions[symbol].Quantity
}

// PositionCost returns the cost basis for a symbol, zero when absent.
func (p *Portfolio) PositionCost(symbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions[symbol].CostBasis
}

// AddPosition applies a buy fill: quantity and cost basis grow by qty
// and cost, the trade count increments, and a BUY record is appended.
// Cash is not touched here; the execution stage debits it separately.
func (p *Portfolio) AddPosition(symbol string, qty int64, cost float64) {
	if qty <= 0 || cost < 0 {
		logs.Warnf("ignoring invalid buy fill, symbol: %s, qty: %d, cost: %.2f", symbol, qty, cost)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.positions[symbol]
	pos.Quantity += qty
	pos.CostBasis += cost
	p.positions[symbol] = pos
	p.tradeCount++
	p.tradeLog = append(p.tradeLog, Trade{
		Time:     p.now(),
		Symbol:   symbol,
		Side:     enum.OrderSideBuy,
		Quantity: qty,
		Price:    cost / float64(qty),
		Value:    cost,
	})
}

// ReducePosition applies a sell fill of qty shares at price. The cost
// basis shrinks proportionally, so the realized P&L of the fill is
// qty*(price - averageCost). A sell against a missing or smaller
// position is rejected here; the engine truncates oversized sells
// before they reach this layer.
func (p *Portfolio) ReducePosition(symbol string, qty int64, price float64) (realized float64, ok bool) {
	if qty <= 0 {
		logs.Warnf("ignoring invalid sell fill, symbol: %s, qty: %d", symbol, qty)
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, exists := p.positions[symbol]
	if !exists || pos.Quantity < qty {
		logs.Warnf("sell exceeds position, symbol: %s, qty: %d, held: %d", symbol, qty, pos.Quantity)
		return 0, false
	}
	avg := pos.CostBasis / float64(pos.Quantity)
	removed := avg * float64(qty)
	pos.Quantity -= qty
	pos.CostBasis -= removed
	if pos.Quantity == 0 {
		delete(p.positions, symbol)
	} else {
		p.positions[symbol] = pos
	}
	realized = float64(qty) * (price - avg)
	p.tradeCount++
	p.tradeLog = append(p.tradeLog, Trade{
		Time:     p.now(),
		Symbol:   symbol,
		Side:     enum.OrderSideSell,
		Quantity: qty,
		Price:    price,
		Value:    price * float64(qty),
		PnL:      realized,
		HasPnL:   true,
	})
	return realized, true
}

// TotalValue returns cash plus the summed cost basis of open
// positions. Valuation is cost based; backtest metrics mark open
// positions to the last trade price on their own.
func (p *Portfolio) TotalValue() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.cash
	for _, pos := range p.positions {
		total += pos.CostBasis
	}
	return total
}

// TradeCount returns the number of applied fills.
func (p *Portfolio) TradeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tradeCount
}

// TradeLog returns a copy of the fill history in application order.
func (p *Portfolio) TradeLog() []Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Trade, len(p.tradeLog))
	copy(out, p.tradeLog)
	return out
}

// Positions returns a snapshot of open positions.
func (p *Portfolio) Positions() map[string]Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Position, len(p.positions))
	for sym, pos := range p.positions {
		out[sym] = pos
	}
	return out
}
