package backtest

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"winter/internal/model"
	"winter/internal/model/enum"
	"winter/internal/portfolio"
	"winter/internal/strategy"
)

// buyFraction is the share of current cash committed per buy fill.
const buyFraction = 0.01

// Result holds everything one replay produced.
type Result struct {
	InitialCapital float64
	FinalEquity    float64
	// EquityCurve starts at the initial capital, gains one point after
	// each fill, and closes with open positions marked at the last
	// seen trade price.
	EquityCurve   []float64
	Trades        []portfolio.Trade
	Fills         []model.Fill
	OpenPositions map[string]portfolio.Position
	Metrics       Metrics
}

// Run replays ticks through st against a fresh portfolio. Signals fill
// at the signal price with no queue in between, so two runs over the
// same input produce identical results. Buys commit 1% of current
// cash; sells flatten the whole position.
func Run(st strategy.Strategy, ticks []model.Tick, initialCapital float64) (*Result, error) {
	if err := st.Initialize(); err != nil {
		return nil, errors.Wrap(err, "initialize strategy").With("strategy", st.Name())
	}
	defer st.Shutdown()

	var clockUs int64
	pf := portfolio.New(initialCapital, portfolio.WithClock(func() time.Time {
		return time.UnixMicro(clockUs)
	}))
	lastPrice := make(map[string]float64)
	res := &Result{
		InitialCapital: initialCapital,
		EquityCurve:    []float64{initialCapital},
	}

	markEquity := func() float64 {
		equity := pf.Cash()
		for symbol, pos := range pf.Positions() {
			equity += float64(pos.Quantity) * lastPrice[symbol]
		}
		return equity
	}

	for _, tick := range ticks {
		if !tick.Valid() {
			continue
		}
		lastPrice[tick.Symbol] = tick.Price
		clockUs = tick.TimestampUs
		for _, sig := range processTickSafely(st, tick) {
			fill, ok := applySignal(pf, sig, tick.TimestampUs)
			if !ok {
				continue
			}
			res.Fills = append(res.Fills, fill)
			res.EquityCurve = append(res.EquityCurve, markEquity())
		}
	}

	res.FinalEquity = markEquity()
	res.EquityCurve = append(res.EquityCurve, res.FinalEquity)
	res.Trades = pf.TradeLog()
	res.OpenPositions = pf.Positions()
	res.Metrics = ComputeMetrics(initialCapital, res.EquityCurve, res.Trades)
	return res, nil
}

func processTickSafely(st strategy.Strategy, tick model.Tick) (signals []model.Signal) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("strategy %s panicked, symbol: %s, err: %+v", st.Name(), tick.Symbol, r)
			signals = nil
		}
	}()
	if !st.Enabled() {
		return nil
	}
	return st.ProcessTick(tick)
}

func applySignal(pf *portfolio.Portfolio, sig model.Signal, tsUs int64) (model.Fill, bool) {
	switch sig.Kind {
	case enum.SignalBuy:
		qty := int64(pf.Cash() * buyFraction / sig.Price)
		if qty < 1 {
			return model.Fill{}, false
		}
		cost := float64(qty) * sig.Price
		pf.AddPosition(sig.Symbol, qty, cost)
		pf.ReduceCash(cost)
		return fill(sig, enum.OrderSideBuy, qty, 0, false, tsUs), true
	case enum.SignalSell, enum.SignalExit:
		held := pf.Position(sig.Symbol)
		if held <= 0 {
			return model.Fill{}, false
		}
		realized, ok := pf.ReducePosition(sig.Symbol, held, sig.Price)
		if !ok {
			return model.Fill{}, false
		}
		pf.AddCash(float64(held) * sig.Price)
		return fill(sig, enum.OrderSideSell, held, realized, true, tsUs), true
	}
	return model.Fill{}, false
}

func fill(sig model.Signal, side enum.OrderSide, qty int64, realized float64, hasPnL bool, tsUs int64) model.Fill {
	return model.Fill{
		Order: model.Order{
			Symbol:      sig.Symbol,
			Side:        side,
			Type:        enum.OrderTypeMarket,
			Quantity:    qty,
			Price:       sig.Price,
			ZScore:      sig.ZScore,
			TimestampUs: tsUs,
		},
		RealizedPnL: realized,
		HasPnL:      hasPnL,
		TimestampUs: tsUs,
	}
}
