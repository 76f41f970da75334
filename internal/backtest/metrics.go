package backtest

import (
	"math"

	"winter/internal/portfolio"
)

const tradingDaysPerYear = 252

// Metrics summarises one backtest run. Win rate and profit factor
// cover closed (sell) trades only; buys carry no realized P&L.
type Metrics struct {
	InitialCapital   float64
	FinalEquity      float64
	TotalReturn      float64
	TotalReturnPct   float64
	AnnualizedReturn float64
	SharpeRatio      float64
	MaxDrawdown      float64
	MaxDrawdownPct   float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	ProfitFactor     float64
}

// ComputeMetrics derives run metrics from an equity curve and its
// trade log. The curve is expected to start at the initial capital.
func ComputeMetrics(initial float64, curve []float64, trades []portfolio.Trade) Metrics {
	m := Metrics{
		InitialCapital: initial,
		FinalEquity:    initial,
	}
	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1]
	}
	m.TotalReturn = m.FinalEquity - initial
	if initial != 0 {
		m.TotalReturnPct = m.TotalReturn / initial * 100
	}
	if initial > 0 {
		// The replay span is taken as one year of trading days.
		m.AnnualizedReturn = m.FinalEquity/initial - 1
	}
	m.SharpeRatio = sharpeRatio(perTradeReturns(curve))
	m.MaxDrawdown = maxDrawdown(curve)
	if initial != 0 {
		m.MaxDrawdownPct = m.MaxDrawdown / initial * 100
	}

	var grossProfit, grossLoss float64
	for _, tr := range trades {
		m.TotalTrades++
		if !tr.HasPnL {
			continue
		}
		if tr.PnL > 0 {
			m.WinningTrades++
			grossProfit += tr.PnL
		} else {
			m.LosingTrades++
			grossLoss += -tr.PnL
		}
	}
	if closed := m.WinningTrades + m.LosingTrades; closed > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(closed)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}
	return m
}

func perTradeReturns(curve []float64) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 {
			continue
		}
		returns = append(returns, curve[i]/curve[i-1]-1)
	}
	return returns
}

// sharpeRatio annualises mean/std of per-trade returns by sqrt(252).
// Zero when the return series is empty or flat.
func sharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

func maxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0]
	var worst float64
	for _, equity := range curve {
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > worst {
			worst = dd
		}
	}
	return worst
}
