package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winter/internal/model"
	"winter/internal/model/enum"
	"winter/internal/strategy"
)

// scripted replays a fixed signal script, one entry per tick.
type scripted struct {
	script  [][]model.Signal
	calls   int
	panicAt int
	initErr error
}

func newScripted(script [][]model.Signal) *scripted {
	return &scripted{script: script, panicAt: -1}
}

func (s *scripted) Name() string      { return "scripted" }
func (s *scripted) Enabled() bool     { return true }
func (s *scripted) Initialize() error { return s.initErr }
func (s *scripted) Shutdown()         {}

func (s *scripted) ProcessTick(model.Tick) []model.Signal {
	i := s.calls
	s.calls++
	if i == s.panicAt {
		panic("scripted failure")
	}
	if i < len(s.script) {
		return s.script[i]
	}
	return nil
}

var _ strategy.Strategy = (*scripted)(nil)

func replayTicks(prices ...float64) []model.Tick {
	ticks := make([]model.Tick, len(prices))
	for i, price := range prices {
		ticks[i] = model.Tick{Symbol: "X", Price: price, Volume: 100, TimestampUs: int64(i)}
	}
	return ticks
}

func buy(price float64) model.Signal {
	return model.Signal{Symbol: "X", Kind: enum.SignalBuy, Strength: 1, Price: price}
}

func sell(price float64) model.Signal {
	return model.Signal{Symbol: "X", Kind: enum.SignalSell, Strength: 1, Price: price}
}

func TestRunBuySellRoundTrip(t *testing.T) {
	// 1% of 1000 at price 10 buys exactly one share per entry.
	st := newScripted([][]model.Signal{
		{buy(10)},
		{sell(12)},
		{buy(10)},
		{sell(8)},
	})
	res, err := Run(st, replayTicks(10, 12, 10, 8), 1000)
	require.NoError(t, err)

	assert.Equal(t, []float64{1000, 1000, 1002, 1002, 1000, 1000}, res.EquityCurve)
	assert.Equal(t, 1000.0, res.FinalEquity)
	assert.Empty(t, res.OpenPositions)

	require.Len(t, res.Trades, 4)
	assert.Equal(t, 2.0, res.Trades[1].PnL)
	assert.Equal(t, -2.0, res.Trades[3].PnL)

	m := res.Metrics
	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.Equal(t, 0.5, m.WinRate)
	assert.Equal(t, 1.0, m.ProfitFactor)
	assert.Equal(t, 0.0, m.TotalReturn)
	assert.Equal(t, 2.0, m.MaxDrawdown)
	assert.InDelta(t, 0.2, m.MaxDrawdownPct, 1e-9)
}

func TestRunMarksOpenPositionsAtLastPrice(t *testing.T) {
	st := newScripted([][]model.Signal{{buy(10)}})
	res, err := Run(st, replayTicks(10, 20), 1000)
	require.NoError(t, err)

	require.Len(t, res.OpenPositions, 1)
	assert.Equal(t, int64(1), res.OpenPositions["X"].Quantity)
	assert.Equal(t, 1010.0, res.FinalEquity)
	assert.Equal(t, 10.0, res.Metrics.TotalReturn)
	assert.InDelta(t, 1.0, res.Metrics.TotalReturnPct, 1e-9)
	assert.InDelta(t, 0.01, res.Metrics.AnnualizedReturn, 1e-9)
}

func TestRunIsIdempotent(t *testing.T) {
	ticks := replayTicks(10, 12, 10, 8, 15)
	script := [][]model.Signal{
		{buy(10)},
		{sell(12)},
		{buy(10)},
		nil,
		{sell(15)},
	}
	first, err := Run(newScripted(script), ticks, 1000)
	require.NoError(t, err)
	second, err := Run(newScripted(script), ticks, 1000)
	require.NoError(t, err)

	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Fills, second.Fills)
	assert.Equal(t, first.Metrics, second.Metrics)
}

func TestRunSyntheticClockStampsTrades(t *testing.T) {
	st := newScripted([][]model.Signal{
		{buy(10)},
		{sell(12)},
	})
	res, err := Run(st, replayTicks(10, 12), 1000)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, int64(0), res.Trades[0].Time.UnixMicro())
	assert.Equal(t, int64(1), res.Trades[1].Time.UnixMicro())
}

func TestRunSkipsUnfundableBuy(t *testing.T) {
	// 1% of 50 is below one share at price 10.
	st := newScripted([][]model.Signal{{buy(10)}})
	res, err := Run(st, replayTicks(10), 50)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 50.0, res.FinalEquity)
}

func TestRunSkipsSellWithoutPosition(t *testing.T) {
	st := newScripted([][]model.Signal{{sell(10)}})
	res, err := Run(st, replayTicks(10), 1000)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1000.0, res.FinalEquity)
}

func TestRunExitFlattensPosition(t *testing.T) {
	st := newScripted([][]model.Signal{
		{buy(10)},
		{{Symbol: "X", Kind: enum.SignalExit, Strength: 1, Price: 11}},
	})
	res, err := Run(st, replayTicks(10, 11), 1000)
	require.NoError(t, err)
	assert.Empty(t, res.OpenPositions)
	assert.Equal(t, 1001.0, res.FinalEquity)
}

func TestRunStrategyPanicSkipsTick(t *testing.T) {
	st := newScripted([][]model.Signal{nil, {buy(10)}})
	st.panicAt = 0
	res, err := Run(st, replayTicks(10, 10), 1000)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, enum.OrderSideBuy, res.Trades[0].Side)
}

func TestRunInitializeErrorIsFatal(t *testing.T) {
	st := newScripted(nil)
	st.initErr = assert.AnError
	_, err := Run(st, replayTicks(10), 1000)
	assert.Error(t, err)
}
