// Package sim replays a historical CSV in parallel, one worker per
// symbol, each against its own strategy instance and capital share.
package sim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"winter/internal/backtest"
	"winter/internal/model"
	"winter/internal/portfolio"
	"winter/internal/strategy"
)

// Config controls a simulation run.
type Config struct {
	// InitialCapital is the total capital, split evenly across symbols.
	InitialCapital float64
	// Speed paces replay against the recorded tick timestamps.
	// 0 replays instantly; 1 replays at recorded pace.
	Speed float64
}

// Validate checks if the config is usable.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return errors.Errorf("invalid sim config: InitialCapital must be > 0, got %.2f", c.InitialCapital)
	}
	if c.Speed < 0 {
		return errors.Errorf("invalid sim config: Speed must be >= 0, got %.2f", c.Speed)
	}
	return nil
}

// Clock allows deterministic replay control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Runner shards ticks by symbol and replays every shard concurrently.
type Runner struct {
	cfg         Config
	clock       Clock
	newStrategy func() (strategy.Strategy, error)
}

// New validates the config and creates a runner. newStrategy is
// invoked once per symbol so shards never share strategy state.
func New(cfg Config, newStrategy func() (strategy.Strategy, error)) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if newStrategy == nil {
		return nil, errors.New("sim strategy factory is nil")
	}
	return &Runner{cfg: cfg, clock: realClock{}, newStrategy: newStrategy}, nil
}

// WithClock swaps the clock implementation.
func (r *Runner) WithClock(clock Clock) *Runner {
	if clock != nil {
		r.clock = clock
	}
	return r
}

// Result merges every shard's replay into one view.
type Result struct {
	PerSymbol   map[string]*backtest.Result
	Fills       []model.Fill
	Trades      []portfolio.Trade
	EquityCurve []float64
	Metrics     backtest.Metrics
}

// Run shards ticks by symbol and replays each shard through its own
// strategy instance. Fills, trades, and the combined equity curve are
// merged in timestamp order, so a rerun over the same input produces
// identical results.
func (r *Runner) Run(ctx context.Context, ticks []model.Tick) (*Result, error) {
	shards := make(map[string][]model.Tick)
	for _, tick := range ticks {
		if !tick.Valid() {
			continue
		}
		shards[tick.Symbol] = append(shards[tick.Symbol], tick)
	}
	symbols := make([]string, 0, len(shards))
	for symbol := range shards {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	res := &Result{PerSymbol: make(map[string]*backtest.Result, len(symbols))}
	if len(symbols) == 0 {
		res.EquityCurve = []float64{r.cfg.InitialCapital}
		res.Metrics = backtest.ComputeMetrics(r.cfg.InitialCapital, res.EquityCurve, nil)
		return res, nil
	}

	share := r.cfg.InitialCapital / float64(len(symbols))
	logs.Infof("simulating %d symbols in parallel, capital per symbol: %.2f", len(symbols), share)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			shardRes, err := r.replayShard(ctx, shards[symbol], share)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrap(err, "replay shard").With("symbol", symbol)
				}
				return
			}
			res.PerSymbol[symbol] = shardRes
		}(symbol)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	r.merge(res, symbols, share)
	return res, nil
}

func (r *Runner) replayShard(ctx context.Context, ticks []model.Tick, share float64) (*backtest.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := r.newStrategy()
	if err != nil {
		return nil, errors.Wrap(err, "create strategy")
	}
	if r.cfg.Speed > 0 {
		st = &pacedStrategy{Strategy: st, ctx: ctx, clock: r.clock, speed: r.cfg.Speed}
	}
	return backtest.Run(st, ticks, share)
}

// merge builds the combined fill list, trade log, and equity curve.
// Each shard's equity is tracked at its last known value; the combined
// curve gains one point per fill in timestamp order.
func (r *Runner) merge(res *Result, symbols []string, share float64) {
	type event struct {
		tsUs   int64
		symbol string
		fill   model.Fill
		equity float64
	}
	var events []event
	for _, symbol := range symbols {
		shard := res.PerSymbol[symbol]
		for i, f := range shard.Fills {
			events = append(events, event{
				tsUs:   f.TimestampUs,
				symbol: symbol,
				fill:   f,
				equity: shard.EquityCurve[i+1],
			})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].tsUs < events[j].tsUs })

	last := make(map[string]float64, len(symbols))
	var finalEquity float64
	for _, symbol := range symbols {
		last[symbol] = share
		finalEquity += res.PerSymbol[symbol].FinalEquity
	}

	total := share * float64(len(symbols))
	res.EquityCurve = append(res.EquityCurve, total)
	for _, ev := range events {
		last[ev.symbol] = ev.equity
		combined := 0.0
		for _, symbol := range symbols {
			combined += last[symbol]
		}
		res.Fills = append(res.Fills, ev.fill)
		res.EquityCurve = append(res.EquityCurve, combined)
	}
	res.EquityCurve = append(res.EquityCurve, finalEquity)

	for _, symbol := range symbols {
		res.Trades = append(res.Trades, res.PerSymbol[symbol].Trades...)
	}
	sort.SliceStable(res.Trades, func(i, j int) bool { return res.Trades[i].Time.Before(res.Trades[j].Time) })

	res.Metrics = backtest.ComputeMetrics(total, res.EquityCurve, res.Trades)
}

// pacedStrategy sleeps between ticks proportionally to the recorded
// timestamp deltas before delegating to the wrapped strategy.
type pacedStrategy struct {
	strategy.Strategy
	ctx    context.Context
	clock  Clock
	speed  float64
	prevUs int64
}

func (p *pacedStrategy) ProcessTick(tick model.Tick) []model.Signal {
	if p.prevUs > 0 {
		if delta := tick.TimestampUs - p.prevUs; delta > 0 {
			d := time.Duration(float64(delta) * float64(time.Microsecond) / p.speed)
			if err := p.clock.Sleep(p.ctx, d); err != nil {
				return nil
			}
		}
	}
	p.prevUs = tick.TimestampUs
	return p.Strategy.ProcessTick(tick)
}
