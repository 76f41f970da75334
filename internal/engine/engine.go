// Package engine owns the rings, the portfolio, and the two pipeline
// stages that turn ticks into applied fills.
package engine

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"winter/internal/model"
	"winter/internal/model/enum"
	"winter/internal/obs"
	"winter/internal/portfolio"
	"winter/internal/ring"
	"winter/internal/strategy"
)

// Config tunes the pipeline. Queue capacities are fixed once the
// engine has started.
type Config struct {
	MarketDataCapacity int
	OrderCapacity      int
	BatchSize          int
	// BuyCashFraction is the slice of current cash a BUY signal may
	// spend.
	BuyCashFraction float64
	// StrategyCPU and ExecutionCPU pin the stage goroutines when >= 0;
	// NoCPU disables pinning. Pinning is best effort; failures are
	// logged and ignored.
	StrategyCPU  int
	ExecutionCPU int
}

// NoCPU leaves a stage unpinned.
const NoCPU = -1

func (c Config) withDefaults() Config {
	if c.MarketDataCapacity <= 0 {
		c.MarketDataCapacity = 31000
	}
	if c.OrderCapacity <= 0 {
		c.OrderCapacity = 5000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BuyCashFraction <= 0 {
		c.BuyCashFraction = 0.10
	}
	return c
}

// Observer receives each applied fill on the execution goroutine. It
// must be fast and non-blocking.
type Observer func(model.Fill)

const dropLogEvery = 10000

// Engine wires the market-data ring, the strategy stage, the order
// ring, and the execution stage. The strategy stage is the only
// goroutine touching strategy state; the execution stage is the only
// mutator of the portfolio.
type Engine struct {
	cfg        Config
	strategies []strategy.Strategy
	pf         *portfolio.Portfolio
	mdRing     *ring.Ring[model.Tick]
	orderRing  *ring.Ring[model.Order]
	metrics    *obs.Metrics
	observer   Observer

	running atomic.Bool
	wg      sync.WaitGroup
}

// New builds an engine around an existing portfolio. A nil metrics is
// allowed and disables counting.
func New(cfg Config, pf *portfolio.Portfolio, metrics *obs.Metrics) (*Engine, error) {
	if pf == nil {
		return nil, errors.New("engine requires a portfolio")
	}
	cfg = cfg.withDefaults()
	mdRing, err := ring.New[model.Tick](cfg.MarketDataCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "market data ring")
	}
	orderRing, err := ring.New[model.Order](cfg.OrderCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "order ring")
	}
	return &Engine{
		cfg:       cfg,
		pf:        pf,
		mdRing:    mdRing,
		orderRing: orderRing,
		metrics:   metrics,
	}, nil
}

// Portfolio exposes the engine's portfolio for snapshots.
func (e *Engine) Portfolio() *portfolio.Portfolio { return e.pf }

// AddStrategy appends a strategy. Only valid before Start.
func (e *Engine) AddStrategy(s strategy.Strategy) error {
	if e.running.Load() {
		return errors.New("cannot add strategy while running")
	}
	e.strategies = append(e.strategies, s)
	return nil
}

// SetOrderObserver stores the fill callback. Only valid before Start.
func (e *Engine) SetOrderObserver(fn Observer) {
	e.observer = fn
}

// SubmitTick pushes a tick onto the market-data ring without
// blocking. A false return means the ring was full and the tick was
// dropped and counted.
func (e *Engine) SubmitTick(tick model.Tick) bool {
	if !e.mdRing.TryPush(tick) {
		e.metrics.IncTickDrop()
		if drops := e.metrics.TickDrops(); drops%dropLogEvery == 0 && drops > 0 {
			logs.Warnf("market data ring full, dropped %d ticks so far", drops)
		}
		return false
	}
	e.metrics.IncTickSubmitted()
	return true
}

// SubmitBatch submits each tick in order.
func (e *Engine) SubmitBatch(ticks []model.Tick) {
	for _, tick := range ticks {
		e.SubmitTick(tick)
	}
}

// Start initializes every strategy and spawns the two pipeline
// goroutines.
func (e *Engine) Start() error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	for _, s := range e.strategies {
		if err := s.Initialize(); err != nil {
			e.running.Store(false)
			return errors.Wrap(err, "initialize strategy").With("strategy", s.Name())
		}
	}
	e.wg.Add(2)
	go e.strategyLoop()
	go e.executionLoop()
	logs.Infof("engine started with %d strategies", len(e.strategies))
	return nil
}

// Stop flips the running flag, waits for both stages to finish their
// current batch, then shuts the strategies down. Items left in the
// rings are discarded. Safe to call more than once.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	e.wg.Wait()
	for _, s := range e.strategies {
		s.Shutdown()
	}
	logs.Info("engine stopped")
}

func (e *Engine) strategyLoop() {
	defer e.wg.Done()
	pinStage("strategy", e.cfg.StrategyCPU)

	buf := make([]model.Tick, e.cfg.BatchSize)
	for e.running.Load() {
		n := e.mdRing.PopBatch(buf)
		if n == 0 {
			runtime.Gosched()
			continue
		}
		for _, tick := range buf[:n] {
			for _, s := range e.strategies {
				if !s.Enabled() {
					continue
				}
				for _, sig := range e.processTickSafely(s, tick) {
					order, ok := e.sizeSignal(sig, tick.TimestampUs)
					if !ok {
						continue
					}
					if !e.orderRing.TryPush(order) {
						e.metrics.IncOrderDrop()
						logs.Warnf("order ring full, dropped %s %s", order.Side, order.Symbol)
						continue
					}
					e.metrics.IncOrderEmitted()
				}
			}
		}
	}
}

// processTickSafely isolates strategy panics: the tick is skipped and
// the strategy stays enabled.
func (e *Engine) processTickSafely(s strategy.Strategy, tick model.Tick) (out []model.Signal) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.IncStrategyFault()
			logs.Errorf("strategy %s panicked on tick %s: %+v", s.Name(), tick.Symbol, r)
			out = nil
		}
	}()
	return s.ProcessTick(tick)
}

// sizeSignal translates a signal into a portfolio-sized market order.
// Sizing lives here so strategies stay pure signal generators.
func (e *Engine) sizeSignal(sig model.Signal, tsUs int64) (model.Order, bool) {
	order := model.Order{
		Symbol:      sig.Symbol,
		Type:        enum.OrderTypeMarket,
		Price:       sig.Price,
		ZScore:      sig.ZScore,
		TimestampUs: tsUs,
	}
	switch sig.Kind {
	case enum.SignalBuy:
		qty := int64(math.Floor(e.pf.Cash() * e.cfg.BuyCashFraction / sig.Price))
		if qty <= 0 {
			return model.Order{}, false
		}
		order.Side = enum.OrderSideBuy
		order.Quantity = qty
	case enum.SignalSell:
		qty := e.pf.Position(sig.Symbol)
		if qty <= 0 {
			return model.Order{}, false
		}
		order.Side = enum.OrderSideSell
		order.Quantity = qty
	case enum.SignalExit:
		pos := e.pf.Position(sig.Symbol)
		switch {
		case pos > 0:
			order.Side = enum.OrderSideSell
			order.Quantity = pos
		case pos < 0:
			order.Side = enum.OrderSideBuy
			order.Quantity = -pos
		default:
			return model.Order{}, false
		}
	default:
		return model.Order{}, false
	}
	return order, true
}

func (e *Engine) executionLoop() {
	defer e.wg.Done()
	pinStage("execution", e.cfg.ExecutionCPU)

	buf := make([]model.Order, e.cfg.BatchSize)
	for e.running.Load() {
		n := e.orderRing.PopBatch(buf)
		if n == 0 {
			runtime.Gosched()
			continue
		}
		for _, order := range buf[:n] {
			e.execute(order)
		}
	}
}

func (e *Engine) execute(order model.Order) {
	switch order.Side {
	case enum.OrderSideBuy:
		total := order.TotalValue()
		if e.pf.Cash() < total {
			e.metrics.IncOrderDrop()
			logs.Warnf("insufficient cash for %s: need %.2f, have %.2f",
				order.Symbol, total, e.pf.Cash())
			return
		}
		e.pf.AddPosition(order.Symbol, order.Quantity, total)
		e.pf.ReduceCash(total)
		e.applyFill(model.Fill{Order: order, TimestampUs: time.Now().UnixMicro()})

	case enum.OrderSideSell:
		held := e.pf.Position(order.Symbol)
		switch {
		case held >= order.Quantity:
			// full fill
		case held > 0:
			logs.Infof("partial sell for %s: wanted %d, filling %d",
				order.Symbol, order.Quantity, held)
			order.Quantity = held
		default:
			logs.Debugf("sell with no position for %s dropped", order.Symbol)
			return
		}
		realized, ok := e.pf.ReducePosition(order.Symbol, order.Quantity, order.Price)
		if !ok {
			e.metrics.IncOrderDrop()
			return
		}
		e.pf.AddCash(order.TotalValue())
		e.applyFill(model.Fill{
			Order:       order,
			RealizedPnL: realized,
			HasPnL:      true,
			TimestampUs: time.Now().UnixMicro(),
		})
	}
}

func (e *Engine) applyFill(fill model.Fill) {
	e.metrics.IncFill()
	if fill.Order.TimestampUs > 0 {
		e.metrics.ObserveTickToFill(time.Duration(fill.TimestampUs-fill.Order.TimestampUs) * time.Microsecond)
	}
	if e.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("order observer panicked: %+v", r)
		}
	}()
	e.observer(fill)
}

func pinStage(stage string, cpu int) {
	if cpu < 0 {
		return
	}
	if err := pinToCPU(cpu); err != nil {
		logs.Warnf("pin %s stage to cpu %d failed: %+v", stage, cpu, err)
		return
	}
	logs.Infof("pinned %s stage to cpu %d", stage, cpu)
}
