// Package statarb implements a pair-trading statistical-arbitrage
// strategy with multi-timeframe z-scores, a dynamic hedge ratio, and
// cash/sector risk gates.
package statarb

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"winter/internal/model"
	"winter/internal/model/enum"
)

// Name is the registry key for this strategy.
const Name = "StatArbitrage"

// Config carries the tunables. Zero values fall back to defaults.
type Config struct {
	Pairs   []Pair
	Capital float64

	EntryThreshold   float64
	ExitThreshold    float64
	ProfitTargetMult float64
	TrailingStopPct  float64
	StopLossPct      float64

	MaxPositionPct      float64
	MaxSectorAllocation float64
	MinCashReservePct   float64
	EmergencyCashLevel  float64

	ShortLookback  int
	MediumLookback int
	LongLookback   int

	MaxHolding    time.Duration
	MinHolding    time.Duration
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.Pairs) == 0 {
		c.Pairs = DefaultPairs()
	}
	if c.Capital <= 0 {
		c.Capital = 5_000_000
	}
	if c.EntryThreshold <= 0 {
		c.EntryThreshold = 1.3
	}
	if c.ExitThreshold <= 0 {
		c.ExitThreshold = 0.5
	}
	if c.ProfitTargetMult <= 0 {
		c.ProfitTargetMult = 0.7
	}
	if c.TrailingStopPct <= 0 {
		c.TrailingStopPct = 0.25
	}
	if c.StopLossPct <= 0 {
		c.StopLossPct = 0.018
	}
	if c.MaxPositionPct <= 0 {
		c.MaxPositionPct = 0.004
	}
	if c.MaxSectorAllocation <= 0 {
		c.MaxSectorAllocation = 0.25
	}
	if c.MinCashReservePct <= 0 {
		c.MinCashReservePct = 0.15
	}
	if c.EmergencyCashLevel <= 0 {
		c.EmergencyCashLevel = 0.05
	}
	if c.ShortLookback <= 0 {
		c.ShortLookback = 8
	}
	if c.MediumLookback <= 0 {
		c.MediumLookback = 15
	}
	if c.LongLookback <= 0 {
		c.LongLookback = 25
	}
	if c.MaxHolding <= 0 {
		c.MaxHolding = 72 * time.Hour
	}
	if c.MinHolding <= 0 {
		c.MinHolding = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 500 * time.Millisecond
	}
	return c
}

func (c Config) validate() error {
	if c.ShortLookback >= c.MediumLookback || c.MediumLookback >= c.LongLookback {
		return errors.Errorf("lookbacks must be increasing, got %d/%d/%d",
			c.ShortLookback, c.MediumLookback, c.LongLookback)
	}
	if c.ExitThreshold >= c.EntryThreshold {
		return errors.Errorf("exit threshold %.2f must be below entry threshold %.2f",
			c.ExitThreshold, c.EntryThreshold)
	}
	for _, p := range c.Pairs {
		if p.A == "" || p.B == "" || p.A == p.B {
			return errors.Errorf("invalid pair %q/%q", p.A, p.B)
		}
	}
	return nil
}

// pairState is the full trading state for one pair. Positions open
// and close atomically: qtyA and qtyB are both zero or both set with
// opposite signs.
type pairState struct {
	Pair

	beta     float64
	halfLife float64

	// pair-local previous leg prices for aligned return sampling
	prevA, prevB float64
	returnsA     *rollingWindow
	returnsB     *rollingWindow
	spreadShort  *rollingWindow
	spreadMedium *rollingWindow
	spreadLong   *rollingWindow
	prevZ        float64

	qtyA, qtyB            int64
	entryPriceA           float64
	entryPriceB           float64
	entryZ                float64
	peakProfit            float64
	maxFavorableExcursion float64
	entryTimeUs           int64

	tradeReturns *rollingWindow
	sharpe       float64
}

func (p *pairState) open() bool { return p.qtyA != 0 }

func (p *pairState) unrealized(pA, pB float64) float64 {
	if !p.open() {
		return 0
	}
	return float64(p.qtyA)*(pA-p.entryPriceA) + float64(p.qtyB)*(pB-p.entryPriceB)
}

func (p *pairState) positionValue(pA, pB float64) float64 {
	if !p.open() {
		return 0
	}
	return math.Abs(float64(p.qtyA))*pA + math.Abs(float64(p.qtyB))*pB
}

func (p *pairState) recordReturn(r float64) {
	p.tradeReturns.push(r)
	if p.tradeReturns.count < 5 {
		return
	}
	std := p.tradeReturns.std()
	if std > 1e-4 {
		p.sharpe = p.tradeReturns.mean() / std
	}
}

// Strategy trades a fixed set of symbol pairs. Not safe for
// concurrent use; the strategy stage is its only caller.
type Strategy struct {
	cfg     Config
	enabled bool

	pairs    []*pairState
	bySymbol map[string][]*pairState

	prices    map[string]float64
	priceHist map[string]*rollingWindow
	vol       map[string]float64

	availableCash float64
	sectorAlloc   map[string]float64
	lastSweepUs   int64
}

// New creates the strategy from cfg; zero fields take defaults.
func New(cfg Config) *Strategy {
	return &Strategy{cfg: cfg, enabled: true}
}

func (s *Strategy) Name() string  { return Name }
func (s *Strategy) Enabled() bool { return s.enabled }

func (s *Strategy) Initialize() error {
	s.cfg = s.cfg.withDefaults()
	if err := s.cfg.validate(); err != nil {
		return errors.Wrap(err, "statarb config")
	}
	s.pairs = s.pairs[:0]
	s.bySymbol = make(map[string][]*pairState)
	s.prices = make(map[string]float64)
	s.priceHist = make(map[string]*rollingWindow)
	s.vol = make(map[string]float64)
	s.sectorAlloc = make(map[string]float64)
	s.availableCash = s.cfg.Capital
	s.lastSweepUs = 0

	for _, p := range s.cfg.Pairs {
		ps := &pairState{
			Pair:         p,
			beta:         1.0,
			returnsA:     newRollingWindow(s.cfg.MediumLookback),
			returnsB:     newRollingWindow(s.cfg.MediumLookback),
			spreadShort:  newRollingWindow(s.cfg.ShortLookback),
			spreadMedium: newRollingWindow(s.cfg.MediumLookback),
			spreadLong:   newRollingWindow(s.cfg.LongLookback),
			tradeReturns: newRollingWindow(20),
			sharpe:       1.0,
		}
		s.pairs = append(s.pairs, ps)
		s.bySymbol[p.A] = append(s.bySymbol[p.A], ps)
		s.bySymbol[p.B] = append(s.bySymbol[p.B], ps)
	}
	logs.Infof("statarb trading %d pairs", len(s.pairs))
	return nil
}

func (s *Strategy) Shutdown() {
	for _, ps := range s.pairs {
		if ps.open() {
			logs.Warnf("statarb shutdown with open pair %s-%s", ps.A, ps.B)
		}
	}
}

// Configure accepts numeric overrides for thresholds and percentages.
func (s *Strategy) Configure(params map[string]string) error {
	for key, raw := range params {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errors.Wrap(err, "parse statarb param").With("key", key).With("value", raw)
		}
		switch key {
		case "entry_threshold":
			s.cfg.EntryThreshold = v
		case "exit_threshold":
			s.cfg.ExitThreshold = v
		case "profit_target_mult":
			s.cfg.ProfitTargetMult = v
		case "trailing_stop_pct":
			s.cfg.TrailingStopPct = v
		case "stop_loss_pct":
			s.cfg.StopLossPct = v
		case "max_position_pct":
			s.cfg.MaxPositionPct = v
		case "max_sector_allocation":
			s.cfg.MaxSectorAllocation = v
		case "min_cash_reserve_pct":
			s.cfg.MinCashReservePct = v
		case "capital":
			s.cfg.Capital = v
		}
	}
	return nil
}

// ProcessTick updates per-symbol state and evaluates every pair the
// symbol participates in. Symbols outside the pair set are dropped at
// the entrance.
func (s *Strategy) ProcessTick(tick model.Tick) []model.Signal {
	pairs, active := s.bySymbol[tick.Symbol]
	if !active || tick.Price <= 0 {
		return nil
	}

	s.updateSymbol(tick.Symbol, tick.Price)

	var out []model.Signal
	for _, ps := range pairs {
		out = append(out, s.evaluatePair(ps, tick.TimestampUs)...)
	}

	if s.cfg.SweepInterval > 0 &&
		tick.TimestampUs-s.lastSweepUs > s.cfg.SweepInterval.Microseconds() {
		out = append(out, s.sweepCapital()...)
		s.lastSweepUs = tick.TimestampUs
	}
	return out
}

func (s *Strategy) updateSymbol(symbol string, price float64) {
	s.prices[symbol] = price
	hist := s.priceHist[symbol]
	if hist == nil {
		hist = newRollingWindow(2 * s.cfg.LongLookback)
		s.priceHist[symbol] = hist
	}
	hist.push(price)
	if hist.count >= 10 {
		s.vol[symbol] = annualizedVolatility(hist)
	}
}

func (s *Strategy) evaluatePair(ps *pairState, nowUs int64) []model.Signal {
	pA, okA := s.prices[ps.A]
	pB, okB := s.prices[ps.B]
	if !okA || !okB {
		return nil
	}

	// Aligned return samples feed the hedge-ratio regression.
	if ps.prevA > 0 && ps.prevB > 0 {
		ps.returnsA.push(pA/ps.prevA - 1)
		ps.returnsB.push(pB/ps.prevB - 1)
	}
	ps.prevA = pA
	ps.prevB = pB

	if ps.returnsA.full() {
		if slope, ok := olsSlope(ps.returnsB, ps.returnsA); ok {
			ps.beta = clamp(slope, 0.5, 2.0)
		}
	}

	spread := pA - ps.beta*pB
	ps.spreadShort.push(spread)
	ps.spreadMedium.push(spread)
	ps.spreadLong.push(spread)
	ps.halfLife = halfLife(ps.spreadLong)

	if !ps.spreadMedium.full() {
		return nil
	}

	zS := ps.spreadShort.zScore(spread)
	zM := ps.spreadMedium.zScore(spread)
	zL := ps.spreadLong.zScore(spread)

	entry := s.cfg.EntryThreshold
	confirmedShort := zM > entry && zM < ps.prevZ
	confirmedLong := zM < -entry && zM > ps.prevZ
	ps.prevZ = zM

	if ps.open() {
		return s.evaluateExit(ps, pA, pB, zS, zM, nowUs)
	}

	strong := math.Abs(zS) > 0.8*entry &&
		math.Abs(zM) > entry &&
		math.Abs(zL) > 0.6*entry
	if !strong {
		return nil
	}

	switch {
	case confirmedShort:
		return s.enterPair(ps, pA, pB, zM, nowUs, true)
	case confirmedLong:
		return s.enterPair(ps, pA, pB, zM, nowUs, false)
	default:
		return nil
	}
}

// enterPair opens both legs if every risk gate passes. shortSpread
// sells A and buys B; long spread is the mirror.
func (s *Strategy) enterPair(ps *pairState, pA, pB, zM float64, nowUs int64, shortSpread bool) []model.Signal {
	if s.availableCash/s.cfg.Capital < s.cfg.MinCashReservePct {
		return nil
	}

	qtyA := s.positionSize(ps, ps.A, pA, zM)
	qtyB := s.positionSize(ps, ps.B, pB, zM)
	posValue := float64(qtyA)*pA + float64(qtyB)*pB
	if posValue > s.availableCash {
		return nil
	}
	if s.sectorAlloc[ps.Sector]+posValue > s.cfg.MaxSectorAllocation*s.cfg.Capital {
		return nil
	}

	sideA, sideB := enum.SignalBuy, enum.SignalSell
	if shortSpread {
		sideA, sideB = enum.SignalSell, enum.SignalBuy
		ps.qtyA = -qtyA
		ps.qtyB = qtyB
	} else {
		ps.qtyA = qtyA
		ps.qtyB = -qtyB
	}
	ps.entryPriceA = pA
	ps.entryPriceB = pB
	ps.entryZ = zM
	ps.peakProfit = 0
	ps.maxFavorableExcursion = 0
	ps.entryTimeUs = nowUs

	s.availableCash -= posValue
	s.sectorAlloc[ps.Sector] += posValue

	logs.Debugf("statarb entry %s %s / %s %s, z: %.4f",
		sideA, ps.A, sideB, ps.B, zM)
	return []model.Signal{
		{Symbol: ps.A, Kind: sideA, Strength: 1, Price: pA, ZScore: zM},
		{Symbol: ps.B, Kind: sideB, Strength: 1, Price: pB, ZScore: zM},
	}
}

func (s *Strategy) evaluateExit(ps *pairState, pA, pB, zS, zM float64, nowUs int64) []model.Signal {
	posValue := ps.positionValue(pA, pB)
	if posValue <= 0 {
		return nil
	}
	pnl := ps.unrealized(pA, pB)
	profitPct := pnl / posValue
	if profitPct > ps.peakProfit {
		ps.peakProfit = profitPct
	}

	// Favorable excursion is tracked in z space: long spread profits
	// as z falls, short spread as z rises.
	movement := zM - ps.entryZ
	if ps.qtyA > 0 {
		movement = ps.entryZ - zM
	}
	if movement > ps.maxFavorableExcursion {
		ps.maxFavorableExcursion = movement
	}

	held := time.Duration(nowUs-ps.entryTimeUs) * time.Microsecond

	stopLoss := pnl < -s.cfg.StopLossPct*posValue
	trailingStop := held >= s.cfg.MinHolding &&
		ps.peakProfit > 0.01 &&
		(ps.peakProfit-profitPct) >= s.cfg.TrailingStopPct*ps.peakProfit
	timeBased := held > s.cfg.MaxHolding

	exit := s.cfg.ExitThreshold
	meanReverted := (ps.qtyA > 0 && zM > -exit) || (ps.qtyA < 0 && zM < exit)
	meanRevExit := meanReverted && math.Abs(zS) < 1.5*exit

	profitTarget := ps.maxFavorableExcursion > 0 &&
		ps.maxFavorableExcursion*s.cfg.ProfitTargetMult <= math.Abs(ps.entryZ-zM)

	var reason string
	switch {
	case stopLoss:
		reason = "stop loss"
	case trailingStop:
		reason = "trailing stop"
	case timeBased:
		reason = "max holding"
	case meanRevExit:
		reason = "mean reversion"
	case profitTarget:
		reason = "profit target"
	default:
		return nil
	}

	logs.Debugf("statarb exit %s-%s (%s), z: %.4f, pnl: %.2f", ps.A, ps.B, reason, zM, pnl)
	return s.closePair(ps, pA, pB, zM, profitPct)
}

// closePair emits closing signals for both legs and resets the pair
// to flat. Sides invert the open positions so the legs stay atomic.
func (s *Strategy) closePair(ps *pairState, pA, pB, zM, profitPct float64) []model.Signal {
	sideA := enum.SignalBuy
	if ps.qtyA > 0 {
		sideA = enum.SignalSell
	}
	sideB := enum.SignalBuy
	if ps.qtyB > 0 {
		sideB = enum.SignalSell
	}

	posValue := ps.positionValue(pA, pB)
	s.availableCash += posValue
	s.sectorAlloc[ps.Sector] -= posValue
	if s.sectorAlloc[ps.Sector] < 0 {
		s.sectorAlloc[ps.Sector] = 0
	}
	ps.recordReturn(profitPct)

	ps.qtyA = 0
	ps.qtyB = 0
	ps.peakProfit = 0
	ps.maxFavorableExcursion = 0
	ps.entryTimeUs = 0

	return []model.Signal{
		{Symbol: ps.A, Kind: sideA, Strength: 1, Price: pA, ZScore: zM},
		{Symbol: ps.B, Kind: sideB, Strength: 1, Price: pB, ZScore: zM},
	}
}

// positionSize computes the share count for one leg, scaled by
// volatility, signal strength, the pair's Sharpe, half-life, and the
// prevailing market volatility. Never below one share.
func (s *Strategy) positionSize(ps *pairState, symbol string, price, zM float64) int64 {
	vol := s.vol[symbol]
	if vol <= 0 {
		vol = 0.015
	}
	volFactor := math.Min(2, 0.25/math.Max(0.03, vol))
	zFactor := math.Min(2, 0.7+math.Pow(math.Abs(zM)/s.cfg.EntryThreshold, 0.6))
	sharpeFactor := clamp(ps.sharpe/2, 0.4, 1.8)
	hlFactor := 1.0
	if ps.halfLife > 0 {
		hlFactor = math.Min(1.5, 10/ps.halfLife)
	}
	mktFactor := s.marketVolFactor()

	base := s.cfg.Capital * s.cfg.MaxPositionPct / price
	qty := int64(base * volFactor * zFactor * sharpeFactor * hlFactor * mktFactor)
	if qty < 1 {
		qty = 1
	}
	return qty
}

// marketVolFactor shrinks sizing when the average annualized
// volatility across tracked symbols runs above its baseline.
func (s *Strategy) marketVolFactor() float64 {
	if len(s.vol) == 0 {
		return 1
	}
	var sum float64
	for _, v := range s.vol {
		sum += v
	}
	market := sum / float64(len(s.vol))
	return math.Min(1.5, 0.015/math.Max(0.005, market))
}

// sweepCapital recomputes allocated capital from open positions at
// last-seen prices and force-closes the worst performing pairs while
// cash sits below the emergency reserve.
func (s *Strategy) sweepCapital() []model.Signal {
	allocated := 0.0
	for sector := range s.sectorAlloc {
		s.sectorAlloc[sector] = 0
	}
	for _, ps := range s.pairs {
		if !ps.open() {
			continue
		}
		v := ps.positionValue(s.prices[ps.A], s.prices[ps.B])
		allocated += v
		s.sectorAlloc[ps.Sector] += v
	}
	s.availableCash = s.cfg.Capital - allocated

	var out []model.Signal
	for s.availableCash/s.cfg.Capital < s.cfg.EmergencyCashLevel {
		worst := s.worstOpenPair()
		if worst == nil {
			break
		}
		pA, pB := s.prices[worst.A], s.prices[worst.B]
		posValue := worst.positionValue(pA, pB)
		profitPct := 0.0
		if posValue > 0 {
			profitPct = worst.unrealized(pA, pB) / posValue
		}
		logs.Infof("statarb freeing capital: closing %s-%s (return %.2f%%)",
			worst.A, worst.B, profitPct*100)
		out = append(out, s.closePair(worst, pA, pB, worst.prevZ, profitPct)...)
	}
	return out
}

func (s *Strategy) worstOpenPair() *pairState {
	var open []*pairState
	for _, ps := range s.pairs {
		if ps.open() {
			open = append(open, ps)
		}
	}
	if len(open) == 0 {
		return nil
	}
	sort.Slice(open, func(i, j int) bool {
		ri := s.pairReturn(open[i])
		rj := s.pairReturn(open[j])
		if ri != rj {
			return ri < rj
		}
		return open[i].A < open[j].A
	})
	return open[0]
}

func (s *Strategy) pairReturn(ps *pairState) float64 {
	v := ps.positionValue(s.prices[ps.A], s.prices[ps.B])
	if v <= 0 {
		return 0
	}
	return ps.unrealized(s.prices[ps.A], s.prices[ps.B]) / v
}
