// Package obs collects lightweight runtime counters for the pipeline.
package obs

import (
	"sync/atomic"
	"time"
)

// Metrics counts pipeline events. All methods are safe on a nil
// receiver so call sites never need a guard.
type Metrics struct {
	ticksSubmitted uint64
	tickDrops      uint64
	ordersEmitted  uint64
	orderDrops     uint64
	fills          uint64
	strategyFaults uint64
	parseErrors    uint64

	tickToFill LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	TicksSubmitted uint64
	TickDrops      uint64
	OrdersEmitted  uint64
	OrderDrops     uint64
	Fills          uint64
	StrategyFaults uint64
	ParseErrors    uint64
	TickToFill     LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncTickSubmitted records an accepted tick.
func (m *Metrics) IncTickSubmitted() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ticksSubmitted, 1)
}

// IncTickDrop records a tick dropped on a full ring.
func (m *Metrics) IncTickDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.tickDrops, 1)
}

// TickDrops returns the current tick drop count.
func (m *Metrics) TickDrops() uint64 {
	if m == nil {
		return 0
	}
	return atomic.LoadUint64(&m.tickDrops)
}

// IncOrderEmitted records an order pushed to the execution stage.
func (m *Metrics) IncOrderEmitted() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersEmitted, 1)
}

// IncOrderDrop records an order dropped on a full ring or a failed
// resource check.
func (m *Metrics) IncOrderDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.orderDrops, 1)
}

// IncFill records an applied fill.
func (m *Metrics) IncFill() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fills, 1)
}

// IncStrategyFault records a panic caught at the strategy boundary.
func (m *Metrics) IncStrategyFault() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.strategyFaults, 1)
}

// IncParseError records a skipped unparseable message or row.
func (m *Metrics) IncParseError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.parseErrors, 1)
}

// ObserveTickToFill measures latency from tick ingestion to fill.
func (m *Metrics) ObserveTickToFill(d time.Duration) {
	if m == nil {
		return
	}
	m.tickToFill.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		TicksSubmitted: atomic.LoadUint64(&m.ticksSubmitted),
		TickDrops:      atomic.LoadUint64(&m.tickDrops),
		OrdersEmitted:  atomic.LoadUint64(&m.ordersEmitted),
		OrderDrops:     atomic.LoadUint64(&m.orderDrops),
		Fills:          atomic.LoadUint64(&m.fills),
		StrategyFaults: atomic.LoadUint64(&m.strategyFaults),
		ParseErrors:    atomic.LoadUint64(&m.parseErrors),
		TickToFill:     m.tickToFill.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
