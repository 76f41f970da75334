package obs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.IncTickSubmitted()
	m.IncTickSubmitted()
	m.IncTickDrop()
	m.IncOrderEmitted()
	m.IncOrderDrop()
	m.IncFill()
	m.IncStrategyFault()
	m.IncParseError()

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.TicksSubmitted)
	assert.Equal(t, uint64(1), s.TickDrops)
	assert.Equal(t, uint64(1), s.OrdersEmitted)
	assert.Equal(t, uint64(1), s.OrderDrops)
	assert.Equal(t, uint64(1), s.Fills)
	assert.Equal(t, uint64(1), s.StrategyFaults)
	assert.Equal(t, uint64(1), s.ParseErrors)
	assert.Equal(t, uint64(1), m.TickDrops())
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.IncTickSubmitted()
	m.IncTickDrop()
	m.IncFill()
	m.ObserveTickToFill(time.Millisecond)
	assert.Equal(t, Snapshot{}, m.Snapshot())
	assert.Zero(t, m.TickDrops())
}

func TestLatencyStats(t *testing.T) {
	m := NewMetrics()
	m.ObserveTickToFill(2 * time.Millisecond)
	m.ObserveTickToFill(4 * time.Millisecond)
	m.ObserveTickToFill(6 * time.Millisecond)

	lat := m.Snapshot().TickToFill
	assert.Equal(t, uint64(3), lat.Count)
	assert.Equal(t, 2*time.Millisecond, lat.Min)
	assert.Equal(t, 6*time.Millisecond, lat.Max)
	assert.Equal(t, 4*time.Millisecond, lat.Avg)
}
