package statarb

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingWindowStats(t *testing.T) {
	w := newRollingWindow(3)
	w.push(1)
	w.push(2)
	w.push(3)
	require.True(t, w.full())
	assert.InDelta(t, 2.0, w.mean(), 1e-9)
	assert.InDelta(t, math.Sqrt(2.0/3.0), w.std(), 1e-9)

	w.push(4) // evicts 1
	assert.InDelta(t, 3.0, w.mean(), 1e-9)
	assert.InDelta(t, 3.0, w.at(0), 1e-9)
	assert.InDelta(t, 4.0, w.at(2), 1e-9)
}

func TestRollingWindowRecomputeMatchesRunning(t *testing.T) {
	w := newRollingWindow(7)
	for i := 0; i < 1000; i++ {
		w.push(float64(i%13) * 1.7)
	}
	sum, sumSq := w.sum, w.sumSq
	w.recompute()
	assert.InDelta(t, sum, w.sum, 1e-6)
	assert.InDelta(t, sumSq, w.sumSq, 1e-6)
}

func TestZScoreDegenerateWindow(t *testing.T) {
	w := newRollingWindow(5)
	w.push(10)
	assert.Zero(t, w.zScore(10))
	for i := 0; i < 5; i++ {
		w.push(10)
	}
	assert.Zero(t, w.zScore(10), "flat window must not blow up")
}

func TestOLSSlope(t *testing.T) {
	x := newRollingWindow(5)
	y := newRollingWindow(5)
	for i := 0; i < 5; i++ {
		v := float64(i)
		x.push(v)
		y.push(2*v + 1)
	}
	slope, ok := olsSlope(x, y)
	require.True(t, ok)
	assert.InDelta(t, 2.0, slope, 1e-9)

	flat := newRollingWindow(5)
	for i := 0; i < 5; i++ {
		flat.push(1)
	}
	_, ok = olsSlope(flat, y)
	assert.False(t, ok, "zero-variance regressor has no slope")
}

func TestHalfLife(t *testing.T) {
	// AR(1) with phi = 0.5 decays with half-life exactly 1.
	w := newRollingWindow(25)
	v := 64.0
	for i := 0; i < 25; i++ {
		w.push(v)
		v *= 0.5
	}
	assert.InDelta(t, 1.0, halfLife(w), 1e-6)

	alternating := newRollingWindow(10)
	for i := 0; i < 10; i++ {
		alternating.push(float64(1 - 2*(i%2)))
	}
	assert.Zero(t, halfLife(alternating), "oscillation has no AR(1) half-life")
}

func TestAnnualizedVolatility(t *testing.T) {
	w := newRollingWindow(20)
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			w.push(100)
		} else {
			w.push(101)
		}
	}
	vol := annualizedVolatility(w)
	assert.Greater(t, vol, 0.05)

	flat := newRollingWindow(20)
	for i := 0; i < 20; i++ {
		flat.push(100)
	}
	assert.Zero(t, annualizedVolatility(flat))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.5, clamp(0.2, 0.5, 2.0))
	assert.Equal(t, 2.0, clamp(9.0, 0.5, 2.0))
	assert.Equal(t, 1.3, clamp(1.3, 0.5, 2.0))
}
