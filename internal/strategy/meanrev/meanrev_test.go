package meanrev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winter/internal/model"
	"winter/internal/model/enum"
)

func tick(symbol string, price float64) model.Tick {
	return model.Tick{Symbol: symbol, Price: price, Volume: 100}
}

func TestFlatWindowIsSilent(t *testing.T) {
	s := New()
	require.NoError(t, s.Initialize())

	for i := 0; i < 25; i++ {
		assert.Empty(t, s.ProcessTick(tick("AAPL", 100)))
	}
}

func TestSpikeTriggersSell(t *testing.T) {
	s := New()
	require.NoError(t, s.Initialize())

	for i := 0; i < 20; i++ {
		require.Empty(t, s.ProcessTick(tick("AAPL", 100)))
	}
	out := s.ProcessTick(tick("AAPL", 110))
	require.Len(t, out, 1)

	sig := out[0]
	assert.Equal(t, enum.SignalSell, sig.Kind)
	assert.Equal(t, 110.0, sig.Price)
	// nineteen 100s and one 110: mean 100.5, std ~2.179, z ~4.36
	assert.InDelta(t, 4.359, sig.ZScore, 0.01)
	assert.Equal(t, 1.0, sig.Strength)
}

func TestDropTriggersBuy(t *testing.T) {
	s := New()
	require.NoError(t, s.Initialize())

	for i := 0; i < 20; i++ {
		s.ProcessTick(tick("AAPL", 100))
	}
	out := s.ProcessTick(tick("AAPL", 90))
	require.Len(t, out, 1)
	assert.Equal(t, enum.SignalBuy, out[0].Kind)
	assert.InDelta(t, -4.359, out[0].ZScore, 0.01)
}

func TestReversionEmitsExit(t *testing.T) {
	s := New()
	require.NoError(t, s.Initialize())

	// Alternate prices so the window has spread, then feed a price
	// near the mean.
	for i := 0; i < 20; i++ {
		p := 95.0
		if i%2 == 1 {
			p = 105.0
		}
		s.ProcessTick(tick("AAPL", p))
	}
	out := s.ProcessTick(tick("AAPL", 100.2))
	require.Len(t, out, 1)
	assert.Equal(t, enum.SignalExit, out[0].Kind)
	assert.Greater(t, out[0].Strength, 0.0)
}

func TestThresholdDoesNotTriggerOnTie(t *testing.T) {
	s := New()
	s.entry = 2.0
	require.NoError(t, s.Initialize())

	for i := 0; i < 20; i++ {
		p := 95.0
		if i%2 == 1 {
			p = 105.0
		}
		s.ProcessTick(tick("AAPL", p))
	}
	// A price in the dead band between exit and entry stays silent.
	out := s.ProcessTick(tick("AAPL", 105.0))
	assert.Empty(t, out)
}

func TestPerSymbolIsolation(t *testing.T) {
	s := New()
	require.NoError(t, s.Initialize())

	for i := 0; i < 20; i++ {
		s.ProcessTick(tick("AAPL", 100))
		s.ProcessTick(tick("MSFT", 50))
	}
	out := s.ProcessTick(tick("AAPL", 110))
	require.Len(t, out, 1)
	assert.Equal(t, "AAPL", out[0].Symbol)
}

func TestDeterminism(t *testing.T) {
	prices := []float64{
		100, 101, 99, 102, 98, 100, 103, 97, 101, 100,
		99, 102, 100, 98, 101, 103, 99, 100, 102, 98,
		110, 95, 100, 101, 99, 120, 80, 100,
	}

	run := func() []model.Signal {
		s := New()
		require.NoError(t, s.Initialize())
		var out []model.Signal
		for _, p := range prices {
			out = append(out, s.ProcessTick(tick("AAPL", p))...)
		}
		return out
	}

	first := run()
	second := run()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestConfigure(t *testing.T) {
	s := New()
	require.NoError(t, s.Configure(map[string]string{
		"window":          "10",
		"entry_threshold": "1.5",
		"exit_threshold":  "0.3",
	}))
	require.NoError(t, s.Initialize())
	assert.Equal(t, 10, s.size)
	assert.Equal(t, 1.5, s.entry)
	assert.Equal(t, 0.3, s.exit)

	assert.Error(t, s.Configure(map[string]string{"window": "abc"}))
}

func TestInitializeRejectsBadThresholds(t *testing.T) {
	s := New()
	s.exit = 3.0
	assert.Error(t, s.Initialize())

	s = New()
	s.size = 1
	assert.Error(t, s.Initialize())
}
