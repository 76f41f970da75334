// Package meanrev implements a per-symbol rolling z-score
// mean-reversion strategy.
package meanrev

import (
	"math"
	"strconv"

	"github.com/yanun0323/errors"

	"winter/internal/model"
	"winter/internal/model/enum"
)

const (
	// Name is the registry key for this strategy.
	Name = "MeanReversion"

	defaultWindow = 20
	defaultEntry  = 2.0
	defaultExit   = 0.5

	// Running sums drift under long streams; rebuilding them from the
	// window every so often keeps them honest.
	recomputeEvery = 4096

	minStd = 1e-8
)

type window struct {
	prices  []float64
	next    int
	full    bool
	sum     float64
	sumSq   float64
	updates int
}

// Strategy holds one rolling window per symbol. Not safe for
// concurrent use; the strategy stage is its only caller.
type Strategy struct {
	size    int
	entry   float64
	exit    float64
	enabled bool
	windows map[string]*window
}

// New creates the strategy with default parameters.
func New() *Strategy {
	return &Strategy{
		size:    defaultWindow,
		entry:   defaultEntry,
		exit:    defaultExit,
		enabled: true,
		windows: make(map[string]*window),
	}
}

func (s *Strategy) Name() string  { return Name }
func (s *Strategy) Enabled() bool { return s.enabled }

func (s *Strategy) Initialize() error {
	if s.size < 2 {
		return errors.Errorf("window must be >= 2, got %d", s.size)
	}
	if s.entry <= 0 || s.exit <= 0 || s.exit >= s.entry {
		return errors.Errorf("thresholds must satisfy 0 < exit < entry, got entry %.2f exit %.2f", s.entry, s.exit)
	}
	return nil
}

func (s *Strategy) Shutdown() {
	s.windows = make(map[string]*window)
}

// Configure accepts window, entry_threshold, and exit_threshold.
func (s *Strategy) Configure(params map[string]string) error {
	for key, raw := range params {
		switch key {
		case "window":
			n, err := strconv.Atoi(raw)
			if err != nil {
				return errors.Wrap(err, "parse window").With("value", raw)
			}
			s.size = n
		case "entry_threshold":
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errors.Wrap(err, "parse entry_threshold").With("value", raw)
			}
			s.entry = v
		case "exit_threshold":
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errors.Wrap(err, "parse exit_threshold").With("value", raw)
			}
			s.exit = v
		}
	}
	return nil
}

// ProcessTick pushes the price into the symbol's window and emits at
// most one signal once the window is full.
func (s *Strategy) ProcessTick(tick model.Tick) []model.Signal {
	if tick.Price <= 0 {
		return nil
	}
	w := s.windows[tick.Symbol]
	if w == nil {
		w = &window{prices: make([]float64, s.size)}
		s.windows[tick.Symbol] = w
	}
	w.push(tick.Price)
	if !w.full {
		return nil
	}

	n := float64(s.size)
	mean := w.sum / n
	variance := w.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)
	if std < minStd {
		return nil
	}
	z := (tick.Price - mean) / std

	switch {
	case z > s.entry:
		return []model.Signal{{
			Symbol:   tick.Symbol,
			Kind:     enum.SignalSell,
			Strength: clamp01((z - s.entry) / 2),
			Price:    tick.Price,
			ZScore:   z,
		}}
	case z < -s.entry:
		return []model.Signal{{
			Symbol:   tick.Symbol,
			Kind:     enum.SignalBuy,
			Strength: clamp01((-z - s.entry) / 2),
			Price:    tick.Price,
			ZScore:   z,
		}}
	case math.Abs(z) < s.exit:
		return []model.Signal{{
			Symbol:   tick.Symbol,
			Kind:     enum.SignalExit,
			Strength: clamp01(1 - math.Abs(z)/s.exit),
			Price:    tick.Price,
			ZScore:   z,
		}}
	default:
		return nil
	}
}

func (w *window) push(price float64) {
	old := w.prices[w.next]
	w.prices[w.next] = price
	w.next++
	if w.next == len(w.prices) {
		w.next = 0
		w.full = true
	}
	if w.full && w.updates >= len(w.prices) {
		w.sum -= old
		w.sumSq -= old * old
	}
	w.sum += price
	w.sumSq += price * price
	w.updates++
	if w.updates%recomputeEvery == 0 {
		w.recompute()
	}
}

func (w *window) recompute() {
	w.sum = 0
	w.sumSq = 0
	for _, p := range w.prices {
		w.sum += p
		w.sumSq += p * p
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
