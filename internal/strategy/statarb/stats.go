package statarb

import "math"

// rollingWindow is a bounded sample window with incrementally
// maintained sum and sum of squares. Sums are rebuilt from the buffer
// periodically to shed floating-point drift.
type rollingWindow struct {
	buf     []float64
	next    int
	count   int
	sum     float64
	sumSq   float64
	updates int
}

const windowRecomputeEvery = 4096

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{buf: make([]float64, size)}
}

func (w *rollingWindow) push(v float64) {
	if w.count == len(w.buf) {
		old := w.buf[w.next]
		w.sum -= old
		w.sumSq -= old * old
	} else {
		w.count++
	}
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)
	w.sum += v
	w.sumSq += v * v
	w.updates++
	if w.updates%windowRecomputeEvery == 0 {
		w.recompute()
	}
}

func (w *rollingWindow) recompute() {
	w.sum = 0
	w.sumSq = 0
	for i := 0; i < w.count; i++ {
		v := w.at(i)
		w.sum += v
		w.sumSq += v * v
	}
}

// at returns the i-th oldest sample.
func (w *rollingWindow) at(i int) float64 {
	start := w.next - w.count
	if start < 0 {
		start += len(w.buf)
	}
	return w.buf[(start+i)%len(w.buf)]
}

func (w *rollingWindow) full() bool { return w.count == len(w.buf) }

func (w *rollingWindow) mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

func (w *rollingWindow) std() float64 {
	if w.count == 0 {
		return 0
	}
	m := w.mean()
	variance := w.sumSq/float64(w.count) - m*m
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

const minStd = 1e-4

// zScore normalises v against the window. Tiny or absent dispersion
// yields zero rather than a blow-up.
func (w *rollingWindow) zScore(v float64) float64 {
	if w.count < 2 {
		return 0
	}
	std := w.std()
	if std < minStd {
		return 0
	}
	return (v - w.mean()) / std
}

// olsSlope regresses y on x over the paired windows and returns the
// slope cov(x,y)/var(x). ok is false when there are too few samples
// or x has no variance.
func olsSlope(x, y *rollingWindow) (slope float64, ok bool) {
	n := x.count
	if n < 3 || y.count != n {
		return 0, false
	}
	meanX := x.mean()
	meanY := y.mean()
	var cov, varX float64
	for i := 0; i < n; i++ {
		dx := x.at(i) - meanX
		cov += dx * (y.at(i) - meanY)
		varX += dx * dx
	}
	if varX < 1e-12 {
		return 0, false
	}
	return cov / varX, true
}

// annualizedVolatility is the standard deviation of simple returns
// over the price window, scaled by sqrt(252).
func annualizedVolatility(prices *rollingWindow) float64 {
	if prices.count < 2 {
		return 0
	}
	n := prices.count - 1
	var sum float64
	rets := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		r := prices.at(i)/prices.at(i-1) - 1
		rets = append(rets, r)
		sum += r
	}
	mean := sum / float64(n)
	var sq float64
	for _, r := range rets {
		d := r - mean
		sq += d * d
	}
	return math.Sqrt(sq/float64(n)) * math.Sqrt(252)
}

// halfLife derives the mean-reversion half-life from the AR(1)
// coefficient of the spread series: -ln2 / ln(phi). Zero means the
// series shows no usable mean reversion.
func halfLife(spreads *rollingWindow) float64 {
	n := spreads.count - 1
	if n < 3 {
		return 0
	}
	var meanPrev, meanCur float64
	for i := 0; i < n; i++ {
		meanPrev += spreads.at(i)
		meanCur += spreads.at(i + 1)
	}
	meanPrev /= float64(n)
	meanCur /= float64(n)
	var cov, varPrev float64
	for i := 0; i < n; i++ {
		dp := spreads.at(i) - meanPrev
		cov += dp * (spreads.at(i+1) - meanCur)
		varPrev += dp * dp
	}
	if varPrev < 1e-12 {
		return 0
	}
	phi := cov / varPrev
	if phi <= 0 || phi >= 1 {
		return 0
	}
	return -math.Ln2 / math.Log(phi)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
