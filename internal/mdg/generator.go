// Package mdg generates synthetic random-walk market data for the
// feed simulator.
package mdg

import (
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"winter/internal/model"
)

// defaultStep is the max relative price move per tick.
const defaultStep = 0.002

// Generator walks one price per symbol and emits ticks round-robin.
// Not safe for concurrent use; the simulator drives it from a single
// goroutine.
type Generator struct {
	rng      *rand.Rand
	symbols  []string
	prices   map[string]float64
	step     float64
	baseSize int64
	index    int
}

// NewGenerator seeds a walk for every symbol. Prices start staggered
// around basePrice so symbols do not move in lockstep.
func NewGenerator(symbols []string, basePrice float64, baseSize int64, seed int64) (*Generator, error) {
	if len(symbols) == 0 {
		return nil, errors.New("no symbols to generate")
	}
	if basePrice <= 0 {
		return nil, errors.Errorf("base price must be positive, got %.2f", basePrice)
	}
	if baseSize <= 0 {
		baseSize = 1
	}
	prices := make(map[string]float64, len(symbols))
	for i, symbol := range symbols {
		prices[symbol] = basePrice * (1 + 0.01*float64(i))
	}
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		symbols:  symbols,
		prices:   prices,
		step:     defaultStep,
		baseSize: baseSize,
	}, nil
}

// Next advances one symbol's walk and returns its tick.
func (g *Generator) Next(now time.Time) model.Tick {
	symbol := g.symbols[g.index]
	g.index = (g.index + 1) % len(g.symbols)

	price := g.prices[symbol]
	price += (g.rng.Float64()*2 - 1) * g.step * price
	if price < 1 {
		price = 1
	}
	g.prices[symbol] = price

	return model.Tick{
		Symbol:      symbol,
		Price:       price,
		Volume:      g.baseSize + g.rng.Int63n(g.baseSize*9+1),
		TimestampUs: now.UnixMicro(),
	}
}
