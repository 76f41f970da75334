// Package model holds the value types that flow through the pipeline.
package model

import "winter/internal/model/enum"

// Tick is one executed trade print. Immutable after creation; it is
// passed by value through the rings.
type Tick struct {
	Symbol      string
	Price       float64
	Volume      int64
	TimestampUs int64
}

// Valid reports whether the tick is well formed.
func (t Tick) Valid() bool {
	return t.Symbol != "" && t.Price > 0 && t.Volume >= 0
}

// Signal is a strategy's intent for a symbol at a price. It has no
// identity; the engine translates it into an order or drops it.
type Signal struct {
	Symbol   string
	Kind     enum.SignalKind
	Strength float64
	Price    float64
	// ZScore carries the signal's normalised distance from the mean so
	// downstream observers can annotate fills without shared state.
	ZScore float64
}

// Order is a portfolio-sized, side-resolved instruction derived from
// a signal.
type Order struct {
	Symbol   string
	Side     enum.OrderSide
	Type     enum.OrderType
	Quantity int64
	Price    float64
	ZScore   float64
	// TimestampUs is the origin tick's timestamp, carried through so
	// the execution stage can measure tick-to-fill latency.
	TimestampUs int64
}

// TotalValue returns price times quantity.
func (o Order) TotalValue() float64 {
	return o.Price * float64(o.Quantity)
}
