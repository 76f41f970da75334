package model

// Fill is the portfolio-side application of an order. RealizedPnL is
// only meaningful on sells; HasPnL distinguishes a zero profit from a
// buy.
type Fill struct {
	Order
	RealizedPnL float64
	HasPnL      bool
	TimestampUs int64
}
