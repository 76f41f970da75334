package enum

// OrderSide is the direction of an order.
type OrderSide uint8

const (
	OrderSideBuy OrderSide = iota + 1
	OrderSideSell
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderType is the execution style of an order. The pipeline only
// emits market orders; limit exists for completeness of the contract.
type OrderType uint8

const (
	OrderTypeMarket OrderType = iota + 1
	OrderTypeLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	default:
		return "UNKNOWN"
	}
}
