package enum

// SignalKind is the intent a strategy expresses for a symbol.
type SignalKind uint8

const (
	SignalNeutral SignalKind = iota
	SignalBuy
	SignalSell
	SignalExit
)

func (k SignalKind) String() string {
	switch k {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	case SignalExit:
		return "EXIT"
	default:
		return "NEUTRAL"
	}
}
