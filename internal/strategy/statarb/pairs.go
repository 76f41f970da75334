package statarb

// Pair names the two legs of a traded spread and the sector it is
// booked under for allocation limits.
type Pair struct {
	A      string
	B      string
	Sector string
}

// DefaultPairs is the curated set of cointegrated pairs traded when
// no explicit pair list is configured.
func DefaultPairs() []Pair {
	return []Pair{
		{A: "JPM", B: "BAC", Sector: "Financial"},
		{A: "C", B: "WFC", Sector: "Financial"},
		{A: "GS", B: "MS", Sector: "Financial"},
		{A: "ITUB", B: "ITSA", Sector: "Financial"},

		{A: "AAPL", B: "MSFT", Sector: "Technology"},
		{A: "GOOGL", B: "FB", Sector: "Technology"},
		{A: "AMD", B: "NVDA", Sector: "Technology"},
		{A: "INTC", B: "TXN", Sector: "Technology"},

		{A: "XOM", B: "CVX", Sector: "Energy"},
		{A: "BP", B: "SHEL", Sector: "Energy"},
		{A: "COP", B: "MRO", Sector: "Energy"},
		{A: "SLB", B: "HAL", Sector: "Energy"},

		{A: "VALE", B: "BHP", Sector: "Materials"},
		{A: "GOLD", B: "NEM", Sector: "Materials"},
		{A: "RIO", B: "SCCO", Sector: "Materials"},

		{A: "PG", B: "CL", Sector: "Consumer"},
		{A: "KO", B: "PEP", Sector: "Consumer"},
		{A: "MO", B: "PM", Sector: "Consumer"},

		{A: "WMT", B: "TGT", Sector: "Retail"},
		{A: "HD", B: "LOW", Sector: "Retail"},

		{A: "JNJ", B: "PFE", Sector: "Healthcare"},
		{A: "MRK", B: "BMY", Sector: "Healthcare"},
		{A: "ABBV", B: "LLY", Sector: "Healthcare"},

		{A: "T", B: "VZ", Sector: "Telecom"},
		{A: "TMUS", B: "VZ", Sector: "Telecom"},

		{A: "F", B: "GM", Sector: "Automotive"},
		{A: "TM", B: "NSANY", Sector: "Automotive"},

		{A: "SPY", B: "IVV", Sector: "ETF"},
		{A: "QQQ", B: "XLK", Sector: "ETF"},
		{A: "XLE", B: "VDE", Sector: "ETF"},
	}
}
