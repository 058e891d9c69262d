package models

// Quote is the canonical per-symbol market data after normalization.
// Price and ChangePercent are nil when the source did not provide them.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         *float64  `json:"price,omitempty"`
	ChangePercent *float64  `json:"change_percent,omitempty"`
	Series        []float64 `json:"series,omitempty"`
}

// QuoteMap is keyed by uppercase symbol.
type QuoteMap map[string]Quote

// Price returns the resolved price for symbol, if any.
func (m QuoteMap) Price(symbol string) (float64, bool) {
	q, ok := m[symbol]
	if !ok || q.Price == nil {
		return 0, false
	}
	return *q.Price, true
}

// ChangePercent returns the resolved percent change for symbol, if any.
func (m QuoteMap) ChangePercent(symbol string) (float64, bool) {
	q, ok := m[symbol]
	if !ok || q.ChangePercent == nil {
		return 0, false
	}
	return *q.ChangePercent, true
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
