package market

// Quote 某个标的在当前周期的成交参考价与市值（由外部价格模拟提供）。
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"marketCap"`
}

// Quotes 当前周期全部报价，按 symbol 索引。
type Quotes map[string]Quote

// Price 返回 symbol 的当前价格；标的不存在或价格非正时 ok=false。
func (q Quotes) Price(symbol string) (float64, bool) {
	quote, ok := q[symbol]
	if !ok || quote.Price <= 0 {
		return 0, false
	}
	return quote.Price, true
}

// MarketCap 返回 symbol 的市值，未知时为 0。
func (q Quotes) MarketCap(symbol string) float64 {
	return q[symbol].MarketCap
}

// Prices 只取价格视图。
func (q Quotes) Prices() map[string]float64 {
	out := make(map[string]float64, len(q))
	for sym, quote := range q {
		out[sym] = quote.Price
	}
	return out
}

// Clone 返回独立副本；nil 返回空 map。
func (q Quotes) Clone() Quotes {
	out := make(Quotes, len(q))
	for sym, quote := range q {
		out[sym] = quote
	}
	return out
}
