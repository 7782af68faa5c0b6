package inventory

import (
	"stocksim-go/cost"
	"stocksim-go/market"
)

// Valuation 账户按当前报价的估值。
type Valuation struct {
	Cash             float64 `json:"cash"`
	LongValue        float64 `json:"longValue"`
	ShortLiability   float64 `json:"shortLiability"`
	LockedCollateral float64 `json:"lockedCollateral"`
	Unrealized       float64 `json:"unrealized"`
	Realized         float64 `json:"realized"`
	Equity           float64 `json:"equity"`
}

// Valuation 基于当前报价计算市值与未实现盈亏。无报价的标的按成本价估值。
func (p *Portfolio) Valuation(quotes market.Quotes) Valuation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v := Valuation{Cash: p.cash, Realized: p.realized}
	for sym, tr := range p.holdings {
		price, ok := quotes.Price(sym)
		if !ok {
			price = tr.AvgCost()
		}
		value, pnl := tr.Valuation(price)
		v.LongValue += value
		v.Unrealized += pnl
	}
	for sym, s := range p.shorts {
		price, ok := quotes.Price(sym)
		if !ok {
			price = s.EntryPrice
		}
		liability := price * float64(s.Shares)
		v.ShortLiability += liability
		v.LockedCollateral += s.Collateral
		v.Unrealized += s.EntryPrice*float64(s.Shares) - liability
	}
	v.LongValue = cost.RoundCents(v.LongValue)
	v.ShortLiability = cost.RoundCents(v.ShortLiability)
	v.LockedCollateral = cost.RoundCents(v.LockedCollateral)
	v.Unrealized = cost.RoundCents(v.Unrealized)
	v.Equity = cost.RoundCents(v.Cash + v.LongValue + v.LockedCollateral - v.ShortLiability)
	return v
}
