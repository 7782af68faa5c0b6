// Package inventory 维护模拟账户：现金、多头持仓与空头仓位。
package inventory

import (
	"math"

	"stocksim-go/cost"
)

// Tracker 维护单个标的的多头持仓（加权平均成本）。
type Tracker struct {
	shares   int
	cost     float64
	realized float64
}

// Add 买入 qty 股，unitCost 为含成本的每股价格。
func (t *Tracker) Add(qty int, unitCost float64) {
	if qty <= 0 {
		return
	}
	totalValue := t.cost*float64(t.shares) + unitCost*float64(qty)
	t.shares += qty
	t.cost = totalValue / float64(t.shares)
}

// Remove 卖出 qty 股，返回本次实现盈亏。
func (t *Tracker) Remove(qty int, unitProceeds float64) float64 {
	if qty <= 0 {
		return 0
	}
	if qty > t.shares {
		qty = t.shares
	}
	pnl := (unitProceeds - t.cost) * float64(qty)
	t.shares -= qty
	if t.shares == 0 {
		t.cost = 0
	}
	t.realized += pnl
	return pnl
}

// Split 拆股：股数 × ratio（四舍五入），成本 ÷ ratio。
func (t *Tracker) Split(ratio float64) {
	if ratio <= 0 {
		return
	}
	t.shares = int(math.Round(float64(t.shares) * ratio))
	t.cost /= ratio
}

func (t *Tracker) Shares() int { return t.shares }

func (t *Tracker) AvgCost() float64 { return t.cost }

// Realized 该标的累计已实现盈亏。
func (t *Tracker) Realized() float64 { return t.realized }

// Valuation 基于当前价计算市值与未实现盈亏。
func (t *Tracker) Valuation(price float64) (value float64, pnl float64) {
	value = price * float64(t.shares)
	pnl = (price - t.cost) * float64(t.shares)
	return
}

// Short 空头仓位：EntryPrice 为加权平均开仓到账价，Collateral 为锁定的保证金。
type Short struct {
	Shares     int     `json:"shares"`
	EntryPrice float64 `json:"entryPrice"`
	Collateral float64 `json:"collateral"`
}

func (s *Short) add(qty int, unitProceeds, collateral float64) {
	total := s.EntryPrice*float64(s.Shares) + unitProceeds*float64(qty)
	s.Shares += qty
	s.EntryPrice = total / float64(s.Shares)
	s.Collateral += collateral
}

// release 按回补比例计算释放的保证金。
func (s *Short) release(qty int) float64 {
	if s.Shares == 0 {
		return 0
	}
	if qty >= s.Shares {
		return s.Collateral
	}
	return cost.RoundCents(s.Collateral * float64(qty) / float64(s.Shares))
}
