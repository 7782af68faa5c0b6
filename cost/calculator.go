// Package cost 计算模拟成交的有效价格：价差、滑点与手续费。
package cost

import "math"

// Direction 成交方向：买入类（buy / buyToCover）或卖出类（sell / shortSell）。
type Direction int

const (
	Buy Direction = iota
	Sell
)

func (d Direction) String() string {
	if d == Sell {
		return "SELL"
	}
	return "BUY"
}

// Params 游戏模式的成交成本参数，会话期间不可变。
type Params struct {
	SpreadPct        float64 `yaml:"spreadPct" json:"spreadPct"`               // 买卖价差（完整价差，单边承担一半）
	SlippageCoef     float64 `yaml:"slippageCoef" json:"slippageCoef"`         // 每股滑点系数，随数量线性放大
	FeeFixed         float64 `yaml:"feeFixed" json:"feeFixed"`                 // 每笔固定手续费
	FeePct           float64 `yaml:"feePct" json:"feePct"`                     // 按成交额收取的比例手续费
	OrderDelayCycles int     `yaml:"orderDelayCycles" json:"orderDelayCycles"` // 市价单执行延迟（周期）
}

// Breakdown 一次成交的成本拆分。
type Breakdown struct {
	EffectivePrice float64 `json:"effectivePrice"`
	SpreadCost     float64 `json:"spreadCost"`
	SlippageCost   float64 `json:"slippageCost"`
	Subtotal       float64 `json:"subtotal"`
	Fee            float64 `json:"fee"`
	Total          float64 `json:"total"`
}

// Calculate 根据当前价格与数量计算有效成交价。
// 买入时价格上调（价差 + 随数量放大的滑点），卖出时下调；
// 买入 Total 为需支付金额，卖出 Total 为到账金额。
func Calculate(price float64, qty int, dir Direction, p Params) Breakdown {
	if price <= 0 || qty <= 0 {
		return Breakdown{}
	}
	q := float64(qty)
	halfSpread := p.SpreadPct / 2
	slip := p.SlippageCoef * q

	var unit float64
	if dir == Buy {
		unit = price * (1 + halfSpread + slip)
	} else {
		adj := math.Min(halfSpread+slip, 1)
		unit = price * (1 - adj)
	}

	subtotal := unit * q
	fee := p.FeeFixed + p.FeePct*subtotal
	b := Breakdown{
		EffectivePrice: unit,
		SpreadCost:     RoundCents(price * q * halfSpread),
		SlippageCost:   RoundCents(price * q * slip),
		Subtotal:       RoundCents(subtotal),
		Fee:            RoundCents(fee),
	}
	if dir == Buy {
		b.Total = RoundCents(subtotal + fee)
	} else {
		b.Total = math.Max(0, RoundCents(subtotal-fee))
	}
	return b
}

// MaxAffordableShares 二分查找 budget 可负担的最大买入股数。
// 依赖 Calculate 对数量单调递增；limit>0 时结果不超过 limit。
func MaxAffordableShares(budget, price float64, p Params, limit int) int {
	if budget <= 0 || price <= 0 {
		return 0
	}
	hi := limit
	if hi <= 0 {
		hi = int(budget/price) + 1
	}
	lo := 0
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if Calculate(price, mid, Buy, p).Total <= budget+1e-9 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
