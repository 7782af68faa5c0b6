// Package credit 提供抵押品估值、信用额度、利率模型与信用档案。
package credit

import (
	"stocksim-go/cost"
	"stocksim-go/market"
)

// CollateralParams 抵押品与信用额度常量。
type CollateralParams struct {
	BaseCollateralRate  float64 `yaml:"baseCollateralRate" json:"baseCollateralRate"`   // 初始资金中计入基础抵押的比例
	LargeCapThreshold   float64 `yaml:"largeCapThreshold" json:"largeCapThreshold"`     // 大盘股市值门槛
	LargeCapCoef        float64 `yaml:"largeCapCoef" json:"largeCapCoef"`               // 大盘股抵押折算系数
	SmallCapCoef        float64 `yaml:"smallCapCoef" json:"smallCapCoef"`               // 其余持仓抵押折算系数
	CreditLineStep      float64 `yaml:"creditLineStep" json:"creditLineStep"`           // 推荐额度取整步长
	MaxCreditMultiplier float64 `yaml:"maxCreditMultiplier" json:"maxCreditMultiplier"` // 最大额度 = 推荐额度 × 倍数
}

// Holding 参与估值的一条持仓。
type Holding struct {
	Symbol string
	Shares int
}

// CollateralBreakdown 抵押品拆分；现金从不计入。
type CollateralBreakdown struct {
	Base     float64 `json:"base"`
	LargeCap float64 `json:"largeCap"`
	SmallCap float64 `json:"smallCap"`
	Total    float64 `json:"total"`
}

// Inputs 估值输入。Cash 只用于展示，不参与抵押计算。
type Inputs struct {
	Cash           float64
	Holdings       []Holding
	Quotes         market.Quotes
	InitialCapital float64
	Debt           float64 // 全部贷款余额之和
	PendingLoans   float64 // 未执行挂单中附带的贷款申请额之和
}

// Evaluation 信用额度估值结果。
type Evaluation struct {
	Collateral  CollateralBreakdown `json:"collateral"`
	Recommended float64             `json:"recommended"`
	Maximum     float64             `json:"maximum"`
	Debt        float64             `json:"debt"`
	Pending     float64             `json:"pending"`
	Utilization float64             `json:"utilization"`
	Available   float64             `json:"available"`
}

// Collateral 计算抵押品拆分。未报价的持仓不计入。
func (p CollateralParams) Collateral(holdings []Holding, quotes market.Quotes, initialCapital float64) CollateralBreakdown {
	var b CollateralBreakdown
	if initialCapital > 0 {
		b.Base = initialCapital * p.BaseCollateralRate
	}
	for _, h := range holdings {
		if h.Shares <= 0 {
			continue
		}
		q, ok := quotes[h.Symbol]
		if !ok || q.Price <= 0 {
			continue
		}
		value := q.Price * float64(h.Shares)
		if q.MarketCap >= p.LargeCapThreshold {
			b.LargeCap += value * p.LargeCapCoef
		} else {
			b.SmallCap += value * p.SmallCapCoef
		}
	}
	b.LargeCap = cost.RoundCents(b.LargeCap)
	b.SmallCap = cost.RoundCents(b.SmallCap)
	b.Total = cost.RoundCents(b.Base + b.LargeCap + b.SmallCap)
	return b
}

// Evaluate 计算推荐额度、最大额度、使用率与可用额度。
func (p CollateralParams) Evaluate(in Inputs) Evaluation {
	col := p.Collateral(in.Holdings, in.Quotes, in.InitialCapital)
	recommended := cost.FloorToStep(col.Total, p.CreditLineStep)
	maximum := recommended * p.MaxCreditMultiplier
	used := in.Debt + in.PendingLoans

	ev := Evaluation{
		Collateral:  col,
		Recommended: recommended,
		Maximum:     maximum,
		Debt:        in.Debt,
		Pending:     in.PendingLoans,
	}
	switch {
	case maximum > 0:
		ev.Utilization = used / maximum
	case used > 0:
		ev.Utilization = 1
	}
	if avail := maximum - used; avail > 0 {
		ev.Available = cost.RoundCents(avail)
	}
	return ev
}
