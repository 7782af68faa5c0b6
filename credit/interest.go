package credit

import "math"

// UtilizationTier 使用率阶梯：使用率 ≥ Threshold 时加收 Surcharge，仅取最高档。
type UtilizationTier struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Surcharge float64 `yaml:"surcharge" json:"surcharge"`
}

// InterestParams 利率模型常量。
type InterestParams struct {
	BaseRate                float64           `yaml:"baseRate" json:"baseRate"`
	MinRate                 float64           `yaml:"minRate" json:"minRate"`
	MaxRiskAdjustment       float64           `yaml:"maxRiskAdjustment" json:"maxRiskAdjustment"`
	MinTradesForFullEffect  int               `yaml:"minTradesForFullEffect" json:"minTradesForFullEffect"`
	LossThreshold           float64           `yaml:"lossThreshold" json:"lossThreshold"` // 已实现盈亏低于该值才加罚
	LossPenaltyPer1000      float64           `yaml:"lossPenaltyPer1000" json:"lossPenaltyPer1000"`
	MaxLossPenalty          float64           `yaml:"maxLossPenalty" json:"maxLossPenalty"`
	UtilizationTiers        []UtilizationTier `yaml:"utilizationTiers" json:"utilizationTiers"`
	ExtraLoanPenalty        float64           `yaml:"extraLoanPenalty" json:"extraLoanPenalty"`
	DurationStepCycles      int               `yaml:"durationStepCycles" json:"durationStepCycles"`
	DurationDiscountPerStep float64           `yaml:"durationDiscountPerStep" json:"durationDiscountPerStep"`
	MaxDurationDiscount     float64           `yaml:"maxDurationDiscount" json:"maxDurationDiscount"`
}

// RiskProfile 交易者风险画像。Score ∈ [-1,1]，负值为保守，正值为激进。
type RiskProfile struct {
	Score  float64 `json:"score"`
	Trades int     `json:"trades"`
}

// DeriveRiskProfile 由成功成交数与其中激进成交（做空、借贷回补）数推导风险画像。
func DeriveRiskProfile(trades, aggressive int) RiskProfile {
	if trades <= 0 {
		return RiskProfile{}
	}
	if aggressive > trades {
		aggressive = trades
	}
	share := float64(aggressive) / float64(trades)
	return RiskProfile{Score: 2*share - 1, Trades: trades}
}

// RateInputs 利率计算输入。
type RateInputs struct {
	Risk            RiskProfile
	RealizedPnL     float64
	Utilization     float64 // (负债 + 待执行贷款 + 本笔) / 最大额度
	ConcurrentLoans int     // 含本笔在内的并存贷款数
	DurationCycles  int
	MinDuration     int
}

// RateQuote 利率各组成部分，Effective 为最终利率。
type RateQuote struct {
	Base                 float64 `json:"base"`
	RiskAdjustment       float64 `json:"riskAdjustment"`
	ProfitAdjustment     float64 `json:"profitAdjustment"`
	UtilizationSurcharge float64 `json:"utilizationSurcharge"`
	LoanCountPenalty     float64 `json:"loanCountPenalty"`
	DurationDiscount     float64 `json:"durationDiscount"`
	Effective            float64 `json:"effective"`
}

// Quote 组合计算有效利率，下限为 MinRate。
func (p InterestParams) Quote(in RateInputs) RateQuote {
	q := RateQuote{
		Base:                 p.BaseRate,
		RiskAdjustment:       p.riskAdjustment(in.Risk),
		ProfitAdjustment:     p.profitAdjustment(in.RealizedPnL),
		UtilizationSurcharge: p.utilizationSurcharge(in.Utilization),
		LoanCountPenalty:     p.loanCountPenalty(in.ConcurrentLoans),
		DurationDiscount:     p.durationDiscount(in.DurationCycles, in.MinDuration),
	}
	sum := q.Base + q.RiskAdjustment + q.ProfitAdjustment + q.UtilizationSurcharge + q.LoanCountPenalty + q.DurationDiscount
	q.Effective = math.Max(p.MinRate, sum)
	return q
}

// Rate 只返回有效利率。
func (p InterestParams) Rate(in RateInputs) float64 {
	return p.Quote(in).Effective
}

func (p InterestParams) riskAdjustment(r RiskProfile) float64 {
	if r.Trades <= 0 {
		return 0
	}
	weight := 1.0
	if p.MinTradesForFullEffect > 0 {
		weight = math.Min(1, float64(r.Trades)/float64(p.MinTradesForFullEffect))
	}
	score := math.Max(-1, math.Min(1, r.Score))
	return score * p.MaxRiskAdjustment * weight
}

func (p InterestParams) profitAdjustment(pnl float64) float64 {
	if pnl >= p.LossThreshold {
		return 0
	}
	excess := p.LossThreshold - pnl
	return math.Min(p.MaxLossPenalty, excess/1000*p.LossPenaltyPer1000)
}

func (p InterestParams) utilizationSurcharge(u float64) float64 {
	surcharge := 0.0
	best := math.Inf(-1)
	for _, t := range p.UtilizationTiers {
		if u >= t.Threshold && t.Threshold > best {
			best = t.Threshold
			surcharge = t.Surcharge
		}
	}
	return surcharge
}

func (p InterestParams) loanCountPenalty(n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(n-1) * p.ExtraLoanPenalty
}

func (p InterestParams) durationDiscount(duration, minDuration int) float64 {
	if p.DurationStepCycles <= 0 || duration <= minDuration {
		return 0
	}
	steps := (duration - minDuration) / p.DurationStepCycles
	return -math.Min(p.MaxDurationDiscount, float64(steps)*p.DurationDiscountPerStep)
}
