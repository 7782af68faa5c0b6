// Package loan 维护贷款台账：放款、还款、计息、到期与逾期处理。
package loan

import "stocksim-go/cost"

// Params 贷款常量。
type Params struct {
	MaxConcurrentLoans     int     `yaml:"maxConcurrentLoans" json:"maxConcurrentLoans"`
	MinDurationCycles      int     `yaml:"minDurationCycles" json:"minDurationCycles"`
	MaxDurationCycles      int     `yaml:"maxDurationCycles" json:"maxDurationCycles"`
	OriginationFeePct      float64 `yaml:"originationFeePct" json:"originationFeePct"`
	InterestIntervalCycles int     `yaml:"interestIntervalCycles" json:"interestIntervalCycles"` // 所有贷款每隔 N 周期同时计息
	DueWarningCycles       int     `yaml:"dueWarningCycles" json:"dueWarningCycles"`
	MinCreditScore         float64 `yaml:"minCreditScore" json:"minCreditScore"`
}

// Fee 放款手续费。
func (p Params) Fee(amount float64) float64 {
	return cost.RoundCents(amount * p.OriginationFeePct)
}

// GrossForNet 扣除手续费后到账不少于 net 所需的贷款额（向上取整到分）。
func (p Params) GrossForNet(net float64) float64 {
	if net <= 0 {
		return 0
	}
	if p.OriginationFeePct <= 0 || p.OriginationFeePct >= 1 {
		return cost.CeilCents(net)
	}
	gross := cost.CeilCents(net / (1 - p.OriginationFeePct))
	// 手续费四舍五入可能让到账少一分
	for gross-p.Fee(gross) < net-1e-9 {
		gross = cost.RoundCents(gross + 0.01)
	}
	return gross
}

// Source 贷款来源。
type Source string

const (
	SourceDirect      Source = "direct"       // 玩家直接申请
	SourceMarginCover Source = "margin_cover" // 回补单执行时发放
)

// Loan 一笔未结清的贷款。Rate 在放款时锁定。
type Loan struct {
	ID              string  `json:"id"`
	Number          int     `json:"loanNumber,omitempty"`
	Principal       float64 `json:"principal"`
	Balance         float64 `json:"balance"`
	Rate            float64 `json:"interestRate"`
	OriginationFee  float64 `json:"originationFee"`
	InterestPaid    float64 `json:"totalInterestPaid"`
	DurationCycles  int     `json:"durationCycles"`
	RemainingCycles int     `json:"remainingCycles"`
	Overdue         bool    `json:"isOverdue"`
	OverdueCycles   int     `json:"overdueCycles"`
	WarningShown    bool    `json:"warningShown"`
	CreatedCycle    int     `json:"createdCycle"`
	Source          Source  `json:"source,omitempty"`
	OrderID         string  `json:"orderId,omitempty"`
}
