package order

import (
	"stocksim-go/cost"
)

// Side 订单方向。
type Side string

const (
	SideBuy        Side = "buy"
	SideSell       Side = "sell"
	SideShortSell  Side = "shortSell"
	SideBuyToCover Side = "buyToCover"
)

// KindName 订单类型名。
type KindName string

const (
	KindMarket       KindName = "market"
	KindLimit        KindName = "limit"
	KindStopBuy      KindName = "stopBuy"
	KindStopBuyLimit KindName = "stopBuyLimit"
)

// Kind 订单类型（封闭和类型），价格字段只存在于需要它的变体上。
type Kind interface {
	Name() KindName
	isKind()
}

// Market 市价单：按执行延迟在若干周期后成交，不会过期。
type Market struct{}

// Limit 限价单。
type Limit struct{ LimitPrice float64 }

// Stop 止损/突破单（stopBuy）：价格穿越 StopPrice 即按市价成交。
type Stop struct{ StopPrice float64 }

// StopLimit 两阶段止损限价单：先触发，再按限价成交。Triggered 一旦为 true 不再回退。
type StopLimit struct {
	StopPrice  float64
	LimitPrice float64
	Triggered  bool
}

func (Market) Name() KindName    { return KindMarket }
func (Limit) Name() KindName     { return KindLimit }
func (Stop) Name() KindName      { return KindStopBuy }
func (StopLimit) Name() KindName { return KindStopBuyLimit }

func (Market) isKind()    {}
func (Limit) isKind()     {}
func (Stop) isKind()      {}
func (StopLimit) isKind() {}

// LoanRequest 回补单附带的贷款申请（执行时按当时价格重新计算金额）。
type LoanRequest struct {
	Amount         float64 `json:"amount"`
	InterestRate   float64 `json:"interestRate"`
	DurationCycles int     `json:"durationCycles"`
}

// Action 订单方向及其专属负载（封闭和类型）。
type Action interface {
	Side() Side
	isAction()
}

// Buy 普通买入。
type Buy struct{}

// Sell 卖出持仓。
type Sell struct{}

// ShortSell 做空，成交时锁定 CollateralLock 现金作为保证金。
type ShortSell struct{ CollateralLock float64 }

// BuyToCover 买入回补空头，现金不足时可用 Loan 补足。
type BuyToCover struct{ Loan *LoanRequest }

func (Buy) Side() Side        { return SideBuy }
func (Sell) Side() Side       { return SideSell }
func (ShortSell) Side() Side  { return SideShortSell }
func (BuyToCover) Side() Side { return SideBuyToCover }

func (Buy) isAction()        {}
func (Sell) isAction()       {}
func (ShortSell) isAction()  {}
func (BuyToCover) isAction() {}

// PendingOrder 一笔待执行订单。
type PendingOrder struct {
	ID                string
	Symbol            string
	Action            Action
	Kind              Kind
	Shares            int
	OrderPrice        float64 // 创建时的参考价
	RemainingCycles   int     // 剩余有效周期（市价单为剩余延迟）
	Fresh             bool    // 创建周期内不执行、不递减
	CreatedCycle      int
	LastObservedPrice float64
	ParentID          string // 部分成交拆出的剩余单指向原单
	PartialFilled     bool   // 该回补链路发生过部分成交
}

// Side 订单方向。
func (o *PendingOrder) Side() Side { return o.Action.Side() }

// IsBuySide buy 与 buyToCover 消耗现金。
func (o *PendingOrder) IsBuySide() bool {
	s := o.Side()
	return s == SideBuy || s == SideBuyToCover
}

// Direction 成交成本方向。
func (o *PendingOrder) Direction() cost.Direction {
	if o.IsBuySide() {
		return cost.Buy
	}
	return cost.Sell
}

// LimitPrice 限价（若有）。
func (o *PendingOrder) LimitPrice() (float64, bool) {
	switch k := o.Kind.(type) {
	case Limit:
		return k.LimitPrice, true
	case StopLimit:
		return k.LimitPrice, true
	}
	return 0, false
}

// StopPrice 触发价（若有）。
func (o *PendingOrder) StopPrice() (float64, bool) {
	switch k := o.Kind.(type) {
	case Stop:
		return k.StopPrice, true
	case StopLimit:
		return k.StopPrice, true
	}
	return 0, false
}

// StopTriggered 仅对 StopLimit 有意义。
func (o *PendingOrder) StopTriggered() bool {
	k, ok := o.Kind.(StopLimit)
	return ok && k.Triggered
}

// Loan 回补单附带的贷款申请，其余方向为 nil。
func (o *PendingOrder) Loan() *LoanRequest {
	if c, ok := o.Action.(BuyToCover); ok {
		return c.Loan
	}
	return nil
}

// CollateralLock 做空需锁定的保证金，其余方向为 0。
func (o *PendingOrder) CollateralLock() float64 {
	if s, ok := o.Action.(ShortSell); ok {
		return s.CollateralLock
	}
	return 0
}

// ReferencePrice 估算占用资金时使用的价格：限价 > 触发价 > 下单参考价。
func (o *PendingOrder) ReferencePrice() float64 {
	if p, ok := o.LimitPrice(); ok {
		return p
	}
	if p, ok := o.StopPrice(); ok {
		return p
	}
	return o.OrderPrice
}

// Clone 深拷贝（贷款申请指针也复制）。
func (o *PendingOrder) Clone() *PendingOrder {
	c := *o
	if cov, ok := o.Action.(BuyToCover); ok && cov.Loan != nil {
		lr := *cov.Loan
		c.Action = BuyToCover{Loan: &lr}
	}
	return &c
}
