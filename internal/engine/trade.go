package engine

import (
	"context"
	"time"

	"stocksim-go/order"
)

// TradeStatus 成交记录状态
type TradeStatus string

const (
	TradeSuccess TradeStatus = "success"
	TradeFailed  TradeStatus = "failed"
)

// FailReason 失败原因
type FailReason string

const (
	ReasonInsufficientFunds  FailReason = "insufficient_funds"
	ReasonInsufficientShares FailReason = "insufficient_shares"
	ReasonExpired            FailReason = "expired"
)

// TradeRecord 一条成交（或失败）记录。
type TradeRecord struct {
	ID             string         `json:"id"`
	OrderID        string         `json:"orderId"`
	ParentID       string         `json:"parentId,omitempty"`
	Cycle          int            `json:"cycle"`
	Symbol         string         `json:"symbol"`
	Side           order.Side     `json:"side"`
	Kind           order.KindName `json:"kind"`
	Shares         int            `json:"shares"`
	Price          float64        `json:"price"` // 成交时市价
	EffectivePrice float64        `json:"effectivePrice,omitempty"`
	Total          float64        `json:"total,omitempty"`
	Fee            float64        `json:"fee,omitempty"`
	PnL            float64        `json:"pnl,omitempty"`
	LoanID         string         `json:"loanId,omitempty"`
	Partial        bool           `json:"partial,omitempty"`
	Status         TradeStatus    `json:"status"`
	Reason         FailReason     `json:"reason,omitempty"`
	Message        string         `json:"message,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// TradeRecorder 成交历史持久化，nil 表示不落盘。
type TradeRecorder interface {
	Record(ctx context.Context, rec TradeRecord) error
	Close() error
}
