package engine

import (
	"fmt"

	"stocksim-go/infrastructure/alert"
	"stocksim-go/inventory"
	"stocksim-go/loan"
	"stocksim-go/order"
)

// State 引擎可恢复状态。恢复后后续行为与保存前一致。
type State struct {
	Cycle            int                    `json:"cycle"`
	Portfolio        inventory.State        `json:"portfolio"`
	Orders           []*order.PendingOrder  `json:"pendingOrders"`
	Loans            loan.State             `json:"loans"`
	OpenAlerts       map[string]alert.Alert `json:"openNotifications,omitempty"`
	History          []TradeRecord          `json:"tradeHistory,omitempty"`
	SuccessfulTrades int                    `json:"successfulTrades"`
	AggressiveTrades int                    `json:"aggressiveTrades"`
}

// Snapshot 导出当前状态。
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Cycle:            e.cycle,
		Portfolio:        e.portfolio.Snapshot(),
		Orders:           e.book.List(),
		Loans:            e.loans.Snapshot(),
		OpenAlerts:       e.alertMgr.OpenAlerts(),
		History:          append([]TradeRecord(nil), e.history...),
		SuccessfulTrades: e.successfulTrades,
		AggressiveTrades: e.aggressiveTrades,
	}
}

// Restore 用快照覆盖引擎、账户、订单簿、贷款台账与未决通知。
func (e *Engine) Restore(st State) error {
	if st.Cycle < 0 {
		return fmt.Errorf("invalid snapshot: negative cycle %d", st.Cycle)
	}
	seen := make(map[string]bool, len(st.Orders))
	for _, o := range st.Orders {
		if o == nil || o.ID == "" {
			return fmt.Errorf("invalid snapshot: order without id")
		}
		if seen[o.ID] {
			return fmt.Errorf("invalid snapshot: duplicate order %s", o.ID)
		}
		seen[o.ID] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycle = st.Cycle
	e.portfolio.Load(st.Portfolio)
	e.book.Replace(st.Orders)
	e.book.ResetCycleMarkers()
	e.loans.Restore(st.Loans)
	e.alertMgr.RestoreOpen(st.OpenAlerts)
	e.history = append([]TradeRecord(nil), st.History...)
	if over := len(e.history) - e.config.HistoryLimit; over > 0 {
		e.history = e.history[over:]
	}
	e.successfulTrades = st.SuccessfulTrades
	e.aggressiveTrades = st.AggressiveTrades
	return nil
}
