package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"stocksim-go/cost"
	"stocksim-go/infrastructure/alert"
	"stocksim-go/loan"
	"stocksim-go/market"
	"stocksim-go/order"
)

// CycleReport 单周期执行结果（订单 ID 列表按处理顺序）。
type CycleReport struct {
	Cycle     int
	Executed  []string
	Partial   []string
	Triggered []string
	Failed    []string
	Expired   []string
	Skipped   []string
	Loans     []string
	Trades    []TradeRecord
	Duration  time.Duration
}

// ledger 本批次的现金与持股累计视图，只在一次 RunCycle 内有效。
type ledger struct {
	cash  float64
	long  map[string]int
	short map[string]int
}

type cycleRun struct {
	ctx     context.Context
	quotes  market.Quotes
	ledger  *ledger
	skipped map[string]bool
	split   map[string]bool // 本周期拆出的剩余单，不参与本周期的有效期递减
	report  CycleReport
	err     error
}

func (e *Engine) seedLedger() *ledger {
	l := &ledger{
		cash:  e.portfolio.Cash(),
		long:  make(map[string]int),
		short: make(map[string]int),
	}
	for _, h := range e.portfolio.Holdings() {
		l.long[h.Symbol] = h.Shares
	}
	for _, s := range e.portfolio.Shorts() {
		l.short[s.Symbol] = s.Shares
	}
	return l
}

// RunCycle 按插入顺序处理全部挂单，然后递减有效期并移除过期订单。
// 订单级失败不会返回错误；只有成交记录写入失败才返回（本周期仍完整执行）。
func (e *Engine) RunCycle(ctx context.Context, quotes market.Quotes) (CycleReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	e.quotes = quotes.Clone()
	run := &cycleRun{
		ctx:     ctx,
		quotes:  e.quotes,
		ledger:  e.seedLedger(),
		skipped: make(map[string]bool),
		split:   make(map[string]bool),
		report:  CycleReport{Cycle: e.cycle},
	}

	for _, id := range e.book.IDs() {
		e.processOrder(run, id)
	}
	e.tickOrders(run)
	e.book.ResetCycleMarkers()

	run.report.Duration = time.Since(start)
	e.stats.TotalCycles++
	e.stats.TotalExecuted += int64(len(run.report.Executed))
	e.stats.TotalPartial += int64(len(run.report.Partial))
	e.stats.TotalFailed += int64(len(run.report.Failed))
	e.stats.TotalExpired += int64(len(run.report.Expired))
	e.stats.TotalTriggered += int64(len(run.report.Triggered))
	e.stats.TotalSkipped += int64(len(run.report.Skipped))
	e.stats.LastCycleTime = e.clock.Now()
	e.monitor.ObserveCycle(run.report.Duration)

	e.logger.Debug("cycle processed",
		zap.Int("cycle", e.cycle),
		zap.Int("executed", len(run.report.Executed)),
		zap.Int("failed", len(run.report.Failed)),
		zap.Int("expired", len(run.report.Expired)),
		zap.Int("pending", e.book.Len()),
		zap.Duration("duration", run.report.Duration),
	)
	return run.report, run.err
}

func (e *Engine) processOrder(run *cycleRun, id string) {
	o, ok := e.book.Get(id)
	if !ok {
		return
	}
	price, ok := run.quotes.Price(o.Symbol)
	if !ok {
		run.skipped[id] = true
		run.report.Skipped = append(run.report.Skipped, id)
		e.logger.LogOrder("order_skipped", id, map[string]interface{}{
			"symbol": o.Symbol,
			"reason": "symbol_not_found",
		})
		return
	}
	_ = e.book.Update(id, func(p *order.PendingOrder) { p.LastObservedPrice = price })
	o.LastObservedPrice = price

	if order.ShouldTrigger(o, price) {
		_ = e.book.Update(id, order.Trigger)
		stop, _ := o.StopPrice()
		run.report.Triggered = append(run.report.Triggered, id)
		e.logger.LogOrder("order_triggered", id, map[string]interface{}{
			"symbol":    o.Symbol,
			"price":     price,
			"stopPrice": stop,
		})
		return
	}
	if !order.Executable(o, price) {
		return
	}

	switch o.Action.(type) {
	case order.Buy:
		e.executeBuy(run, o, price)
	case order.Sell:
		e.executeSell(run, o, price)
	case order.ShortSell:
		e.executeShort(run, o, price)
	case order.BuyToCover:
		e.executeCover(run, o, price)
	}
}

func (e *Engine) executeBuy(run *cycleRun, o *order.PendingOrder, price float64) {
	bd := cost.Calculate(price, o.Shares, cost.Buy, e.config.Cost)
	if bd.Total > run.ledger.cash+1e-9 {
		e.fail(run, o, price, ReasonInsufficientFunds, bd.Total, run.ledger.cash, nil)
		return
	}
	if err := e.portfolio.Buy(o.Symbol, o.Shares, bd.Total); err != nil {
		e.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
		e.fail(run, o, price, ReasonInsufficientFunds, bd.Total, e.portfolio.Cash(), nil)
		return
	}
	run.ledger.cash = cost.RoundCents(run.ledger.cash - bd.Total)
	run.ledger.long[o.Symbol] += o.Shares
	e.complete(run, o, price, fill{shares: o.Shares, cost: bd})
}

func (e *Engine) executeSell(run *cycleRun, o *order.PendingOrder, price float64) {
	held := run.ledger.long[o.Symbol]
	if o.Shares > held {
		e.fail(run, o, price, ReasonInsufficientShares, float64(o.Shares), float64(held), nil)
		return
	}
	bd := cost.Calculate(price, o.Shares, cost.Sell, e.config.Cost)
	pnl, err := e.portfolio.Sell(o.Symbol, o.Shares, bd.Total)
	if err != nil {
		e.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
		e.fail(run, o, price, ReasonInsufficientShares, float64(o.Shares), float64(e.portfolio.Shares(o.Symbol)), nil)
		return
	}
	run.ledger.cash = cost.RoundCents(run.ledger.cash + bd.Total)
	run.ledger.long[o.Symbol] -= o.Shares
	e.complete(run, o, price, fill{shares: o.Shares, cost: bd, pnl: pnl})
}

func (e *Engine) executeShort(run *cycleRun, o *order.PendingOrder, price float64) {
	bd := cost.Calculate(price, o.Shares, cost.Sell, e.config.Cost)
	lock := o.CollateralLock()
	if avail := run.ledger.cash + bd.Total; lock > avail+1e-9 {
		e.fail(run, o, price, ReasonInsufficientFunds, lock, avail, map[string]interface{}{"collateral": lock})
		return
	}
	if err := e.portfolio.OpenShort(o.Symbol, o.Shares, bd.Total, lock); err != nil {
		e.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
		e.fail(run, o, price, ReasonInsufficientFunds, lock, e.portfolio.Cash()+bd.Total, nil)
		return
	}
	run.ledger.cash = cost.RoundCents(run.ledger.cash + bd.Total - lock)
	run.ledger.short[o.Symbol] += o.Shares
	e.complete(run, o, price, fill{shares: o.Shares, cost: bd, aggressive: true})
}

// executeCover 回补空头。股数以当前空头为上限；现金（含按比例释放的保证金）不足时，
// 按成交价重新计算附带贷款；额度不够全额时按可负担股数部分成交并拆出剩余单。
func (e *Engine) executeCover(run *cycleRun, o *order.PendingOrder, price float64) {
	sym := o.Symbol
	shorted := run.ledger.short[sym]
	if shorted <= 0 {
		e.fail(run, o, price, ReasonInsufficientShares, float64(o.Shares), 0, nil)
		return
	}
	qty := o.Shares
	if qty > shorted {
		qty = shorted
	}
	costOf := func(n int) float64 { return cost.Calculate(price, n, cost.Buy, e.config.Cost).Total }
	funds := func(n int) float64 { return run.ledger.cash + e.portfolio.CoverRelease(sym, n) }

	total := costOf(qty)
	avail := funds(qty)
	if total <= avail+1e-9 {
		e.settleCover(run, o, price, qty, nil, false)
		return
	}

	lr := o.Loan()
	if lr == nil {
		e.fail(run, o, price, ReasonInsufficientFunds, total, avail, nil)
		return
	}

	params := e.loans.Params()
	req := loan.Request{
		Amount:         params.GrossForNet(total - avail),
		DurationCycles: lr.DurationCycles,
		Cycle:          e.cycle,
		Credit:         e.evaluateLocked(run.quotes, o.ID),
		Risk:           e.riskProfileLocked(),
		RealizedPnL:    e.portfolio.RealizedPnL(),
		Source:         loan.SourceMarginCover,
		OrderID:        o.ID,
	}
	err := e.loans.Check(req)
	if err == nil {
		e.settleCover(run, o, price, qty, &req, false)
		return
	}
	if !errors.Is(err, loan.ErrCreditExceeded) || req.Credit.Available <= 0 {
		e.fail(run, o, price, ReasonInsufficientFunds, total, avail, map[string]interface{}{
			"loanRejected": err.Error(),
		})
		return
	}

	// 额度不足以覆盖全额：用全部可用额度能负担的最大股数
	maxLoan := cost.FloorToStep(req.Credit.Available, 0.01)
	net := maxLoan - params.Fee(maxLoan)
	n := sort.Search(qty, func(i int) bool {
		return costOf(i+1) > funds(i+1)+net+1e-9
	})
	if n == 0 {
		e.fail(run, o, price, ReasonInsufficientFunds, total, avail+net, map[string]interface{}{
			"creditAvailable": req.Credit.Available,
		})
		return
	}

	partial := req
	partial.Amount = 0
	if shortfall := costOf(n) - funds(n); shortfall > 0 {
		partial.Amount = params.GrossForNet(shortfall)
		if partial.Amount > maxLoan {
			partial.Amount = maxLoan
		}
	}
	var lreq *loan.Request
	if partial.Amount > 0 {
		lreq = &partial
	}
	if !e.settleCover(run, o, price, n, lreq, true) {
		return
	}
	e.splitRemainder(run, o, price, qty-n, n)
}

// settleCover 放款（如需要）并完成 n 股回补。partial 表示随后会拆出剩余单。返回是否成交。
func (e *Engine) settleCover(run *cycleRun, o *order.PendingOrder, price float64, n int, req *loan.Request, partial bool) bool {
	sym := o.Symbol
	loanID := ""
	if req != nil {
		ln, err := e.loans.TakeLoan(*req)
		if err != nil {
			e.fail(run, o, price, ReasonInsufficientFunds, cost.Calculate(price, n, cost.Buy, e.config.Cost).Total,
				run.ledger.cash+e.portfolio.CoverRelease(sym, n), map[string]interface{}{"loanRejected": err.Error()})
			return false
		}
		loanID = ln.ID
		run.ledger.cash = cost.RoundCents(run.ledger.cash + ln.Principal - ln.OriginationFee)
		run.report.Loans = append(run.report.Loans, ln.ID)
		e.monitor.RecordLoanOriginated()
	}

	bd := cost.Calculate(price, n, cost.Buy, e.config.Cost)
	release := e.portfolio.CoverRelease(sym, n)
	pnl, err := e.portfolio.Cover(sym, n, bd.Total)
	if err != nil {
		e.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
		e.fail(run, o, price, ReasonInsufficientFunds, bd.Total, run.ledger.cash+release, nil)
		return false
	}
	run.ledger.cash = cost.RoundCents(run.ledger.cash + release - bd.Total)
	run.ledger.short[sym] -= n

	e.complete(run, o, price, fill{
		shares:     n,
		cost:       bd,
		pnl:        pnl,
		loanID:     loanID,
		aggressive: loanID != "",
		partial:    partial,
	})

	if o.PartialFilled && !partial && e.portfolio.ShortShares(sym) == 0 {
		msg := fmt.Sprintf("short position in %s fully closed", sym)
		if err := e.alertMgr.Success(alert.KindPositionClosed, o.ID, sym, msg, map[string]interface{}{
			"parentId": o.ParentID,
			"shares":   n,
			"price":    price,
		}); err != nil {
			e.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
		}
	}
	return true
}

// splitRemainder 把未成交部分作为新挂单追加到订单簿末尾（本周期不再处理）。
func (e *Engine) splitRemainder(run *cycleRun, o *order.PendingOrder, price float64, remaining, executed int) {
	if remaining <= 0 {
		return
	}
	rem := o.Clone()
	rem.ID = e.newID()
	rem.Shares = remaining
	rem.ParentID = o.ID
	if o.ParentID != "" {
		rem.ParentID = o.ParentID
	}
	rem.PartialFilled = true
	rem.Fresh = false
	rem.LastObservedPrice = price

	// 剩余单的贷款申请按当前价格重新估算
	if lr := o.Loan(); lr != nil {
		est := *lr
		est.Amount = 0
		need := cost.Calculate(price, remaining, cost.Buy, e.config.Cost).Total
		if shortfall := need - run.ledger.cash - e.portfolio.CoverRelease(o.Symbol, remaining); shortfall > 0 {
			est.Amount = e.loans.Params().GrossForNet(shortfall)
		}
		rem.Action = order.BuyToCover{Loan: &est}
	}
	e.book.Add(rem)
	run.split[rem.ID] = true

	run.report.Partial = append(run.report.Partial, o.ID)
	e.monitor.RecordPartial()
	e.logger.LogOrder("order_partial", o.ID, map[string]interface{}{
		"symbol":      o.Symbol,
		"executed":    executed,
		"remaining":   remaining,
		"remainderId": rem.ID,
	})
	msg := fmt.Sprintf("partially covered %d of %d %s; %d shares remain pending", executed, executed+remaining, o.Symbol, remaining)
	if err := e.alertMgr.Info(alert.KindPartialFill, o.ID, o.Symbol, msg, map[string]interface{}{
		"executed":    executed,
		"remaining":   remaining,
		"remainderId": rem.ID,
		"price":       price,
	}); err != nil {
		e.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
	}
}

// fill 一次成交的结果。
type fill struct {
	shares     int
	cost       cost.Breakdown
	pnl        float64
	loanID     string
	aggressive bool
	partial    bool
}

// complete 成交后移除订单、解除通知并记录成交。
func (e *Engine) complete(run *cycleRun, o *order.PendingOrder, price float64, f fill) {
	if _, err := e.book.Finish(o.ID, order.StatusExecuted); err != nil {
		e.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
	}
	e.alertMgr.Resolve(o.ID)

	e.successfulTrades++
	if f.aggressive {
		e.aggressiveTrades++
	}
	run.report.Executed = append(run.report.Executed, o.ID)
	e.monitor.RecordExecuted(string(o.Side()))
	e.logger.LogOrder("order_executed", o.ID, map[string]interface{}{
		"symbol": o.Symbol,
		"side":   string(o.Side()),
		"shares": f.shares,
		"price":  f.cost.EffectivePrice,
		"total":  f.cost.Total,
	})
	e.recordTrade(run, TradeRecord{
		OrderID:        o.ID,
		ParentID:       o.ParentID,
		Symbol:         o.Symbol,
		Side:           o.Side(),
		Kind:           o.Kind.Name(),
		Shares:         f.shares,
		Price:          price,
		EffectivePrice: f.cost.EffectivePrice,
		Total:          f.cost.Total,
		Fee:            f.cost.Fee,
		PnL:            f.pnl,
		LoanID:         f.loanID,
		Partial:        f.partial,
		Status:         TradeSuccess,
	})
}

// fail 可重试的执行失败：订单保留，同一订单在通知解除前只发一次警告、记一条失败记录。
func (e *Engine) fail(run *cycleRun, o *order.PendingOrder, price float64, reason FailReason, required, available float64, extra map[string]interface{}) {
	run.report.Failed = append(run.report.Failed, o.ID)

	kind := alert.KindInsufficientFunds
	var msg string
	if reason == ReasonInsufficientShares {
		kind = alert.KindInsufficientShares
		msg = fmt.Sprintf("not enough shares to %s %d %s: need %.0f, available %.0f",
			o.Side(), o.Shares, o.Symbol, required, available)
	} else {
		msg = fmt.Sprintf("insufficient funds to %s %d %s at %.2f: need $%.2f, available $%.2f",
			o.Side(), o.Shares, o.Symbol, price, required, available)
	}
	fields := map[string]interface{}{
		"side":      string(o.Side()),
		"shares":    o.Shares,
		"price":     price,
		"required":  required,
		"available": available,
	}
	for k, v := range extra {
		fields[k] = v
	}

	sent, err := e.alertMgr.Warning(kind, o.ID, o.Symbol, msg, fields)
	if err != nil {
		e.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
	}
	if !sent {
		return
	}
	e.monitor.RecordFailure(string(reason))
	e.logger.LogTrade("trade_failed", map[string]interface{}{
		"order_id":  o.ID,
		"symbol":    o.Symbol,
		"side":      string(o.Side()),
		"reason":    string(reason),
		"required":  required,
		"available": available,
	})
	e.recordTrade(run, TradeRecord{
		OrderID:  o.ID,
		ParentID: o.ParentID,
		Symbol:   o.Symbol,
		Side:     o.Side(),
		Kind:     o.Kind.Name(),
		Shares:   o.Shares,
		Price:    price,
		Status:   TradeFailed,
		Reason:   reason,
		Message:  msg,
	})
}

// tickOrders 批次结束后递减有效期，移除过期订单。
// 本周期因标的缺失跳过的订单与本周期拆出的剩余单不递减。
func (e *Engine) tickOrders(run *cycleRun) {
	for _, id := range e.book.IDs() {
		if run.skipped[id] || run.split[id] {
			continue
		}
		var expired bool
		if err := e.book.Update(id, func(o *order.PendingOrder) { expired = order.Tick(o) }); err != nil || !expired {
			continue
		}
		o, err := e.book.Finish(id, order.StatusExpired)
		if err != nil {
			e.logger.LogError(err, map[string]interface{}{"order_id": id})
			continue
		}
		e.expire(run, o)
	}
}

func (e *Engine) expire(run *cycleRun, o *order.PendingOrder) {
	reason, threshold := order.UnmetCondition(o)
	var cond string
	switch reason {
	case "stop_not_triggered":
		cond = fmt.Sprintf("stop price %.2f was never reached", threshold)
	case "limit_not_reached":
		cond = fmt.Sprintf("limit price %.2f was never reached", threshold)
	default:
		cond = "validity window elapsed"
	}
	msg := fmt.Sprintf("%s %s order for %d %s expired: %s (last price %.2f)",
		o.Kind.Name(), o.Side(), o.Shares, o.Symbol, cond, o.LastObservedPrice)

	e.alertMgr.Resolve(o.ID)
	if err := e.alertMgr.Info(alert.KindExpired, o.ID, o.Symbol, msg, map[string]interface{}{
		"reason":    reason,
		"threshold": threshold,
		"lastPrice": o.LastObservedPrice,
	}); err != nil {
		e.logger.LogError(err, map[string]interface{}{"order_id": o.ID})
	}

	run.report.Expired = append(run.report.Expired, o.ID)
	e.monitor.RecordExpired()
	e.logger.LogOrder("order_expired", o.ID, map[string]interface{}{
		"symbol":    o.Symbol,
		"reason":    reason,
		"threshold": threshold,
		"lastPrice": o.LastObservedPrice,
	})
	e.recordTrade(run, TradeRecord{
		OrderID:  o.ID,
		ParentID: o.ParentID,
		Symbol:   o.Symbol,
		Side:     o.Side(),
		Kind:     o.Kind.Name(),
		Shares:   o.Shares,
		Price:    o.LastObservedPrice,
		Status:   TradeFailed,
		Reason:   ReasonExpired,
		Message:  msg,
	})
}

func (e *Engine) recordTrade(run *cycleRun, rec TradeRecord) {
	rec.ID = e.newID()
	rec.Cycle = e.cycle
	rec.Timestamp = e.clock.Now()

	e.history = append(e.history, rec)
	if over := len(e.history) - e.config.HistoryLimit; over > 0 {
		e.history = append([]TradeRecord(nil), e.history[over:]...)
	}
	run.report.Trades = append(run.report.Trades, rec)

	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(run.ctx, rec); err != nil {
		e.logger.LogError(err, map[string]interface{}{"order_id": rec.OrderID, "trade_id": rec.ID})
		if run.err == nil {
			run.err = fmt.Errorf("record trade %s: %w", rec.ID, err)
		}
	}
}
