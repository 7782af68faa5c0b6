package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stocksim-go/cost"
	"stocksim-go/credit"
	"stocksim-go/infrastructure/alert"
	"stocksim-go/infrastructure/logger"
	"stocksim-go/infrastructure/monitor"
	"stocksim-go/inventory"
	"stocksim-go/loan"
	"stocksim-go/market"
	"stocksim-go/order"
)

// Config 引擎配置
type Config struct {
	Cost         cost.Params             // 游戏模式成交成本
	Collateral   credit.CollateralParams // 抵押品与额度常量
	HistoryLimit int                     // 内存中保留的成交记录条数
}

// Components 引擎依赖组件
type Components struct {
	OrderManager *order.Manager
	Portfolio    *inventory.Portfolio
	Loans        *loan.Ledger
	AlertManager *alert.Manager
	Logger       *logger.Logger
	Monitor      *monitor.Monitor // 可选
	Recorder     TradeRecorder    // 可选
}

// Engine 订单执行与信用引擎。每个周期由唯一调用方驱动，内部加锁只为保护只读查询。
type Engine struct {
	// 配置
	config Config

	// 核心组件
	orderMgr  *order.Manager
	book      *order.Book
	portfolio *inventory.Portfolio
	loans     *loan.Ledger
	alertMgr  *alert.Manager
	logger    *logger.Logger
	monitor   *monitor.Monitor
	recorder  TradeRecorder

	mu     sync.RWMutex
	cycle  int
	quotes market.Quotes

	// 成交历史与风险画像计数
	history          []TradeRecord
	successfulTrades int
	aggressiveTrades int

	stats Statistics
	clock credit.Clock
	newID func() string
}

// Statistics 引擎统计信息
type Statistics struct {
	TotalCycles    int64
	TotalExecuted  int64
	TotalPartial   int64
	TotalFailed    int64
	TotalExpired   int64
	TotalTriggered int64
	TotalSkipped   int64
	LastCycleTime  time.Time
}

// New 创建引擎
func New(cfg Config, components Components) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(components); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}

	// 设置默认值
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 500
	}

	return &Engine{
		config:    cfg,
		orderMgr:  components.OrderManager,
		book:      components.OrderManager.Book(),
		portfolio: components.Portfolio,
		loans:     components.Loans,
		alertMgr:  components.AlertManager,
		logger:    components.Logger,
		monitor:   components.Monitor,
		recorder:  components.Recorder,
		quotes:    market.Quotes{},
		clock:     credit.NowUTC,
		newID:     uuid.NewString,
	}, nil
}

// SetClock 替换时钟（测试用）。
func (e *Engine) SetClock(c credit.Clock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = c
}

// SubmitOrder 提交订单。附带贷款申请时，申请额不得超过当前可用额度。
func (e *Engine) SubmitOrder(req order.SubmitRequest) (*order.PendingOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.Loan != nil && req.Loan.Amount > 0 {
		ev := e.evaluateLocked(e.quotes, "")
		if req.Loan.Amount > ev.Available+1e-9 {
			return nil, fmt.Errorf("%w: requested %.2f available %.2f", loan.ErrCreditExceeded, req.Loan.Amount, ev.Available)
		}
	}
	o, err := e.orderMgr.Submit(req, e.cycle)
	if err != nil {
		return nil, err
	}

	e.monitor.RecordSubmitted()
	e.logger.LogOrder("order_submitted", o.ID, map[string]interface{}{
		"symbol": o.Symbol,
		"side":   string(o.Side()),
		"kind":   string(o.Kind.Name()),
		"shares": o.Shares,
		"cycle":  e.cycle,
	})
	return o, nil
}

// CancelOrder 撤单，同时解除该订单的未决通知。
func (e *Engine) CancelOrder(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.orderMgr.Cancel(id)
	if err != nil {
		return err
	}
	e.alertMgr.Resolve(id)
	e.monitor.RecordCanceled()
	e.logger.LogOrder("order_canceled", id, map[string]interface{}{"symbol": o.Symbol})
	return nil
}

// QuoteCoverLoan 估算回补 shares 股所需贷款及当前报价利率，供下单时附带。
// 执行时会按成交价重新计算金额与利率。
func (e *Engine) QuoteCoverLoan(symbol string, shares int, price float64, duration int) (order.LoanRequest, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if shares <= 0 || price <= 0 {
		return order.LoanRequest{}, fmt.Errorf("%w: shares and price must be > 0", order.ErrInvalidOrder)
	}

	covered := shares
	if short := e.portfolio.ShortShares(symbol); covered > short {
		covered = short
	}
	need := cost.Calculate(price, covered, cost.Buy, e.config.Cost).Total
	avail := e.portfolio.Cash() - e.book.ReservedCash(e.config.Cost) + e.portfolio.CoverRelease(symbol, covered)
	lr := order.LoanRequest{DurationCycles: duration}
	if shortfall := need - avail; shortfall > 0 {
		lr.Amount = e.loans.Params().GrossForNet(shortfall)
	}
	q := e.loans.QuoteRate(loan.Request{
		Amount:         lr.Amount,
		DurationCycles: duration,
		Credit:         e.evaluateLocked(e.quotes, ""),
		Risk:           e.riskProfileLocked(),
		RealizedPnL:    e.portfolio.RealizedPnL(),
	})
	lr.InterestRate = q.Effective
	return lr, nil
}

// TakeLoan 直接贷款。
func (e *Engine) TakeLoan(amount float64, duration int) (*loan.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ln, err := e.loans.TakeLoan(loan.Request{
		Amount:         amount,
		DurationCycles: duration,
		Cycle:          e.cycle,
		Credit:         e.evaluateLocked(e.quotes, ""),
		Risk:           e.riskProfileLocked(),
		RealizedPnL:    e.portfolio.RealizedPnL(),
		Source:         loan.SourceDirect,
	})
	if err != nil {
		return nil, err
	}
	e.monitor.RecordLoanOriginated()
	return ln, nil
}

// RepayLoan 还款。
func (e *Engine) RepayLoan(id string, amount float64) (loan.Repayment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.loans.Repay(id, amount, e.cycle)
	if err != nil {
		return r, err
	}
	if r.Closed {
		e.monitor.RecordLoanRepaid(1)
	}
	return r, nil
}

// CreditEvaluation 按最近一次报价计算信用额度。
func (e *Engine) CreditEvaluation() credit.Evaluation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.evaluateLocked(e.quotes, "")
}

// evaluateLocked 计算信用额度；exceptID 对应订单自身的贷款申请不计入待执行占用。
func (e *Engine) evaluateLocked(quotes market.Quotes, exceptID string) credit.Evaluation {
	holdings := e.portfolio.Holdings()
	hs := make([]credit.Holding, 0, len(holdings))
	for _, h := range holdings {
		hs = append(hs, credit.Holding{Symbol: h.Symbol, Shares: h.Shares})
	}
	return e.config.Collateral.Evaluate(credit.Inputs{
		Cash:           e.portfolio.Cash(),
		Holdings:       hs,
		Quotes:         quotes,
		InitialCapital: e.portfolio.InitialCapital(),
		Debt:           e.loans.Debt(),
		PendingLoans:   e.book.PendingLoanCommitmentExcept(exceptID),
	})
}

// ApplySplit 拆股：同步调整挂单、持仓与最近报价。
func (e *Engine) ApplySplit(symbol string, ratio float64) (int, error) {
	if ratio <= 0 {
		return 0, fmt.Errorf("%w: split ratio must be > 0", order.ErrInvalidOrder)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.book.ApplySplit(symbol, ratio)
	e.portfolio.ApplySplit(symbol, ratio)
	if q, ok := e.quotes[symbol]; ok {
		q.Price /= ratio
		e.quotes[symbol] = q
	}
	e.logger.LogTrade("split_applied", map[string]interface{}{
		"symbol": symbol,
		"ratio":  ratio,
		"orders": n,
	})
	return n, nil
}

// EndCycle 结束当前周期：记录贷款台账推进结果并进入下一周期。
func (e *Engine) EndCycle(res loan.CycleResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.monitor.RecordInterest(res.InterestCharged)
	e.monitor.RecordPenalty(res.Penalties)
	e.monitor.RecordLoanRepaid(len(res.AutoRepaid))
	e.cycle++
	e.monitor.UpdateAccount(monitor.AccountSnapshot{
		Cycle:         e.cycle,
		Cash:          e.portfolio.Cash(),
		Debt:          e.loans.Debt(),
		CreditScore:   e.loans.Score(),
		PendingOrders: e.book.Len(),
	})
}

// Cycle 当前周期编号
func (e *Engine) Cycle() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cycle
}

// Quotes 最近一次报价
func (e *Engine) Quotes() market.Quotes {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.quotes.Clone()
}

// SetQuotes 在两次周期之间更新报价（用于下单前的额度估算）。保存副本。
func (e *Engine) SetQuotes(q market.Quotes) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quotes = q.Clone()
}

// History 返回最近 n 条成交记录（n<=0 返回全部）。
func (e *Engine) History(n int) []TradeRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h := e.history
	if n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	return append([]TradeRecord(nil), h...)
}

// RiskProfile 由成交历史推导的风险画像
func (e *Engine) RiskProfile() credit.RiskProfile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.riskProfileLocked()
}

func (e *Engine) riskProfileLocked() credit.RiskProfile {
	return credit.DeriveRiskProfile(e.successfulTrades, e.aggressiveTrades)
}

// GetStatistics 获取统计信息
func (e *Engine) GetStatistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// AvailableCash 现金减去挂单占用，供展示层使用。
func (e *Engine) AvailableCash() float64 {
	return cost.RoundCents(e.portfolio.Cash() - e.book.ReservedCash(e.config.Cost))
}

// AvailableShares 持股减去待卖出股数。
func (e *Engine) AvailableShares(symbol string) int {
	n := e.portfolio.Shares(symbol) - e.book.ReservedShares(symbol)
	if n < 0 {
		return 0
	}
	return n
}

// Book 订单簿
func (e *Engine) Book() *order.Book { return e.book }

// Portfolio 账户
func (e *Engine) Portfolio() *inventory.Portfolio { return e.portfolio }

// Loans 贷款台账
func (e *Engine) Loans() *loan.Ledger { return e.loans }

// Alerts 通知管理器
func (e *Engine) Alerts() *alert.Manager { return e.alertMgr }

// CostParams 成交成本参数
func (e *Engine) CostParams() cost.Params { return e.config.Cost }

// Close 关闭成交记录器
func (e *Engine) Close() error {
	if e.recorder == nil {
		return nil
	}
	return e.recorder.Close()
}

// validateConfig 验证配置
func validateConfig(cfg Config) error {
	if cfg.Cost.SpreadPct < 0 || cfg.Cost.SlippageCoef < 0 || cfg.Cost.FeeFixed < 0 || cfg.Cost.FeePct < 0 {
		return errors.New("cost parameters must be non-negative")
	}
	if cfg.Cost.OrderDelayCycles < 0 {
		return errors.New("order delay must be non-negative")
	}
	if cfg.Collateral.CreditLineStep <= 0 {
		return errors.New("credit line step must be positive")
	}
	return nil
}

// validateComponents 验证组件
func validateComponents(comp Components) error {
	if comp.OrderManager == nil {
		return errors.New("order manager is required")
	}
	if comp.Portfolio == nil {
		return errors.New("portfolio is required")
	}
	if comp.Loans == nil {
		return errors.New("loan ledger is required")
	}
	if comp.AlertManager == nil {
		return errors.New("alert manager is required")
	}
	if comp.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}
