package loan

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"stocksim-go/cost"
	"stocksim-go/credit"
	"stocksim-go/infrastructure/alert"
	"stocksim-go/infrastructure/logger"
)

// CashAccount 贷款放款与还款使用的现金账户（inventory.Portfolio 实现）。
type CashAccount interface {
	Cash() float64
	Deposit(amount float64)
	Withdraw(amount float64) error
}

// Notifier 到期提醒与逾期通知出口（alert.Manager 实现）。
type Notifier interface {
	Notify(a alert.Alert) (bool, error)
}

// Config 台账依赖的全部常量。
type Config struct {
	Loan     Params
	Score    credit.ScoreParams
	Interest credit.InterestParams
}

// Request 借款申请。Credit 为申请时刻的额度估值（已计入待执行订单的贷款申请）。
type Request struct {
	Amount         float64
	DurationCycles int
	Cycle          int
	Credit         credit.Evaluation
	Risk           credit.RiskProfile
	RealizedPnL    float64
	Source         Source
	OrderID        string
}

// Repayment 一次还款结果。
type Repayment struct {
	LoanID   string
	Paid     float64
	Balance  float64
	Closed   bool
	Event    credit.EventKind // 结清时的信用事件，逾期结清为空
	Resolved bool             // 结清了一条逾期记录
}

// CycleResult AdvanceCycle 的汇总。
type CycleResult struct {
	InterestCharged float64
	DueSoon         []string
	AutoRepaid      []string
	BecameOverdue   []string
	Penalties       float64
}

// Ledger 贷款台账与信用档案。
type Ledger struct {
	mu         sync.Mutex
	cfg        Config
	loans      []*Loan
	nextNumber int
	profile    *credit.Profile
	cash       CashAccount
	notifier   Notifier
	log        *logger.Logger
	clock      credit.Clock
	newID      func() string
}

func NewLedger(cfg Config, cash CashAccount, notifier Notifier, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.NewNop()
	}
	return &Ledger{
		cfg:        cfg,
		nextNumber: 1,
		profile:    credit.NewProfile(cfg.Score),
		cash:       cash,
		notifier:   notifier,
		log:        log,
		clock:      credit.NowUTC,
		newID:      uuid.NewString,
	}
}

// SetClock 替换时间源（测试用）。
func (l *Ledger) SetClock(c credit.Clock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = c
}

// Params 贷款常量。
func (l *Ledger) Params() Params { return l.cfg.Loan }

// QuoteRate 按当前状态报价，不放款。
func (l *Ledger) QuoteRate(req Request) credit.RateQuote {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quoteLocked(req)
}

func (l *Ledger) quoteLocked(req Request) credit.RateQuote {
	util := 0.0
	if req.Credit.Maximum > 0 {
		util = (req.Credit.Debt + req.Credit.Pending + req.Amount) / req.Credit.Maximum
	} else if req.Amount > 0 {
		util = 1
	}
	return l.cfg.Interest.Quote(credit.RateInputs{
		Risk:            req.Risk,
		RealizedPnL:     req.RealizedPnL,
		Utilization:     util,
		ConcurrentLoans: len(l.loans) + 1,
		DurationCycles:  req.DurationCycles,
		MinDuration:     l.cfg.Loan.MinDurationCycles,
	})
}

// Check 校验申请但不放款。
func (l *Ledger) Check(req Request) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(req)
}

func (l *Ledger) checkLocked(req Request) error {
	p := l.cfg.Loan
	if req.Amount <= 0 {
		return fmt.Errorf("%w: %.2f", ErrInvalidAmount, req.Amount)
	}
	if req.DurationCycles < p.MinDurationCycles || req.DurationCycles > p.MaxDurationCycles {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidDuration, req.DurationCycles, p.MinDurationCycles, p.MaxDurationCycles)
	}
	if p.MaxConcurrentLoans > 0 && len(l.loans) >= p.MaxConcurrentLoans {
		return fmt.Errorf("%w: %d open", ErrTooManyLoans, len(l.loans))
	}
	if l.profile.Score < p.MinCreditScore {
		return fmt.Errorf("%w: %.0f < %.0f", ErrCreditScoreTooLow, l.profile.Score, p.MinCreditScore)
	}
	if req.Amount > req.Credit.Available+1e-9 {
		return fmt.Errorf("%w: requested %.2f available %.2f", ErrCreditExceeded, req.Amount, req.Credit.Available)
	}
	return nil
}

// TakeLoan 放款：锁定利率，扣除手续费后入账。
func (l *Ledger) TakeLoan(req Request) (*Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkLocked(req); err != nil {
		return nil, err
	}
	q := l.quoteLocked(req)
	amount := cost.RoundCents(req.Amount)
	fee := l.cfg.Loan.Fee(amount)
	ln := &Loan{
		ID:              l.newID(),
		Number:          l.nextNumber,
		Principal:       amount,
		Balance:         amount,
		Rate:            q.Effective,
		OriginationFee:  fee,
		DurationCycles:  req.DurationCycles,
		RemainingCycles: req.DurationCycles,
		CreatedCycle:    req.Cycle,
		Source:          req.Source,
		OrderID:         req.OrderID,
	}
	if ln.Source == "" {
		ln.Source = SourceDirect
	}
	l.nextNumber++
	l.loans = append(l.loans, ln)
	l.cash.Deposit(amount - fee)

	l.log.LogCredit("loan_originated", map[string]interface{}{
		"loan_id":  ln.ID,
		"number":   ln.Number,
		"amount":   amount,
		"rate":     ln.Rate,
		"fee":      fee,
		"duration": ln.DurationCycles,
		"source":   string(ln.Source),
	})
	c := *ln
	return &c, nil
}

// Repay 还款，金额超过余额时按余额计。
func (l *Ledger) Repay(loanID string, amount float64, cycle int) (Repayment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(loanID)
	if i < 0 {
		return Repayment{}, fmt.Errorf("%w: %s", ErrUnknownLoan, loanID)
	}
	if amount <= 0 {
		return Repayment{}, fmt.Errorf("%w: %.2f", ErrInvalidAmount, amount)
	}
	ln := l.loans[i]
	pay := cost.RoundCents(amount)
	if pay > ln.Balance {
		pay = ln.Balance
	}
	if err := l.cash.Withdraw(pay); err != nil {
		return Repayment{}, fmt.Errorf("%w: %v", ErrInsufficientCash, err)
	}
	ln.Balance = cost.RoundCents(ln.Balance - pay)
	r := Repayment{LoanID: ln.ID, Paid: pay, Balance: ln.Balance}

	if ln.Balance <= 0 {
		r.Closed = true
		now := l.clock.Now()
		if ln.Overdue {
			r.Resolved = l.profile.ResolveDelinquency(ln.ID, cycle, now)
		} else if ln.RemainingCycles > ln.DurationCycles/2 {
			r.Event = credit.EventEarlyRepayment
			l.profile.Record(l.cfg.Score, r.Event, ln.ID, l.cfg.Score.EarlyRepayment, cycle, now)
		} else {
			r.Event = credit.EventOnTimeRepayment
			l.profile.Record(l.cfg.Score, r.Event, ln.ID, l.cfg.Score.OnTimeRepayment, cycle, now)
		}
		l.removeLocked(i)
	}

	l.log.LogCredit("loan_repaid", map[string]interface{}{
		"loan_id": ln.ID,
		"amount":  pay,
		"balance": ln.Balance,
		"closed":  r.Closed,
	})
	return r, nil
}

// AdvanceCycle 推进一个周期：统一计息、到期倒数、到期自动还款与逾期罚分。
func (l *Ledger) AdvanceCycle(cycle int) CycleResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	var res CycleResult
	now := l.clock.Now()

	l.profile.CyclesSinceInterest++
	if iv := l.cfg.Loan.InterestIntervalCycles; iv > 0 && l.profile.CyclesSinceInterest >= iv {
		l.profile.CyclesSinceInterest = 0
		for _, ln := range l.loans {
			interest := cost.RoundCents(ln.Balance * ln.Rate)
			ln.Balance = cost.RoundCents(ln.Balance + interest)
			ln.InterestPaid = cost.RoundCents(ln.InterestPaid + interest)
			res.InterestCharged += interest
		}
		res.InterestCharged = cost.RoundCents(res.InterestCharged)
		if len(l.loans) > 0 {
			l.log.LogCredit("interest_charged", map[string]interface{}{
				"loans": len(l.loans),
				"total": res.InterestCharged,
			})
		}
	}

	kept := l.loans[:0]
	for _, ln := range l.loans {
		if ln.Overdue {
			if l.autoRepayLocked(ln) {
				l.profile.ResolveDelinquency(ln.ID, cycle, now)
				l.log.LogCredit("delinquency_resolved", map[string]interface{}{"loan_id": ln.ID})
				res.AutoRepaid = append(res.AutoRepaid, ln.ID)
				continue
			}
			ln.OverdueCycles++
			pen := l.cfg.Score.OverduePenaltyAt(ln.OverdueCycles)
			l.profile.Record(l.cfg.Score, credit.EventOverduePenalty, ln.ID, -pen, cycle, now)
			l.profile.ObserveOverdue(ln.ID, ln.OverdueCycles)
			res.Penalties += pen
			l.log.LogCredit("loan_overdue", map[string]interface{}{
				"loan_id":        ln.ID,
				"overdue_cycles": ln.OverdueCycles,
				"penalty":        pen,
				"score":          l.profile.Score,
			})
			kept = append(kept, ln)
			continue
		}

		if ln.RemainingCycles > 0 {
			ln.RemainingCycles--
		}
		if !ln.WarningShown && ln.RemainingCycles > 0 && ln.RemainingCycles <= l.cfg.Loan.DueWarningCycles {
			ln.WarningShown = true
			res.DueSoon = append(res.DueSoon, ln.ID)
			l.log.LogCredit("loan_due_soon", map[string]interface{}{"loan_id": ln.ID, "remaining": ln.RemainingCycles})
			l.notify(alert.LevelWarning, alert.KindLoanDueSoon, ln,
				fmt.Sprintf("loan #%d due in %d cycles, balance $%.2f", ln.Number, ln.RemainingCycles, ln.Balance))
		}
		if ln.RemainingCycles > 0 {
			kept = append(kept, ln)
			continue
		}

		if l.autoRepayLocked(ln) {
			l.profile.Record(l.cfg.Score, credit.EventAutoRepaid, ln.ID, l.cfg.Score.AutoRepaid, cycle, now)
			res.AutoRepaid = append(res.AutoRepaid, ln.ID)
			l.log.LogCredit("loan_auto_repaid", map[string]interface{}{"loan_id": ln.ID, "amount": ln.Principal})
			l.notify(alert.LevelInfo, alert.KindLoanAutoRepaid, ln,
				fmt.Sprintf("loan #%d repaid automatically at maturity", ln.Number))
			continue
		}
		ln.Overdue = true
		l.profile.OpenDelinquency(ln.ID, cycle, now)
		res.BecameOverdue = append(res.BecameOverdue, ln.ID)
		l.notify(alert.LevelWarning, alert.KindLoanOverdue, ln,
			fmt.Sprintf("loan #%d is overdue: balance $%.2f exceeds cash $%.2f", ln.Number, ln.Balance, l.cash.Cash()))
		kept = append(kept, ln)
	}
	for i := len(kept); i < len(l.loans); i++ {
		l.loans[i] = nil
	}
	l.loans = kept
	res.Penalties = cost.RoundCents(res.Penalties)
	return res
}

// autoRepayLocked 现金足够时全额扣款。
func (l *Ledger) autoRepayLocked(ln *Loan) bool {
	if l.cash.Cash()+1e-9 < ln.Balance {
		return false
	}
	if err := l.cash.Withdraw(ln.Balance); err != nil {
		return false
	}
	ln.Balance = 0
	return true
}

func (l *Ledger) notify(level alert.Level, kind alert.Kind, ln *Loan, msg string) {
	if l.notifier == nil {
		return
	}
	_, err := l.notifier.Notify(alert.Alert{
		Level:   level,
		Kind:    kind,
		Message: msg,
		Fields: map[string]interface{}{
			"loanId":     ln.ID,
			"loanNumber": ln.Number,
			"balance":    ln.Balance,
			"remaining":  ln.RemainingCycles,
		},
	})
	if err != nil {
		l.log.LogError(err, map[string]interface{}{"op": "loan_notify", "loan_id": ln.ID})
	}
}

func (l *Ledger) indexLocked(id string) int {
	for i, ln := range l.loans {
		if ln.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) removeLocked(i int) {
	l.loans = append(l.loans[:i], l.loans[i+1:]...)
}

// Debt 全部贷款余额之和。
func (l *Ledger) Debt() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0.0
	for _, ln := range l.loans {
		total += ln.Balance
	}
	return cost.RoundCents(total)
}

// Count 未结清贷款数。
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loans)
}

// Loans 按放款顺序返回贷款副本。
func (l *Ledger) Loans() []Loan {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Loan, 0, len(l.loans))
	for _, ln := range l.loans {
		out = append(out, *ln)
	}
	return out
}

// Get 单笔贷款副本。
func (l *Ledger) Get(id string) (Loan, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexLocked(id); i >= 0 {
		return *l.loans[i], true
	}
	return Loan{}, false
}

// Score 当前信用分。
func (l *Ledger) Score() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.profile.Score
}

// Profile 信用档案副本。
func (l *Ledger) Profile() credit.Profile {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := *l.profile
	p.History = append([]credit.HistoryEntry(nil), l.profile.History...)
	p.Delinquencies = append([]credit.DelinquencyRecord(nil), l.profile.Delinquencies...)
	return p
}
